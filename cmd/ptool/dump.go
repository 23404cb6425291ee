// Copyright 2024 The Pagekit Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"pagekit.dev/pagekit/pkg/hostarch"
	"pagekit.dev/pagekit/pkg/pagetables"
)

// dumpCmd implements subcommands.Command for the "dump" command.
type dumpCmd struct{}

// Name implements subcommands.Command.Name.
func (*dumpCmd) Name() string {
	return "dump"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*dumpCmd) Synopsis() string {
	return "list every mapping in the image's page tables"
}

// Usage implements subcommands.Command.Usage.
func (*dumpCmd) Usage() string {
	return `dump: print all present leaf mappings in virtual-address order
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*dumpCmd) SetFlags(*flag.FlagSet) {}

// sizeName returns the human name for a leaf level.
func sizeName(level int) string {
	switch level {
	case 1:
		return "4K"
	case 2:
		return "2M"
	case 3:
		return "1G"
	default:
		return "?"
	}
}

// permString renders entry options the way kernel page-table dumpers
// usually do.
func permString(opts pagetables.MapOpts) string {
	b := []byte("r----")
	if opts.Writable {
		b[1] = 'w'
	}
	if !opts.NoExecute {
		b[2] = 'x'
	}
	if opts.User {
		b[3] = 'u'
	}
	if opts.Global {
		b[4] = 'g'
	}
	return string(b)
}

// Execute implements subcommands.Command.Execute.
func (*dumpCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config)
	m, err := buildFromConfig(conf)
	if err != nil {
		logrus.Errorf("%v", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("%-20s %-16s %-4s %s\n", "VIRT", "PHYS", "SIZE", "PERM")
	count := 0
	m.pt.Leaves(func(vaddr hostarch.VirtAddr, entry pagetables.PTE, level int) bool {
		fmt.Printf("%#-20x %#-16x %-4s %s\n", uint64(vaddr), uint64(entry.Address()), sizeName(level), permString(entry.Opts()))
		count++
		return true
	})
	logrus.Debugf("%d leaf mappings, root table at %#x", count, uint64(m.pt.RootPhysical()))
	return subcommands.ExitSuccess
}
