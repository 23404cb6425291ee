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
	"strconv"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"pagekit.dev/pagekit/pkg/hostarch"
)

// translateCmd implements subcommands.Command for the "translate"
// command.
type translateCmd struct{}

// Name implements subcommands.Command.Name.
func (*translateCmd) Name() string {
	return "translate"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*translateCmd) Synopsis() string {
	return "translate virtual addresses through the image's page tables"
}

// Usage implements subcommands.Command.Usage.
func (*translateCmd) Usage() string {
	return `translate <address>...: resolve each virtual address to its physical address
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*translateCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*translateCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config)
	m, err := buildFromConfig(conf)
	if err != nil {
		logrus.Errorf("%v", err)
		return subcommands.ExitFailure
	}

	status := subcommands.ExitSuccess
	for _, arg := range f.Args() {
		raw, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			logrus.Errorf("bad address %q: %v", arg, err)
			status = subcommands.ExitUsageError
			continue
		}
		vaddr, err := hostarch.NewVirtAddr(raw)
		if err != nil {
			fmt.Printf("%#x: %v\n", raw, err)
			status = subcommands.ExitFailure
			continue
		}
		phys, err := m.pt.Translate(vaddr)
		if err != nil {
			fmt.Printf("%#x: %v\n", raw, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Printf("%#x -> %#x (via %#x)\n", raw, uint64(phys), m.mem.VirtualFor(phys))
	}
	return status
}
