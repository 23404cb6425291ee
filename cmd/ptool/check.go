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
)

// checkCmd implements subcommands.Command for the "check" command.
type checkCmd struct{}

// Name implements subcommands.Command.Name.
func (*checkCmd) Name() string {
	return "check"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*checkCmd) Synopsis() string {
	return "verify that every mapping in the image translates correctly"
}

// Usage implements subcommands.Command.Usage.
func (*checkCmd) Usage() string {
	return `check: walk every page of every image mapping and compare against the expected frame
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*checkCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*checkCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
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

	bad := 0
	checked := 0
	for i, mapping := range m.img.Mappings {
		size, err := mapping.pageSize()
		if err != nil {
			logrus.Errorf("mapping %d: %v", i, err)
			return subcommands.ExitFailure
		}
		count := mapping.Count
		if count == 0 {
			count = 1
		}
		// Probe the first and last byte of every page of the
		// mapping.
		for off := uint64(0); off < count*uint64(size); off += uint64(size) {
			for _, probe := range []uint64{0, uint64(size) - 1} {
				vaddr := hostarch.VirtAddr(uint64(mapping.Virt) + off + probe)
				want := hostarch.PhysAddr(uint64(mapping.Phys) + off + probe)
				got, err := m.pt.Translate(vaddr)
				checked++
				if err != nil {
					fmt.Printf("FAIL %#x: %v\n", uint64(vaddr), err)
					bad++
					continue
				}
				if got != want {
					fmt.Printf("FAIL %#x -> %#x, want %#x\n", uint64(vaddr), uint64(got), uint64(want))
					bad++
				}
			}
		}
	}

	if bad > 0 {
		fmt.Printf("%d of %d probes failed\n", bad, checked)
		return subcommands.ExitFailure
	}
	fmt.Printf("ok: %d probes, %d free frames left\n", checked, m.alloc.FreeFrames())
	return subcommands.ExitSuccess
}
