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
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"

	"pagekit.dev/pagekit/pkg/hostarch"
	"pagekit.dev/pagekit/pkg/memsim"
	"pagekit.dev/pagekit/pkg/pagetables"
)

// hexUint64 accepts either a YAML integer or a string like "0x400000".
// Addresses in image files are usually written in hex, and quoting them
// should not change their meaning.
type hexUint64 uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *hexUint64) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n uint64
	if err := unmarshal(&n); err == nil {
		*h = hexUint64(n)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return fmt.Errorf("bad address %q: %w", s, err)
	}
	*h = hexUint64(n)
	return nil
}

// imageRegion is one boot memory map entry in an image file.
type imageRegion struct {
	Start hexUint64 `yaml:"start"`
	End   hexUint64 `yaml:"end"`
	Kind  string    `yaml:"kind"`
}

func (r *imageRegion) kind() (memsim.RegionKind, error) {
	switch r.Kind {
	case "usable":
		return memsim.RegionUsable, nil
	case "reserved":
		return memsim.RegionReserved, nil
	default:
		return 0, fmt.Errorf("unknown region kind %q", r.Kind)
	}
}

// imageMapping is one mapping request in an image file. Count maps that
// many consecutive pages; it defaults to 1.
type imageMapping struct {
	Virt          hexUint64 `yaml:"virt"`
	Phys          hexUint64 `yaml:"phys"`
	Size          string    `yaml:"size"`
	Count         uint64    `yaml:"count"`
	Writable      bool      `yaml:"writable"`
	User          bool      `yaml:"user"`
	Global        bool      `yaml:"global"`
	NoExecute     bool      `yaml:"noexec"`
	WriteThrough  bool      `yaml:"writethrough"`
	CacheDisabled bool      `yaml:"nocache"`
}

func (m *imageMapping) pageSize() (pagetables.PageSize, error) {
	switch m.Size {
	case "", "4k":
		return pagetables.Size4KiB, nil
	case "2m":
		return pagetables.Size2MiB, nil
	case "1g":
		return pagetables.Size1GiB, nil
	default:
		return 0, fmt.Errorf("unknown page size %q, must be 4k, 2m, or 1g", m.Size)
	}
}

func (m *imageMapping) opts() pagetables.MapOpts {
	return pagetables.MapOpts{
		Writable:      m.Writable,
		User:          m.User,
		Global:        m.Global,
		NoExecute:     m.NoExecute,
		WriteThrough:  m.WriteThrough,
		CacheDisabled: m.CacheDisabled,
	}
}

// image is the machine-image file: how much physical memory exists,
// where the bootloader's linear mapping sits, which regions of the
// memory map are usable, and which mappings to install.
type image struct {
	Memory struct {
		Size   hexUint64 `yaml:"size"`
		Offset hexUint64 `yaml:"offset"`
	} `yaml:"memory"`
	Regions  []imageRegion  `yaml:"regions"`
	Mappings []imageMapping `yaml:"mappings"`
}

func loadImage(path string) (*image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseImage(data)
}

func parseImage(data []byte) (*image, error) {
	var img image
	if err := yaml.UnmarshalStrict(data, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// machine is a built image: the address space plus the collaborators it
// was built with.
type machine struct {
	img   *image
	mem   *memsim.Memory
	alloc *memsim.FreeListAllocator
	pt    *pagetables.PageTables
}

// Build constructs the physical memory, seeds a free-list allocator
// from the memory map, and installs every mapping the image asks for.
func (img *image) Build() (*machine, error) {
	mem, err := memsim.New(uint64(img.Memory.Size), uint64(img.Memory.Offset))
	if err != nil {
		return nil, err
	}

	regions := make([]memsim.Region, 0, len(img.Regions))
	for _, r := range img.Regions {
		kind, err := r.kind()
		if err != nil {
			return nil, err
		}
		if uint64(r.End) > mem.Size() {
			return nil, fmt.Errorf("region [%#x, %#x) exceeds memory size %#x", uint64(r.Start), uint64(r.End), mem.Size())
		}
		regions = append(regions, memsim.Region{
			Start: hostarch.PhysAddr(r.Start),
			End:   hostarch.PhysAddr(r.End),
			Kind:  kind,
		})
	}

	alloc, err := memsim.NewFreeListAllocator(regions)
	if err != nil {
		return nil, err
	}
	pt, err := pagetables.New(mem, alloc)
	if err != nil {
		return nil, err
	}

	for i, m := range img.Mappings {
		size, err := m.pageSize()
		if err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
		count := m.Count
		if count == 0 {
			count = 1
		}
		vaddr, err := hostarch.NewVirtAddr(uint64(m.Virt))
		if err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
		length := count * uint64(size)
		if err := pt.MapRange(vaddr, hostarch.PhysAddr(m.Phys), length, size, m.opts(), alloc); err != nil {
			return nil, fmt.Errorf("mapping %d (%#x -> %#x): %w", i, uint64(m.Virt), uint64(m.Phys), err)
		}
	}

	return &machine{img: img, mem: mem, alloc: alloc, pt: pt}, nil
}
