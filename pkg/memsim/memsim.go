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

// Package memsim models the physical-memory environment a bootloader
// hands to a kernel: a span of physical memory made dereferenceable
// through a fixed linear offset, a memory map of usable and reserved
// regions, and frame allocators built on top of that map.
//
// Everything here is ordinary Go memory; frames spring into existence,
// zero-filled, the first time they are touched. That is exactly the
// guarantee a mapper needs from freshly allocated table frames.
package memsim

import (
	"fmt"

	"pagekit.dev/pagekit/pkg/hostarch"
	"pagekit.dev/pagekit/pkg/pagetables"
)

// Memory is a simulated span of physical memory starting at address 0.
// It implements pagetables.Memory.
type Memory struct {
	size   uint64
	offset uint64

	frames map[hostarch.PhysAddr]*pagetables.PTEs
}

// New returns a Memory of the given size. offset is the virtual base of
// the linear mapping the bootloader set up; the simulation only reports
// it (see VirtualFor), the map lookup itself stands in for the
// dereference. size must be page aligned.
func New(size, offset uint64) (*Memory, error) {
	if size == 0 || size%hostarch.PageSize != 0 {
		return nil, fmt.Errorf("memory size %#x is not a whole number of pages", size)
	}
	return &Memory{
		size:   size,
		offset: offset,
		frames: make(map[hostarch.PhysAddr]*pagetables.PTEs),
	}, nil
}

// Size returns the modeled amount of physical memory in bytes.
func (m *Memory) Size() uint64 {
	return m.size
}

// Offset returns the linear-mapping base.
func (m *Memory) Offset() uint64 {
	return m.offset
}

// VirtualFor returns the virtual address at which phys is
// dereferenceable through the linear mapping.
func (m *Memory) VirtualFor(phys hostarch.PhysAddr) uint64 {
	return m.offset + uint64(phys)
}

// Table implements pagetables.Memory. phys must be page aligned and
// inside the modeled memory; anything else is a caller bug, the
// simulated equivalent of dereferencing a wild physical pointer.
func (m *Memory) Table(phys hostarch.PhysAddr) *pagetables.PTEs {
	if !phys.IsPageAligned() {
		panic(fmt.Sprintf("memsim: table at unaligned address %#x", uint64(phys)))
	}
	if uint64(phys)+hostarch.PageSize > m.size {
		panic(fmt.Sprintf("memsim: table at %#x beyond %#x bytes of memory", uint64(phys), m.size))
	}
	t, ok := m.frames[phys]
	if !ok {
		t = new(pagetables.PTEs)
		m.frames[phys] = t
	}
	return t
}
