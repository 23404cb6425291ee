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

// Package pagetables models the x86-64 long-mode translation structure: a
// 4-level tree of 512-entry tables that maps canonical virtual addresses
// to physical frames. The tables live in physical memory supplied by the
// caller; this package only ever reaches them through the Memory view,
// which stands in for the bootloader's linear mapping of all physical
// memory at a fixed offset.
//
// All operations are synchronous and bounded: a translation touches at
// most four tables, a map call allocates at most three fresh frames.
// Nothing here flushes translation caches; that is the caller's job.
package pagetables

import (
	"fmt"

	"pagekit.dev/pagekit/pkg/hostarch"
)

// entriesPerPage is the number of entries in one table. A table fills
// exactly one 4 KiB frame.
const entriesPerPage = 512

// PTEs is one level of the hierarchy: an ordered block of 512 entries.
type PTEs [entriesPerPage]PTE

// zero clears every entry in the table.
func (t *PTEs) zero() {
	for i := range t {
		t[i].Clear()
	}
}

// Memory provides access to physical frames that hold page tables. It
// models the fixed physical-memory offset established by the bootloader:
// given a table's physical address, it returns a view the walker can
// index directly.
type Memory interface {
	// Table returns the table stored at the given page-aligned
	// physical address.
	Table(phys hostarch.PhysAddr) *PTEs
}

// FrameAllocator supplies fresh 4 KiB physical frames. The mapper asks
// for one whenever an intermediate table is missing. Allocators are
// passed explicitly per call; there is no ambient global allocator.
type FrameAllocator interface {
	// Allocate returns a free page-aligned frame, or false if the
	// allocator is exhausted.
	Allocate() (hostarch.PhysAddr, bool)

	// Deallocate returns a frame obtained from Allocate.
	Deallocate(frame hostarch.PhysAddr)
}

// PageTables is one address space: a root (level 4) table plus the
// memory view needed to reach everything below it. Multiple independent
// PageTables may coexist; none of them is "active" in any global sense.
type PageTables struct {
	mem Memory

	// rootPhysical is the physical address of the level-4 table, the
	// value a kernel would load into CR3.
	rootPhysical hostarch.PhysAddr

	// root is the cached view of the root table.
	//
	// This is saved only to prevent constant translation.
	root *PTEs
}

// New allocates a zeroed root table from alloc and returns an empty
// address space backed by mem.
func New(mem Memory, alloc FrameAllocator) (*PageTables, error) {
	phys, ok := alloc.Allocate()
	if !ok {
		return nil, fmt.Errorf("%w: allocating root table", ErrOutOfFrames)
	}
	root := mem.Table(phys)
	root.zero()
	return &PageTables{
		mem:          mem,
		rootPhysical: phys,
		root:         root,
	}, nil
}

// Attach adopts an existing root table, e.g. the one handed off by the
// bootloader. The table contents are taken as-is.
func Attach(mem Memory, root hostarch.PhysAddr) (*PageTables, error) {
	if !root.IsPageAligned() {
		return nil, fmt.Errorf("%w: root table at %#x", ErrMisaligned, uint64(root))
	}
	return &PageTables{
		mem:          mem,
		rootPhysical: root,
		root:         mem.Table(root),
	}, nil
}

// RootPhysical returns the physical address of the level-4 table.
func (p *PageTables) RootPhysical() hostarch.PhysAddr {
	return p.rootPhysical
}
