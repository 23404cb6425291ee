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

package pagetables

import (
	"pagekit.dev/pagekit/pkg/hostarch"
)

// leafSpan returns the amount of virtual address space covered by one
// leaf entry at the given level: 4 KiB at level 1, 2 MiB at level 2,
// 1 GiB at level 3.
func leafSpan(level int) uint64 {
	return 1 << hostarch.IndexShift(level)
}

// Lookup walks the tables for vaddr and returns the leaf entry together
// with the level it was found at. It fails with ErrNotMapped if a
// non-present entry is hit first, and with ErrReservedBitSet if the
// super bit shows up at level 4 or level 1, which hardware cannot
// produce and which means the tables are corrupt.
func (p *PageTables) Lookup(vaddr hostarch.VirtAddr) (PTE, int, error) {
	table := p.root
	for level := hostarch.PTLevels; ; level-- {
		entry := table[vaddr.PTIndex(level)]
		if !entry.Valid() {
			return 0, level, ErrNotMapped
		}
		if entry.IsSuper() {
			if level == hostarch.PTLevels || level == 1 {
				return 0, level, ErrReservedBitSet
			}
			return entry, level, nil
		}
		if level == 1 {
			return entry, 1, nil
		}
		table = p.mem.Table(entry.Address())
	}
}

// Translate resolves vaddr to a physical address, mirroring exactly what
// the MMU would do: descend from the root, stop at the leaf, and append
// the bits of vaddr not consumed by the indices walked so far (12 bits
// for a 4 KiB leaf, 21 for 2 MiB, 30 for 1 GiB).
func (p *PageTables) Translate(vaddr hostarch.VirtAddr) (hostarch.PhysAddr, error) {
	entry, level, err := p.Lookup(vaddr)
	if err != nil {
		return 0, err
	}
	remainder := uint64(vaddr) & (leafSpan(level) - 1)
	return entry.Address() + hostarch.PhysAddr(remainder), nil
}

// LeafVisit is called by Leaves for every present leaf entry. vaddr is
// the first virtual address the leaf covers. Returning false stops the
// walk.
type LeafVisit func(vaddr hostarch.VirtAddr, entry PTE, level int) bool

// Leaves walks every present leaf in the address space in ascending
// virtual-address order. Non-present subtrees are skipped, so the cost
// is proportional to what is actually mapped. Entries with the super bit
// at level 4 or level 1 are corrupt and are skipped.
func (p *PageTables) Leaves(visit LeafVisit) {
	p.visitLeaves(p.root, hostarch.PTLevels, 0, visit)
}

func (p *PageTables) visitLeaves(table *PTEs, level int, base uint64, visit LeafVisit) bool {
	for i := 0; i < entriesPerPage; i++ {
		entry := table[i]
		if !entry.Valid() {
			continue
		}
		vaddr := base | uint64(i)<<hostarch.IndexShift(level)
		if level == hostarch.PTLevels && i >= entriesPerPage/2 {
			// Upper-half entries sign-extend into the canonical
			// high range.
			vaddr |= ^(uint64(1)<<hostarch.VirtAddrBits - 1)
		}
		switch {
		case level == 1:
			if entry.IsSuper() {
				continue
			}
			if !visit(hostarch.VirtAddr(vaddr), entry, level) {
				return false
			}
		case entry.IsSuper():
			if level == hostarch.PTLevels {
				continue
			}
			if !visit(hostarch.VirtAddr(vaddr), entry, level) {
				return false
			}
		default:
			if !p.visitLeaves(p.mem.Table(entry.Address()), level-1, vaddr, visit) {
				return false
			}
		}
	}
	return true
}
