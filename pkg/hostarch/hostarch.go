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

// Package hostarch defines the address types and page-size arithmetic for
// x86-64 long mode: 4-level translation with 9-bit indices and a 12-bit
// page offset, canonical 48-bit virtual addresses and 52-bit physical
// addresses.
package hostarch

const (
	// PageShift is log2(PageSize).
	PageShift = 12

	// PageSize is the size of a level-1 page and of one page table.
	PageSize = 1 << PageShift

	// HugePageShift is log2(HugePageSize).
	HugePageShift = 21

	// HugePageSize is the size of a level-2 (2 MiB) leaf mapping.
	HugePageSize = 1 << HugePageShift

	// SuperPageShift is log2(SuperPageSize).
	SuperPageShift = 30

	// SuperPageSize is the size of a level-3 (1 GiB) leaf mapping.
	SuperPageSize = 1 << SuperPageShift

	// ptIndexBits is the number of index bits consumed per table level.
	ptIndexBits = 9

	// ptIndexMask selects one level's index after shifting.
	ptIndexMask = (1 << ptIndexBits) - 1

	// VirtAddrBits is the number of significant bits in a canonical
	// virtual address. Bits above must replicate bit VirtAddrBits-1.
	VirtAddrBits = 48

	// PhysAddrBits is the modeled maximum physical address width.
	PhysAddrBits = 52
)

// PTLevels is the number of translation levels. Level 4 holds the root
// table, level 1 holds 4 KiB leaves.
const PTLevels = 4

// IndexShift returns the right-shift that exposes the table index for the
// given level. Level must be in [1, PTLevels].
func IndexShift(level int) uint {
	return uint(PageShift + ptIndexBits*(level-1))
}
