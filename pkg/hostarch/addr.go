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

package hostarch

import (
	"errors"
	"fmt"
)

var (
	// ErrNonCanonical is returned when a raw virtual address does not
	// sign-extend bit 47 through the upper 16 bits.
	ErrNonCanonical = errors.New("virtual address is non-canonical")

	// ErrPhysRange is returned when a raw physical address exceeds the
	// modeled physical address width.
	ErrPhysRange = errors.New("physical address exceeds 52 bits")
)

// VirtAddr is a canonical 64-bit virtual address.
type VirtAddr uint64

// NewVirtAddr validates raw as a canonical virtual address. Bits 63-48
// must equal bit 47.
func NewVirtAddr(raw uint64) (VirtAddr, error) {
	switch raw >> (VirtAddrBits - 1) {
	case 0, 0x1ffff:
		return VirtAddr(raw), nil
	default:
		return 0, fmt.Errorf("%w: %#x", ErrNonCanonical, raw)
	}
}

// IsCanonical returns true iff v passes the NewVirtAddr check.
func (v VirtAddr) IsCanonical() bool {
	_, err := NewVirtAddr(uint64(v))
	return err == nil
}

// PTIndex returns the table index selected by v at the given level, in
// [0, 511]. Level must be in [1, PTLevels].
func (v VirtAddr) PTIndex(level int) uint16 {
	return uint16((uint64(v) >> IndexShift(level)) & ptIndexMask)
}

// Indexes returns all four table indices ordered level 4 down to level 1.
func (v VirtAddr) Indexes() [PTLevels]uint16 {
	return [PTLevels]uint16{
		v.PTIndex(4),
		v.PTIndex(3),
		v.PTIndex(2),
		v.PTIndex(1),
	}
}

// PageOffset returns the low 12 bits of v.
func (v VirtAddr) PageOffset() uint16 {
	return uint16(uint64(v) & (PageSize - 1))
}

// RoundDown returns v rounded down to the nearest multiple of size.
// size must be a power of two.
func (v VirtAddr) RoundDown(size uint64) VirtAddr {
	return v &^ VirtAddr(size-1)
}

// IsAligned returns true iff v is a multiple of size.
func (v VirtAddr) IsAligned(size uint64) bool {
	return uint64(v)&(size-1) == 0
}

// IsPageAligned returns true iff v is 4 KiB aligned.
func (v VirtAddr) IsPageAligned() bool {
	return v.IsAligned(PageSize)
}

// PhysAddr is a physical address: the base of a frame or the location of
// a page table. At most PhysAddrBits significant bits.
type PhysAddr uint64

// NewPhysAddr validates raw against the physical address width.
func NewPhysAddr(raw uint64) (PhysAddr, error) {
	if raw >= 1<<PhysAddrBits {
		return 0, fmt.Errorf("%w: %#x", ErrPhysRange, raw)
	}
	return PhysAddr(raw), nil
}

// RoundDown returns p rounded down to the nearest multiple of size.
// size must be a power of two.
func (p PhysAddr) RoundDown(size uint64) PhysAddr {
	return p &^ PhysAddr(size-1)
}

// RoundUp returns p rounded up to the nearest multiple of size. ok is
// false iff rounding up wrapped around.
func (p PhysAddr) RoundUp(size uint64) (addr PhysAddr, ok bool) {
	addr = (p + PhysAddr(size-1)).RoundDown(size)
	ok = addr >= p
	return
}

// IsAligned returns true iff p is a multiple of size.
func (p PhysAddr) IsAligned(size uint64) bool {
	return uint64(p)&(size-1) == 0
}

// IsPageAligned returns true iff p is 4 KiB aligned.
func (p PhysAddr) IsPageAligned() bool {
	return p.IsAligned(PageSize)
}
