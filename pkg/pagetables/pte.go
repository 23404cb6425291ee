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
	"fmt"
	"sync/atomic"

	"pagekit.dev/pagekit/pkg/hostarch"
)

// Bits in page table entries. The layout is defined by the CPU
// architecture and is bit-exact.
const (
	present      = 1 << 0
	writable     = 1 << 1
	user         = 1 << 2
	writeThrough = 1 << 3
	cacheDisable = 1 << 4
	accessed     = 1 << 5
	dirty        = 1 << 6
	super        = 1 << 7
	global       = 1 << 8

	executeDisable = 1 << 63

	// swLowMask covers bits 9-11, swHighMask bits 52-62. Both ranges
	// are ignored by hardware and free for software use.
	swLowShift  = 9
	swLowMask   = uint64(0x7) << swLowShift
	swHighShift = 52
	swHighMask  = uint64(0x7ff) << swHighShift

	// addrMask covers bits 12-51, the page-aligned physical address of
	// the next table or the mapped frame.
	addrMask = uint64(0x000ffffffffff000)
)

// MapOpts are the software-controllable attributes of a mapping.
type MapOpts struct {
	// Writable permits writes through this mapping.
	Writable bool

	// User permits non-privileged access.
	User bool

	// WriteThrough bypasses write-back caching.
	WriteThrough bool

	// CacheDisabled forbids caching for this mapping.
	CacheDisabled bool

	// Global keeps the translation across address-space switches.
	Global bool

	// NoExecute forbids instruction fetch from this page.
	NoExecute bool
}

// PTE is one 8-byte page table entry. The zero value is a non-present
// entry. A PTE is its own wire format: converting to and from uint64 is
// the encode/decode operation.
type PTE uint64

// load returns the raw entry value.
//
// Entries are read and written atomically, matching what hardware does
// with the accessed and dirty bits on a live table.
func (p *PTE) load() uint64 {
	return atomic.LoadUint64((*uint64)(p))
}

func (p *PTE) store(v uint64) {
	atomic.StoreUint64((*uint64)(p), v)
}

// Clear zeroes this entry, including super page information.
func (p *PTE) Clear() {
	p.store(0)
}

// Valid returns true iff this entry is present.
func (p *PTE) Valid() bool {
	return p.load()&present != 0
}

// SetSuper marks this entry as a huge-page leaf (1 GiB at level 3,
// 2 MiB at level 2).
//
// The entry must not be valid or a panic will result.
func (p *PTE) SetSuper() {
	if p.Valid() {
		// This is not allowed.
		panic("SetSuper called on valid entry")
	}
	p.store(super)
}

// IsSuper returns true iff this entry is a huge-page leaf.
func (p *PTE) IsSuper() bool {
	return p.load()&super != 0
}

// Accessed returns the hardware accessed bit. Hardware sets it on use
// and never clears it on its own.
func (p *PTE) Accessed() bool {
	return p.load()&accessed != 0
}

// Dirty returns the hardware dirty bit. Meaningful on leaf entries only.
func (p *PTE) Dirty() bool {
	return p.load()&dirty != 0
}

// Global returns the global bit.
func (p *PTE) Global() bool {
	return p.load()&global != 0
}

// Address extracts the physical address of the next table or mapped
// frame. The result carries no meaning unless Valid returns true.
func (p *PTE) Address() hostarch.PhysAddr {
	return hostarch.PhysAddr(p.load() & addrMask)
}

// Opts returns the software-controllable attributes of this entry.
func (p *PTE) Opts() MapOpts {
	v := p.load()
	return MapOpts{
		Writable:      v&writable != 0,
		User:          v&user != 0,
		WriteThrough:  v&writeThrough != 0,
		CacheDisabled: v&cacheDisable != 0,
		Global:        v&global != 0,
		NoExecute:     v&executeDisable != 0,
	}
}

// Set installs addr and opts in this entry and marks it present. The
// super bit is preserved so that a huge leaf can be prepared with
// SetSuper first. addr must be page aligned and within the physical
// address width; the codec does not know the entry's level, so huge-page
// alignment is enforced by the mapper.
func (p *PTE) Set(addr hostarch.PhysAddr, opts MapOpts) error {
	if !addr.IsPageAligned() {
		return fmt.Errorf("%w: entry address %#x", ErrMisaligned, uint64(addr))
	}
	if uint64(addr)&^addrMask != 0 {
		return fmt.Errorf("%w: entry address %#x", hostarch.ErrPhysRange, uint64(addr))
	}
	v := (p.load() & super) | uint64(addr) | present | accessed
	if opts.Writable {
		v |= writable
	}
	if opts.User {
		v |= user
	}
	if opts.WriteThrough {
		v |= writeThrough
	}
	if opts.CacheDisabled {
		v |= cacheDisable
	}
	if opts.Global {
		v |= global
	}
	if opts.NoExecute {
		v |= executeDisable
	}
	p.store(v)
	return nil
}

// setPageTable points this entry at a lower-level table. Intermediate
// entries are installed writable so that leaf permissions alone decide
// access; the user bit is copied from opts since hardware requires it at
// every level of a user-reachable path.
func (p *PTE) setPageTable(addr hostarch.PhysAddr, opts MapOpts) {
	v := uint64(addr&hostarch.PhysAddr(addrMask)) | present | writable | accessed
	if opts.User {
		v |= user
	}
	p.store(v)
}

// Software returns the 3 software-available bits at 9-11. The
// translation logic never interprets them.
func (p *PTE) Software() uint8 {
	return uint8((p.load() & swLowMask) >> swLowShift)
}

// SetSoftware stores the low 3 bits of v at bits 9-11.
func (p *PTE) SetSoftware(v uint8) {
	p.store((p.load() &^ swLowMask) | (uint64(v)<<swLowShift)&swLowMask)
}

// SoftwareHigh returns the 11 software-available bits at 52-62.
func (p *PTE) SoftwareHigh() uint16 {
	return uint16((p.load() & swHighMask) >> swHighShift)
}

// SetSoftwareHigh stores the low 11 bits of v at bits 52-62.
func (p *PTE) SetSoftwareHigh(v uint16) {
	p.store((p.load() &^ swHighMask) | (uint64(v)<<swHighShift)&swHighMask)
}
