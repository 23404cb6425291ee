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

	"pagekit.dev/pagekit/pkg/hostarch"
)

// PageSize selects the leaf level of a mapping.
type PageSize uint64

// The three leaf sizes long mode supports.
const (
	Size4KiB PageSize = hostarch.PageSize
	Size2MiB PageSize = hostarch.HugePageSize
	Size1GiB PageSize = hostarch.SuperPageSize
)

// level returns the table level that holds a leaf of this size. Calling
// it with anything but the three defined sizes is a caller bug.
func (s PageSize) level() int {
	switch s {
	case Size4KiB:
		return 1
	case Size2MiB:
		return 2
	case Size1GiB:
		return 3
	default:
		panic(fmt.Sprintf("pagetables: invalid page size %#x", uint64(s)))
	}
}

// Map installs a leaf mapping from vaddr to frame. Missing intermediate
// tables are allocated from alloc and zeroed before being linked in.
//
// Map fails with ErrAlreadyMapped if any mapping already covers vaddr at
// the target level; the existing mapping is left unchanged and the
// caller must Unmap first. It fails with ErrMisaligned if vaddr or frame
// is not aligned to size, and with ErrOutOfFrames if alloc runs dry, in
// which case the tables are not modified at all.
func (p *PageTables) Map(vaddr hostarch.VirtAddr, frame hostarch.PhysAddr, size PageSize, opts MapOpts, alloc FrameAllocator) error {
	return p.MapAt(size.level(), vaddr, frame, opts, alloc)
}

// MapAt is Map with an explicit leaf level. Levels 1-3 hold leaves;
// anything else fails with ErrInvalidLevel (the super bit is reserved at
// level 4, and level 1 entries are always terminal).
func (p *PageTables) MapAt(level int, vaddr hostarch.VirtAddr, frame hostarch.PhysAddr, opts MapOpts, alloc FrameAllocator) error {
	if level < 1 || level >= hostarch.PTLevels {
		return fmt.Errorf("%w: level %d", ErrInvalidLevel, level)
	}
	span := leafSpan(level)
	if !vaddr.IsAligned(span) {
		return fmt.Errorf("%w: virtual address %#x to %#x", ErrMisaligned, uint64(vaddr), span)
	}
	if !frame.IsAligned(span) {
		return fmt.Errorf("%w: frame %#x to %#x", ErrMisaligned, uint64(frame), span)
	}
	if _, err := hostarch.NewPhysAddr(uint64(frame)); err != nil {
		return err
	}

	// First pass: descend without touching anything, counting the
	// intermediate tables that are missing. Once one level is absent
	// everything below it is too.
	table := p.root
	missing := 0
	for l := hostarch.PTLevels; l > level; l-- {
		if missing > 0 {
			missing++
			continue
		}
		entry := &table[vaddr.PTIndex(l)]
		if !entry.Valid() {
			missing++
			continue
		}
		if entry.IsSuper() {
			if l == hostarch.PTLevels {
				return fmt.Errorf("%w: super bit at level %d", ErrReservedBitSet, l)
			}
			// A larger leaf already covers this address.
			return fmt.Errorf("%w: %#x covered by a level-%d leaf", ErrAlreadyMapped, uint64(vaddr), l)
		}
		table = p.mem.Table(entry.Address())
	}
	if missing == 0 && table[vaddr.PTIndex(level)].Valid() {
		return fmt.Errorf("%w: %#x", ErrAlreadyMapped, uint64(vaddr))
	}

	// Reserve every frame we need before writing a single entry, so an
	// exhausted allocator cannot leave a half-linked chain behind.
	frames := make([]hostarch.PhysAddr, 0, missing)
	for i := 0; i < missing; i++ {
		f, ok := alloc.Allocate()
		if !ok {
			for _, g := range frames {
				alloc.Deallocate(g)
			}
			return fmt.Errorf("%w: need %d intermediate tables", ErrOutOfFrames, missing)
		}
		frames = append(frames, f)
	}

	// Second pass: link the reserved tables top-down, then write the
	// leaf.
	table = p.root
	next := 0
	for l := hostarch.PTLevels; l > level; l-- {
		entry := &table[vaddr.PTIndex(l)]
		if entry.Valid() {
			table = p.mem.Table(entry.Address())
			continue
		}
		tableFrame := frames[next]
		next++
		lower := p.mem.Table(tableFrame)
		lower.zero()
		entry.setPageTable(tableFrame, opts)
		table = lower
	}
	entry := &table[vaddr.PTIndex(level)]
	if level > 1 {
		entry.SetSuper()
	}
	return entry.Set(frame, opts)
}

// Unmap removes the leaf covering vaddr, zeroing the entry, and returns
// the frame it mapped so the caller can hand it back to an allocator.
// Intermediate tables that become empty are deliberately not reclaimed;
// doing that safely needs an explicit policy this package does not have.
//
// Unmap does not flush any translation cache.
func (p *PageTables) Unmap(vaddr hostarch.VirtAddr) (hostarch.PhysAddr, error) {
	table := p.root
	for level := hostarch.PTLevels; ; level-- {
		entry := &table[vaddr.PTIndex(level)]
		if !entry.Valid() {
			return 0, fmt.Errorf("%w: %#x", ErrNotMapped, uint64(vaddr))
		}
		if entry.IsSuper() {
			if level == hostarch.PTLevels || level == 1 {
				return 0, fmt.Errorf("%w: super bit at level %d", ErrReservedBitSet, level)
			}
			frame := entry.Address()
			entry.Clear()
			return frame, nil
		}
		if level == 1 {
			frame := entry.Address()
			entry.Clear()
			return frame, nil
		}
		table = p.mem.Table(entry.Address())
	}
}

// IdentityMap installs 4 KiB mappings with virtual == physical for every
// frame in [start, end). It is how device regions like a frame buffer
// get a fixed, predictable address before any general allocator exists.
func (p *PageTables) IdentityMap(start, end hostarch.PhysAddr, opts MapOpts, alloc FrameAllocator) error {
	if !start.IsPageAligned() || !end.IsPageAligned() {
		return fmt.Errorf("%w: identity region [%#x, %#x)", ErrMisaligned, uint64(start), uint64(end))
	}
	for frame := start; frame < end; frame += hostarch.PageSize {
		vaddr, err := hostarch.NewVirtAddr(uint64(frame))
		if err != nil {
			return err
		}
		if err := p.Map(vaddr, frame, Size4KiB, opts, alloc); err != nil {
			return err
		}
	}
	return nil
}

// MapRange installs length bytes of contiguous mappings of the given
// size, starting at vaddr backed by frame. length must be a multiple of
// size. The first error stops the loop; pages mapped so far stay mapped.
func (p *PageTables) MapRange(vaddr hostarch.VirtAddr, frame hostarch.PhysAddr, length uint64, size PageSize, opts MapOpts, alloc FrameAllocator) error {
	if length%uint64(size) != 0 {
		return fmt.Errorf("%w: length %#x to %#x", ErrMisaligned, length, uint64(size))
	}
	for off := uint64(0); off < length; off += uint64(size) {
		v, err := hostarch.NewVirtAddr(uint64(vaddr) + off)
		if err != nil {
			return err
		}
		if err := p.Map(v, frame+hostarch.PhysAddr(off), size, opts, alloc); err != nil {
			return err
		}
	}
	return nil
}
