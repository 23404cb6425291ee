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

package memsim

import (
	"pagekit.dev/pagekit/pkg/hostarch"
)

// BumpAllocator hands out the usable frames of a boot memory map in
// ascending order and never reuses one. It is the allocator an early
// kernel runs on before any real memory management exists: Deallocate
// drops the frame on the floor.
type BumpAllocator struct {
	regions []Region
	region  int
	next    hostarch.PhysAddr
}

// NewBumpAllocator builds a bump allocator over the usable regions of
// the given memory map.
func NewBumpAllocator(regions []Region) (*BumpAllocator, error) {
	if err := validateRegions(regions); err != nil {
		return nil, err
	}
	a := &BumpAllocator{regions: regions}
	a.skipUnusable()
	return a, nil
}

// skipUnusable advances the cursor to the next usable region, if any.
func (a *BumpAllocator) skipUnusable() {
	for a.region < len(a.regions) {
		r := a.regions[a.region]
		if r.Kind == RegionUsable && a.next < r.Start {
			a.next = r.Start
		}
		if r.Kind == RegionUsable && a.next < r.End {
			return
		}
		a.region++
		a.next = 0
	}
}

// Allocate implements pagetables.FrameAllocator.
func (a *BumpAllocator) Allocate() (hostarch.PhysAddr, bool) {
	if a.region >= len(a.regions) {
		return 0, false
	}
	frame := a.next
	a.next += hostarch.PageSize
	a.skipUnusable()
	return frame, true
}

// Deallocate implements pagetables.FrameAllocator. Bump allocators do
// not reuse frames.
func (a *BumpAllocator) Deallocate(hostarch.PhysAddr) {}

// EmptyAllocator is permanently exhausted. It exists for tests that
// need to drive a mapper into its out-of-frames path.
type EmptyAllocator struct{}

// Allocate implements pagetables.FrameAllocator.
func (EmptyAllocator) Allocate() (hostarch.PhysAddr, bool) {
	return 0, false
}

// Deallocate implements pagetables.FrameAllocator.
func (EmptyAllocator) Deallocate(hostarch.PhysAddr) {}
