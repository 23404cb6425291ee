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
	"github.com/google/btree"

	"pagekit.dev/pagekit/pkg/hostarch"
)

// freeListDegree is the btree branching factor. Nothing here is
// performance critical; this matches the library default.
const freeListDegree = 16

// FreeListAllocator tracks free frames in an ordered set, so Allocate
// always returns the lowest free frame and Deallocate makes a frame
// available again. The set is frame-granular, which keeps the code
// simple and is fine for the machine sizes this package simulates.
type FreeListAllocator struct {
	free *btree.BTreeG[hostarch.PhysAddr]
}

// NewFreeListAllocator seeds a free list with every usable frame of the
// given memory map.
func NewFreeListAllocator(regions []Region) (*FreeListAllocator, error) {
	if err := validateRegions(regions); err != nil {
		return nil, err
	}
	free := btree.NewG(freeListDegree, func(a, b hostarch.PhysAddr) bool {
		return a < b
	})
	for _, r := range regions {
		if r.Kind != RegionUsable {
			continue
		}
		for frame := r.Start; frame < r.End; frame += hostarch.PageSize {
			free.ReplaceOrInsert(frame)
		}
	}
	return &FreeListAllocator{free: free}, nil
}

// Allocate implements pagetables.FrameAllocator.
func (a *FreeListAllocator) Allocate() (hostarch.PhysAddr, bool) {
	return a.free.DeleteMin()
}

// Deallocate implements pagetables.FrameAllocator. Deallocating a frame
// twice is harmless; the set keeps one copy.
func (a *FreeListAllocator) Deallocate(frame hostarch.PhysAddr) {
	a.free.ReplaceOrInsert(frame)
}

// FreeFrames returns the number of frames currently free.
func (a *FreeListAllocator) FreeFrames() int {
	return a.free.Len()
}
