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

import "errors"

var (
	// ErrNotMapped is returned when a walk hits a non-present entry
	// before reaching a leaf.
	ErrNotMapped = errors.New("virtual address is not mapped")

	// ErrAlreadyMapped is returned when a map call finds a leaf, or a
	// populated slot, at the target position. The existing mapping is
	// left untouched; callers must unmap explicitly first.
	ErrAlreadyMapped = errors.New("virtual address is already mapped")

	// ErrMisaligned is returned when a frame or virtual address is not
	// aligned to the requested page size.
	ErrMisaligned = errors.New("address is not aligned to the page size")

	// ErrOutOfFrames is returned when the frame allocator is exhausted.
	// The tables are left exactly as they were.
	ErrOutOfFrames = errors.New("frame allocator is exhausted")

	// ErrReservedBitSet is returned when the super bit is found at
	// level 4 or level 1. Hardware never writes such an entry; seeing
	// one means the tables are corrupt.
	ErrReservedBitSet = errors.New("reserved bit set in page table entry")

	// ErrInvalidLevel is returned when a leaf mapping is requested at a
	// level that cannot hold one.
	ErrInvalidLevel = errors.New("no leaf mappings at this level")
)
