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
	"fmt"

	"pagekit.dev/pagekit/pkg/hostarch"
)

// RegionKind classifies one entry of the boot memory map.
type RegionKind int

const (
	// RegionUsable memory may be handed out as frames.
	RegionUsable RegionKind = iota

	// RegionReserved memory belongs to firmware, devices, or the
	// loaded kernel image and must never be allocated.
	RegionReserved
)

// String implements fmt.Stringer.
func (k RegionKind) String() string {
	switch k {
	case RegionUsable:
		return "usable"
	case RegionReserved:
		return "reserved"
	default:
		return fmt.Sprintf("RegionKind(%d)", int(k))
	}
}

// Region is one half-open range [Start, End) of the boot memory map.
type Region struct {
	Start hostarch.PhysAddr
	End   hostarch.PhysAddr
	Kind  RegionKind
}

// FrameCount returns the number of whole frames the region spans.
func (r Region) FrameCount() uint64 {
	return uint64(r.End-r.Start) / hostarch.PageSize
}

// validateRegions rejects unaligned or inverted regions.
func validateRegions(regions []Region) error {
	for _, r := range regions {
		if !r.Start.IsPageAligned() || !r.End.IsPageAligned() {
			return fmt.Errorf("region [%#x, %#x) is not page aligned", uint64(r.Start), uint64(r.End))
		}
		if r.End <= r.Start {
			return fmt.Errorf("region [%#x, %#x) is empty or inverted", uint64(r.Start), uint64(r.End))
		}
	}
	return nil
}
