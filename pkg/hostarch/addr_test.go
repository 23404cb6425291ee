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
	"testing"
)

func TestNewVirtAddrCanonical(t *testing.T) {
	for _, tc := range []struct {
		raw uint64
		ok  bool
	}{
		{0x0, true},
		{0x7fffffffffff, true},                // highest low-half address
		{0xffff800000000000, true},            // lowest high-half address
		{0xffffffffffffffff, true},            // top of the high half
		{0x800000000000, false},               // bit 47 set, no sign extension
		{0xfffeffffffffffff, false},           // hole in the extension bits
		{0x0123456789abcdef, false},           // garbage upper bits
		{uint64(1) << 63, false},              // only bit 63 set
		{0xffff7fffffffffff, false},           // bit 47 clear, upper bits set
		{0x00007fffffffe000, true},            // typical user stack
		{0xffffffff80000000, true},            // typical kernel text
	} {
		_, err := NewVirtAddr(tc.raw)
		if got := err == nil; got != tc.ok {
			t.Errorf("NewVirtAddr(%#x): got err %v, want ok=%v", tc.raw, err, tc.ok)
		}
		if err != nil && !errors.Is(err, ErrNonCanonical) {
			t.Errorf("NewVirtAddr(%#x): error %v is not ErrNonCanonical", tc.raw, err)
		}
	}
}

func TestVirtAddrIndexes(t *testing.T) {
	// The conformance address: indices (1, 0, 511, 127), offset 0x5CE.
	v, err := NewVirtAddr(0x803FE7F5CE)
	if err != nil {
		t.Fatalf("NewVirtAddr: %v", err)
	}
	want := [PTLevels]uint16{1, 0, 511, 127}
	if got := v.Indexes(); got != want {
		t.Errorf("Indexes() = %v, want %v", got, want)
	}
	if got := v.PageOffset(); got != 0x5CE {
		t.Errorf("PageOffset() = %#x, want 0x5ce", got)
	}
}

func TestVirtAddrIndexBounds(t *testing.T) {
	v := VirtAddr(0xffffffffffffffff)
	for level := 1; level <= PTLevels; level++ {
		if got := v.PTIndex(level); got != 511 {
			t.Errorf("PTIndex(%d) of all-ones = %d, want 511", level, got)
		}
	}
	if got := v.PageOffset(); got != 4095 {
		t.Errorf("PageOffset of all-ones = %d, want 4095", got)
	}
}

func TestNewPhysAddr(t *testing.T) {
	if _, err := NewPhysAddr(1<<PhysAddrBits - PageSize); err != nil {
		t.Errorf("NewPhysAddr just below the limit: %v", err)
	}
	if _, err := NewPhysAddr(1 << PhysAddrBits); !errors.Is(err, ErrPhysRange) {
		t.Errorf("NewPhysAddr(1<<52): got %v, want ErrPhysRange", err)
	}
}

func TestAlignment(t *testing.T) {
	p := PhysAddr(0x201000)
	if !p.IsPageAligned() {
		t.Errorf("%#x should be page aligned", uint64(p))
	}
	if p.IsAligned(HugePageSize) {
		t.Errorf("%#x should not be 2 MiB aligned", uint64(p))
	}
	if got := p.RoundDown(HugePageSize); got != 0x200000 {
		t.Errorf("RoundDown(2M) = %#x, want 0x200000", uint64(got))
	}
	if got, ok := p.RoundUp(HugePageSize); !ok || got != 0x400000 {
		t.Errorf("RoundUp(2M) = %#x, %v, want 0x400000, true", uint64(got), ok)
	}
	if got, ok := PhysAddr(0).RoundUp(PageSize); !ok || got != 0 {
		t.Errorf("RoundUp(0) = %#x, %v, want 0, true", uint64(got), ok)
	}
}
