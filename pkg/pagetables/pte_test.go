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
	"errors"
	"testing"

	"pagekit.dev/pagekit/pkg/hostarch"
)

func TestPTERoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		addr hostarch.PhysAddr
		opts MapOpts
	}{
		{"plain", 0x3000, MapOpts{}},
		{"writable", 0x7fff000, MapOpts{Writable: true}},
		{"user-nx", 0x42000, MapOpts{User: true, NoExecute: true}},
		{"uncached", 0x9000, MapOpts{WriteThrough: true, CacheDisabled: true}},
		{"global", 0xffffff000, MapOpts{Global: true, Writable: true}},
		{"everything", 0x8000000000, MapOpts{
			Writable:      true,
			User:          true,
			WriteThrough:  true,
			CacheDisabled: true,
			Global:        true,
			NoExecute:     true,
		}},
		{"top-of-phys", hostarch.PhysAddr(1<<hostarch.PhysAddrBits) - hostarch.PageSize, MapOpts{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var pte PTE
			if err := pte.Set(tc.addr, tc.opts); err != nil {
				t.Fatalf("Set(%#x): %v", uint64(tc.addr), err)
			}
			if !pte.Valid() {
				t.Error("entry not valid after Set")
			}
			if got := pte.Address(); got != tc.addr {
				t.Errorf("Address() = %#x, want %#x", uint64(got), uint64(tc.addr))
			}
			if got := pte.Opts(); got != tc.opts {
				t.Errorf("Opts() = %+v, want %+v", got, tc.opts)
			}
			if !pte.Accessed() {
				t.Error("Set must mark the entry accessed")
			}
			pte.Clear()
			if pte != 0 {
				t.Errorf("Clear left residue %#x", uint64(pte))
			}
		})
	}
}

func TestPTESetMisaligned(t *testing.T) {
	var pte PTE
	if err := pte.Set(0x3001, MapOpts{}); !errors.Is(err, ErrMisaligned) {
		t.Errorf("Set(0x3001): got %v, want ErrMisaligned", err)
	}
	if err := pte.Set(0x3800, MapOpts{}); !errors.Is(err, ErrMisaligned) {
		t.Errorf("Set(0x3800): got %v, want ErrMisaligned", err)
	}
	if pte.Valid() {
		t.Error("failed Set must not modify the entry")
	}
}

func TestPTESetOutOfRange(t *testing.T) {
	var pte PTE
	if err := pte.Set(1<<hostarch.PhysAddrBits, MapOpts{}); !errors.Is(err, hostarch.ErrPhysRange) {
		t.Errorf("Set(1<<52): got %v, want ErrPhysRange", err)
	}
}

func TestPTESuper(t *testing.T) {
	var pte PTE
	pte.SetSuper()
	if !pte.IsSuper() {
		t.Error("IsSuper() false after SetSuper")
	}
	if pte.Valid() {
		t.Error("SetSuper alone must not make the entry valid")
	}
	if err := pte.Set(0x200000, MapOpts{Writable: true}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !pte.IsSuper() {
		t.Error("Set must preserve the super bit")
	}

	defer func() {
		if recover() == nil {
			t.Error("SetSuper on a valid entry must panic")
		}
	}()
	pte.SetSuper()
}

func TestPTESoftwareBits(t *testing.T) {
	var pte PTE
	if err := pte.Set(0x5000, MapOpts{Writable: true}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	pte.SetSoftware(0x5)
	pte.SetSoftwareHigh(0x6ab)
	if got := pte.Software(); got != 0x5 {
		t.Errorf("Software() = %#x, want 0x5", got)
	}
	if got := pte.SoftwareHigh(); got != 0x6ab {
		t.Errorf("SoftwareHigh() = %#x, want 0x6ab", got)
	}
	// Software bits must never leak into the address or the options.
	if got := pte.Address(); got != 0x5000 {
		t.Errorf("Address() = %#x after software writes, want 0x5000", uint64(got))
	}
	want := MapOpts{Writable: true}
	if got := pte.Opts(); got != want {
		t.Errorf("Opts() = %+v after software writes, want %+v", got, want)
	}
}

// TestPTEDecodeRaw covers the decode direction: a PTE is its own wire
// format, so building one from a raw word must expose the same fields
// hardware would see.
func TestPTEDecodeRaw(t *testing.T) {
	// present | writable | accessed | dirty | global, frame 0xabc000,
	// NX set.
	raw := uint64(1<<63 | 0xabc000 | 0x163)
	pte := PTE(raw)
	if !pte.Valid() || !pte.Accessed() || !pte.Dirty() || !pte.Global() {
		t.Errorf("decoded flags wrong for %#x", raw)
	}
	if got := pte.Address(); got != 0xabc000 {
		t.Errorf("Address() = %#x, want 0xabc000", uint64(got))
	}
	opts := pte.Opts()
	if !opts.Writable || !opts.NoExecute || !opts.Global || opts.User {
		t.Errorf("Opts() = %+v", opts)
	}
	if uint64(pte) != raw {
		t.Errorf("re-encode changed the word: %#x != %#x", uint64(pte), raw)
	}
}
