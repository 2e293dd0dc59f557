// Copyright 2019 The Mangos Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import (
	"math"
	"math/rand"
	"testing"
)

func TestScalarRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.WriteBool(true)
	w.WriteBool(false)
	w.WriteU8(0xAB)
	w.WriteI8(-1)
	w.WriteU16(0xBEEF)
	w.WriteI16(-2)
	w.WriteU32(0xDEADBEEF)
	w.WriteI32(-3)
	w.WriteU64(0x0102030405060708)
	w.WriteI64(-4)
	w.WriteF32(3.5)
	w.WriteF64(-2.25)

	r := NewReader(w.Bytes())
	mustBool(t, r, true)
	mustBool(t, r, false)
	mustU8(t, r, 0xAB)
	if v, err := r.ReadI8(); err != nil || v != -1 {
		t.Fatalf("ReadI8 = %v, %v", v, err)
	}
	if v, err := r.ReadU16(); err != nil || v != 0xBEEF {
		t.Fatalf("ReadU16 = %v, %v", v, err)
	}
	if v, err := r.ReadI16(); err != nil || v != -2 {
		t.Fatalf("ReadI16 = %v, %v", v, err)
	}
	if v, err := r.ReadU32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadU32 = %v, %v", v, err)
	}
	if v, err := r.ReadI32(); err != nil || v != -3 {
		t.Fatalf("ReadI32 = %v, %v", v, err)
	}
	if v, err := r.ReadU64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("ReadU64 = %v, %v", v, err)
	}
	if v, err := r.ReadI64(); err != nil || v != -4 {
		t.Fatalf("ReadI64 = %v, %v", v, err)
	}
	if v, err := r.ReadF32(); err != nil || v != 3.5 {
		t.Fatalf("ReadF32 = %v, %v", v, err)
	}
	if v, err := r.ReadF64(); err != nil || v != -2.25 {
		t.Fatalf("ReadF64 = %v, %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected no remaining bytes, got %d", r.Remaining())
	}
}

func mustBool(t *testing.T, r *Reader, want bool) {
	v, err := r.ReadBool()
	if err != nil || v != want {
		t.Fatalf("ReadBool = %v, %v, want %v", v, err, want)
	}
}

func mustU8(t *testing.T, r *Reader, want uint8) {
	v, err := r.ReadU8()
	if err != nil || v != want {
		t.Fatalf("ReadU8 = %v, %v, want %v", v, err, want)
	}
}

// TestFloatExtrema exercises P6: NaN and extrema round-trip exactly by
// bit pattern, not by value comparison (NaN != NaN).
func TestFloatExtrema(t *testing.T) {
	f32s := []float32{0, -0, float32(math.NaN()), math.MaxFloat32, -math.MaxFloat32,
		float32(math.Inf(1)), float32(math.Inf(-1))}
	for _, f := range f32s {
		w := NewWriter(0)
		w.WriteF32(f)
		got, err := NewReader(w.Bytes()).ReadF32()
		if err != nil {
			t.Fatalf("ReadF32 err: %v", err)
		}
		if math.Float32bits(got) != math.Float32bits(f) {
			t.Fatalf("f32 bit mismatch: got %x want %x", math.Float32bits(got), math.Float32bits(f))
		}
	}

	f64s := []float64{0, -0, math.NaN(), math.MaxFloat64, -math.MaxFloat64,
		math.Inf(1), math.Inf(-1)}
	for _, f := range f64s {
		w := NewWriter(0)
		w.WriteF64(f)
		got, err := NewReader(w.Bytes()).ReadF64()
		if err != nil {
			t.Fatalf("ReadF64 err: %v", err)
		}
		if math.Float64bits(got) != math.Float64bits(f) {
			t.Fatalf("f64 bit mismatch: got %x want %x", math.Float64bits(got), math.Float64bits(f))
		}
	}
}

// TestU64ExplicitShuffle pins down the byte layout so a future change
// back to "compose two 32-bit swaps" (the source's original portability
// bug) would be caught.
func TestU64ExplicitShuffle(t *testing.T) {
	w := NewWriter(0)
	w.WriteU64(0x0102030405060708)
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	got := w.Bytes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, got[i], want[i])
		}
	}
}

// TestWriteStringAlignment exercises P7.
func TestWriteStringAlignment(t *testing.T) {
	for _, s := range []string{"", "a", "ab", "abc", "abcd", "abcde"} {
		w := NewWriter(0)
		w.WriteString(s)
		if w.Len()%4 != 0 {
			t.Fatalf("len %q = %d, not 4-aligned", s, w.Len())
		}
		r := NewReader(w.Bytes())
		got, err := r.ReadString()
		if err != nil {
			t.Fatalf("ReadString(%q) err: %v", s, err)
		}
		if got != s {
			t.Fatalf("ReadString(%q) = %q", s, got)
		}
		if r.Position() != w.Len() {
			t.Fatalf("reader consumed %d bytes, writer emitted %d", r.Position(), w.Len())
		}
	}
}

func TestReaderTruncated(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	if _, err := r.ReadU32(); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestReaderSkipAndAlignSaturate(t *testing.T) {
	r := NewReader(make([]byte, 5))
	r.Skip(100)
	if r.Remaining() != 0 {
		t.Fatalf("Skip should saturate, remaining = %d", r.Remaining())
	}
	r2 := NewReader(make([]byte, 5))
	r2.SetPosition(3)
	r2.AlignTo(4)
	if r2.Position() != 4 {
		t.Fatalf("AlignTo(4) from 3 = %d, want 4", r2.Position())
	}
	if ok := r2.SetPosition(100); ok {
		t.Fatalf("SetPosition(100) on 5-byte buffer should fail")
	}
}

// TestScalarRandomized is a minimal stand-in for P6 across randomized
// inputs; the corpus carries no quickcheck-style dependency (DESIGN.md),
// so this loop uses math/rand directly.
func TestScalarRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		v := rng.Uint64()
		w := NewWriter(0)
		w.WriteU64(v)
		got, err := NewReader(w.Bytes()).ReadU64()
		if err != nil || got != v {
			t.Fatalf("iter %d: ReadU64 = %v, %v, want %v", i, got, err, v)
		}
	}
}
