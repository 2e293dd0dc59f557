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

package sd

import (
	"fmt"

	"github.com/go-someip/someip/wire"
)

// SdMessage is a decoded Service-Discovery message: the 8-byte header,
// the entries array, and the options array. The codec does not bind
// entries to options semantically -- it only preserves each entry's
// (Index1, OptionsCount1) / (Index2, OptionsCount2) pointers into the
// Options slice, per spec.md §4.3.
type SdMessage struct {
	Flags   uint8
	Entries []SdEntry
	Options []SdOption
}

// New returns an empty SdMessage ready to have entries/options
// appended.
func New() *SdMessage {
	return &SdMessage{}
}

// IsReboot reports whether the REBOOT flag (0x80) is set.
func (m *SdMessage) IsReboot() bool { return m.Flags&FlagReboot != 0 }

// SetReboot sets or clears the REBOOT flag without disturbing the
// other bits, mirroring the original's symmetrical getter/setter pair
// (SPEC_FULL.md §4 supplemented features).
func (m *SdMessage) SetReboot(v bool) {
	if v {
		m.Flags |= FlagReboot
	} else {
		m.Flags &^= FlagReboot
	}
}

// IsUnicast reports whether the UNICAST flag (0x40) is set.
func (m *SdMessage) IsUnicast() bool { return m.Flags&FlagUnicast != 0 }

// SetUnicast sets or clears the UNICAST flag without disturbing the
// other bits.
func (m *SdMessage) SetUnicast(v bool) {
	if v {
		m.Flags |= FlagUnicast
	} else {
		m.Flags &^= FlagUnicast
	}
}

// Encode writes the full SD wire format: the 8-byte header (flags, 3
// reserved zero bytes, and the back-patched entries-array length),
// each entry, the back-patched options-array length, then each
// option.
func (m *SdMessage) Encode() []byte {
	w := wire.NewWriter(HeaderSize + len(m.Entries)*EntrySize)
	w.WriteU8(m.Flags)
	w.Pad(3) // reserved

	entriesLenPos := w.Len()
	w.WriteU32(0) // entries-length placeholder, back-patched below
	entriesStart := w.Len()
	for _, e := range m.Entries {
		w.WriteBytes(e.Encode())
	}
	entriesLen := w.Len() - entriesStart

	optionsLenPos := w.Len()
	w.WriteU32(0) // options-length placeholder, back-patched below
	optionsStart := w.Len()
	for _, o := range m.Options {
		w.WriteBytes(o.Encode())
	}
	optionsLen := w.Len() - optionsStart

	buf := w.Bytes()
	patchU32(buf, entriesLenPos, uint32(entriesLen))
	patchU32(buf, optionsLenPos, uint32(optionsLen))
	return buf
}

func patchU32(buf []byte, pos int, v uint32) {
	buf[pos] = byte(v >> 24)
	buf[pos+1] = byte(v >> 16)
	buf[pos+2] = byte(v >> 8)
	buf[pos+3] = byte(v)
}

// Decode is the inverse of Encode. It reads the 8-byte header, the
// entries-length-prefixed entries array (dispatching each entry on its
// type code), then the options-length-prefixed options array.
//
// An entry with an unrecognized type code fails the whole decode with
// ErrMalformed, per spec.md §4.3; an option with an unrecognized type
// code is preserved as an UnknownOption rather than rejected.
func Decode(data []byte) (*SdMessage, error) {
	r := wire.NewReader(data)

	flags, err := r.ReadU8()
	if err != nil {
		return nil, ErrMalformed
	}
	r.Skip(3) // reserved

	entriesLen, err := r.ReadU32()
	if err != nil {
		return nil, ErrMalformed
	}
	if entriesLen%EntrySize != 0 {
		return nil, ErrMalformed
	}
	if r.Remaining() < int(entriesLen) {
		return nil, ErrMalformed
	}
	entriesEnd := r.Position() + int(entriesLen)

	entries := make([]SdEntry, 0, int(entriesLen)/EntrySize)
	for r.Position() < entriesEnd {
		e, derr := DecodeEntry(r)
		if derr != nil {
			return nil, derr
		}
		entries = append(entries, e)
	}
	// DecodeEntry always advances by exactly EntrySize, so this can
	// only be reached via an exact multiple -- re-synchronize anyway
	// so a future relaxation of that invariant can't desync options.
	r.SetPosition(entriesEnd)

	optionsLen, err := r.ReadU32()
	if err != nil {
		return nil, ErrMalformed
	}
	if r.Remaining() < int(optionsLen) {
		return nil, ErrMalformed
	}
	optionsEnd := r.Position() + int(optionsLen)

	var options []SdOption
	for r.Position() < optionsEnd {
		o, derr := DecodeOption(r)
		if derr != nil {
			return nil, derr
		}
		options = append(options, o)
	}
	r.SetPosition(optionsEnd)

	return &SdMessage{Flags: flags, Entries: entries, Options: options}, nil
}

func (m *SdMessage) String() string {
	return fmt.Sprintf("sd.SdMessage{reboot=%v unicast=%v entries=%d options=%d}",
		m.IsReboot(), m.IsUnicast(), len(m.Entries), len(m.Options))
}
