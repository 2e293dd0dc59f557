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

// Package tp implements the SOME/IP Transport-Protocol segmentation and
// reassembly layer: splitting a serialized message too large for one
// datagram into ordered TpSegments (Segmenter), and reconstructing the
// original payload from segments received in any order (Reassembler).
package tp

import (
	"errors"
	"fmt"

	"github.com/go-someip/someip/wire"
)

// SegmentType is the TP-specific framing type carried in each segment's
// header (distinct from someip.MessageType, though every SOME/IP
// message carrying a TP segment also sets the 0x20 bit on its own
// MessageType).
type SegmentType uint8

// SegmentType values.
const (
	SegmentTypeFirst       SegmentType = iota // FIRST_SEGMENT
	SegmentTypeConsecutive                    // CONSECUTIVE_SEGMENT
	SegmentTypeLast                           // LAST_SEGMENT
	SegmentTypeSingle                         // SINGLE_MESSAGE
)

func (t SegmentType) String() string {
	switch t {
	case SegmentTypeFirst:
		return "FIRST_SEGMENT"
	case SegmentTypeConsecutive:
		return "CONSECUTIVE_SEGMENT"
	case SegmentTypeLast:
		return "LAST_SEGMENT"
	case SegmentTypeSingle:
		return "SINGLE_MESSAGE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// HeaderSize is the fixed size of the TP header that precedes a
// segment's payload on the wire.
const HeaderSize = 2 + 2 + 1 + 1 // offset,length,seq,type -- see Encode

// Segment is one TP packet: a chunk of a logical message plus enough
// framing to place it and detect completion. A Segment exclusively
// owns its Payload slice.
type Segment struct {
	MessageLength   uint32      // total payload length of the reassembled message
	SegmentOffset   uint16      // position within the reassembled payload
	SegmentLength   uint16      // == len(Payload)
	SequenceNumber  uint8
	Type            SegmentType
	Payload         []byte
}

// ErrInvalidSegment is returned when a Segment's own header fields are
// inconsistent (segment_length/payload mismatch, offset+length beyond
// message_length, or message_length beyond the configured bound).
var ErrInvalidSegment = errors.New("tp: invalid segment")

// Validate checks the per-segment invariants from spec.md §3: the
// declared segment_length matches the payload, the covered range does
// not exceed message_length, and message_length does not exceed
// maxMessageSize.
func (s *Segment) Validate(maxMessageSize uint32) error {
	if int(s.SegmentLength) != len(s.Payload) {
		return ErrInvalidSegment
	}
	if uint32(s.SegmentOffset)+uint32(s.SegmentLength) > s.MessageLength {
		return ErrInvalidSegment
	}
	if s.MessageLength > maxMessageSize {
		return ErrInvalidSegment
	}
	return nil
}

// Encode writes the 4-byte TP header (16-bit offset, 16-bit length)
// followed by a 1-byte sequence number and 1-byte type, then the
// payload. spec.md §6 fixes this 6-byte-header layout rather than the
// AUTOSAR 28-bit-offset/4-bit-flag variant some source paths implied;
// see DESIGN.md for the Open Question this resolves.
func (s *Segment) Encode() []byte {
	w := wire.NewWriter(HeaderSize + len(s.Payload))
	w.WriteU16(s.SegmentOffset)
	w.WriteU16(s.SegmentLength)
	w.WriteU8(s.SequenceNumber)
	w.WriteU8(uint8(s.Type))
	w.WriteBytes(s.Payload)
	return w.Bytes()
}

// DecodeSegment is the inverse of Encode. MessageLength is not carried
// by this on-wire header (the reassembler deduces it from the SOME/IP
// length field inside a sequence's FIRST_SEGMENT, and a SINGLE_MESSAGE
// needs none); callers that need it set directly
// (e.g. tests exercising the Reassembler in isolation) populate it
// after decoding.
func DecodeSegment(data []byte) (*Segment, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidSegment
	}
	r := wire.NewReader(data)
	offset, _ := r.ReadU16()
	length, _ := r.ReadU16()
	seq, _ := r.ReadU8()
	typ, _ := r.ReadU8()
	if r.Remaining() != int(length) {
		return nil, ErrInvalidSegment
	}
	payload, _ := r.ReadBytes(int(length))
	return &Segment{
		SegmentOffset:  offset,
		SegmentLength:  length,
		SequenceNumber: seq,
		Type:           SegmentType(typ),
		Payload:        append([]byte(nil), payload...),
	}, nil
}
