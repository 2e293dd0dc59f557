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

package tp

import (
	"sync/atomic"

	"github.com/go-someip/someip/someip"
)

// Segmenter splits a serialized SOME/IP message into an ordered
// sequence of Segments, each carrying at most Config.MaxSegmentSize
// bytes. It holds no state beyond its config and a sequence-number
// counter, so it is safe to share across goroutines: the counter is
// incremented atomically rather than requiring the caller to serialize
// calls (spec.md §5).
type Segmenter struct {
	cfg     Config
	nextSeq atomic.Uint32 // wraps into uint8 on read
}

// NewSegmenter returns a Segmenter bound to cfg.
func NewSegmenter(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg}
}

func (s *Segmenter) allocSeq() uint8 {
	return uint8(s.nextSeq.Add(1) - 1)
}

// Segment splits msg into one or more Segments. A message whose
// serialized size (header + payload) fits within one MaxSegmentSize
// segment yields exactly one SINGLE_MESSAGE segment carrying the full
// serialized message. A larger message yields a FIRST_SEGMENT, zero or
// more CONSECUTIVE_SEGMENTs, and one LAST_SEGMENT, all sharing one
// sequence number.
func (s *Segmenter) Segment(msg *someip.Message) ([]*Segment, error) {
	payload := msg.Payload
	total := uint32(len(payload))

	if total > s.cfg.MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	serialized := msg.Serialize()
	if len(serialized) <= int(s.cfg.MaxSegmentSize) {
		seq := s.allocSeq()
		return []*Segment{{
			MessageLength:  total,
			SegmentOffset:  0,
			SegmentLength:  uint16(len(serialized)),
			SequenceNumber: seq,
			Type:           SegmentTypeSingle,
			Payload:        serialized,
		}}, nil
	}

	return s.segmentMulti(serialized, payload, total)
}

func (s *Segmenter) segmentMulti(serialized, payload []byte, total uint32) ([]*Segment, error) {
	maxSeg := int(s.cfg.MaxSegmentSize)
	seq := s.allocSeq()

	var segments []*Segment

	// FIRST_SEGMENT: the 16-byte SOME/IP header plus as much payload as
	// fits in the remaining room of one segment.
	firstPayloadSize := maxSeg - someip.HeaderSize
	if firstPayloadSize > len(payload) {
		firstPayloadSize = len(payload)
	}
	firstBody := make([]byte, someip.HeaderSize+firstPayloadSize)
	copy(firstBody, serialized[:someip.HeaderSize])
	copy(firstBody[someip.HeaderSize:], payload[:firstPayloadSize])
	segments = append(segments, &Segment{
		MessageLength:  total,
		SegmentOffset:  0,
		SegmentLength:  uint16(len(firstBody)),
		SequenceNumber: seq,
		Type:           SegmentTypeFirst,
		Payload:        firstBody,
	})

	offset := firstPayloadSize
	for offset < len(payload) {
		remaining := len(payload) - offset
		segType := SegmentTypeConsecutive
		size := maxSeg
		if remaining <= maxSeg {
			segType = SegmentTypeLast
			size = remaining
		}
		body := append([]byte(nil), payload[offset:offset+size]...)
		segments = append(segments, &Segment{
			MessageLength:  total,
			SegmentOffset:  uint16(offset),
			SegmentLength:  uint16(size),
			SequenceNumber: seq,
			Type:           segType,
			Payload:        body,
		})
		offset += size
	}

	return segments, nil
}
