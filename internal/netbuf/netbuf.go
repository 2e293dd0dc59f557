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

// Package netbuf provides a fixed-capacity byte ring buffer used by
// transport/conn_someip to pace outbound TP segments: a slow peer
// cannot make the sender buffer an unbounded backlog of segments, it
// instead blocks the segmenter's producer until the consumer drains
// the ring.
package netbuf

import (
	"encoding/binary"
	"io"

	"github.com/smallnest/ringbuffer"
)

// SegmentQueue is a blocking, bounded, single-producer/single-consumer
// queue of variable-length frames (TP segments, or whole single-segment
// messages) backed by a byte ring buffer. Frames are length-prefixed
// internally so a partial drain never splits a segment.
type SegmentQueue struct {
	ring *ringbuffer.RingBuffer
}

// New returns a SegmentQueue whose backing ring buffer holds capacity
// bytes of framed segments before Push blocks.
func New(capacity int) *SegmentQueue {
	return &SegmentQueue{ring: ringbuffer.New(capacity).SetBlocking(true)}
}

// Push writes the 4-byte length prefix and then the payload, each
// write blocking while the ring is full. Safe for one producer at a
// time.
func (q *SegmentQueue) Push(payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := q.ring.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := q.ring.Write(payload)
	return err
}

// Pop blocks until one full frame is available and returns its
// payload. Safe for one consumer at a time.
func (q *SegmentQueue) Pop() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(q.ring, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(q.ring, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Len reports the number of bytes currently buffered (framed segments
// plus their length prefixes), for backpressure metrics.
func (q *SegmentQueue) Len() int {
	return q.ring.Length()
}

// Close releases the ring buffer and unblocks any pending Push/Pop
// with io.EOF / io.ErrClosedPipe per smallnest/ringbuffer's own
// Close contract.
func (q *SegmentQueue) Close() error {
	q.ring.CloseWriter()
	return nil
}
