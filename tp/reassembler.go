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
	"sync"
	"time"

	"github.com/go-someip/someip/someip"
)

// buffer is per-sequence-number reassembly state. It owns its backing
// byte store and coverage bitset exclusively; the Reassembler's map is
// the only thing that can reach it.
type buffer struct {
	totalLength uint32
	data        []byte
	covered     []bool // coverage bitset, one entry per byte of data
	startTime   time.Time
	lastSeq     uint8
}

func newBuffer(totalLength uint32, seq uint8, now time.Time) *buffer {
	return &buffer{
		totalLength: totalLength,
		data:        make([]byte, totalLength),
		covered:     make([]bool, totalLength),
		startTime:   now,
		lastSeq:     seq,
	}
}

func (b *buffer) isCovered(offset, length int) bool {
	for i := offset; i < offset+length; i++ {
		if i >= len(b.covered) || !b.covered[i] {
			return false
		}
	}
	return true
}

func (b *buffer) markCovered(offset, length int) {
	for i := offset; i < offset+length && i < len(b.covered); i++ {
		b.covered[i] = true
	}
}

func (b *buffer) isComplete() bool {
	for _, c := range b.covered {
		if !c {
			return false
		}
	}
	return true
}

// Stats accumulates lifetime counters for a Reassembler, exposed via
// Reassembler.Statistics.
type Stats struct {
	Timeouts   uint64
	Duplicates uint64
	Dropped    uint64
}

// TimeoutFunc is invoked by ProcessTimeouts for every buffer that aged
// out, carrying the sequence number that timed out.
type TimeoutFunc func(sequenceNumber uint8)

// Reassembler accepts Segments belonging to one or more in-flight
// messages and reconstructs each message's payload exactly once. All
// entry points share a single mutex guarding both the sequence->buffer
// map and the buffers it contains; no entry point suspends while
// holding it (spec.md §5).
type Reassembler struct {
	mu      sync.Mutex
	cfg     Config
	buffers map[uint8]*buffer
	stats   Stats
	onTimeout TimeoutFunc
}

// NewReassembler returns a Reassembler bound to cfg. onTimeout may be
// nil; when set, it is called once per buffer removed by
// ProcessTimeouts.
func NewReassembler(cfg Config, onTimeout TimeoutFunc) *Reassembler {
	return &Reassembler{
		cfg:       cfg,
		buffers:   make(map[uint8]*buffer),
		onTimeout: onTimeout,
	}
}

// Result is what ProcessSegment returns: whether a complete message
// payload is now available, and if so, the bytes.
type Result struct {
	Complete bool
	Payload  []byte
}

// ProcessSegment feeds one Segment into the reassembler. A
// SINGLE_MESSAGE segment completes immediately without allocating a
// buffer: its payload is a full serialized SOME/IP message, so the
// 16-byte header is stripped and the remainder returned as-is.
//
// A structural problem with the segment itself (bad framing) or with
// the sequence state (a non-FIRST segment with no open buffer) is
// reported as an error; per spec.md §7 these are dropped silently by
// the caller, not retried, and never corrupt other in-flight buffers.
func (r *Reassembler) ProcessSegment(seg *Segment) (Result, error) {
	if seg.Type == SegmentTypeSingle {
		if len(seg.Payload) < someip.HeaderSize {
			return Result{}, ErrInvalidSegment
		}
		return Result{Complete: true, Payload: append([]byte(nil), seg.Payload[someip.HeaderSize:]...)}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buffers[seg.SequenceNumber]
	// A decoded segment carries no MessageLength: take it from the open
	// buffer, or from the SOME/IP length field of a FIRST_SEGMENT.
	if seg.MessageLength == 0 && ok {
		seg.MessageLength = b.totalLength
	} else if seg.MessageLength == 0 && seg.Type == SegmentTypeFirst && len(seg.Payload) >= someip.HeaderSize {
		p := seg.Payload
		seg.MessageLength = (uint32(p[4])<<24 | uint32(p[5])<<16 | uint32(p[6])<<8 | uint32(p[7])) - 8
	}
	if err := seg.Validate(r.cfg.MaxMessageSize); err != nil {
		return Result{}, err
	}

	if !ok {
		if seg.Type != SegmentTypeFirst {
			r.stats.Dropped++
			return Result{}, ErrSequenceError
		}
		if len(r.buffers) >= r.cfg.MaxConcurrentTransfers {
			r.stats.Dropped++
			return Result{}, ErrResourceExhausted
		}
		b = newBuffer(seg.MessageLength, seg.SequenceNumber, time.Now())
		r.buffers[seg.SequenceNumber] = b
	}

	body := seg.Payload
	offset := int(seg.SegmentOffset)
	if seg.Type == SegmentTypeFirst {
		if len(body) < someip.HeaderSize {
			return Result{}, ErrInvalidSegment
		}
		body = body[someip.HeaderSize:]
	}

	if b.isCovered(offset, len(body)) {
		r.stats.Duplicates++
		return Result{Complete: false}, nil
	}

	for i, c := range body {
		if !b.covered[offset+i] {
			b.data[offset+i] = c
		}
	}
	b.markCovered(offset, len(body))
	b.lastSeq = seg.SequenceNumber

	if b.isComplete() {
		delete(r.buffers, seg.SequenceNumber)
		return Result{Complete: true, Payload: append([]byte(nil), b.data...)}, nil
	}
	return Result{Complete: false}, nil
}

// IsReassembling reports whether a buffer for sequenceNumber is
// currently open.
func (r *Reassembler) IsReassembling(sequenceNumber uint8) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.buffers[sequenceNumber]
	return ok
}

// CancelReassembly drops the buffer for sequenceNumber, if any, without
// delivering it. A later segment for the same sequence number starts a
// fresh buffer.
func (r *Reassembler) CancelReassembly(sequenceNumber uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buffers, sequenceNumber)
}

// ProcessTimeouts removes every buffer whose age exceeds
// Config.ReassemblyTimeout, incrementing Stats.Timeouts and invoking
// the completion callback (if set) once per removed buffer. Callers
// are expected to call this periodically; no background goroutine is
// started on their behalf.
func (r *Reassembler) ProcessTimeouts() {
	r.mu.Lock()
	var timedOut []uint8
	now := time.Now()
	for seq, b := range r.buffers {
		if now.Sub(b.startTime) > r.cfg.ReassemblyTimeout {
			timedOut = append(timedOut, seq)
		}
	}
	for _, seq := range timedOut {
		delete(r.buffers, seq)
		r.stats.Timeouts++
	}
	cb := r.onTimeout
	r.mu.Unlock()

	if cb != nil {
		for _, seq := range timedOut {
			cb(seq)
		}
	}
}

// GetActiveReassemblies returns the sequence numbers of every buffer
// currently open.
func (r *Reassembler) GetActiveReassemblies() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint8, 0, len(r.buffers))
	for seq := range r.buffers {
		out = append(out, seq)
	}
	return out
}

// Statistics returns a snapshot of the lifetime counters.
func (r *Reassembler) Statistics() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
