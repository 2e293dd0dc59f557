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

package conn_someip

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/go-someip/someip/internal/netbuf"
	"github.com/go-someip/someip/someip"
	"github.com/go-someip/someip/tp"
)

// SegmentedConn carries SOME/IP messages over a net.Conn, splitting
// anything larger than tp.Config.MaxSegmentSize into TP segments on
// the way out and reassembling them on the way in. Outbound segments
// are paced through a netbuf.SegmentQueue so a slow peer's TCP window
// backs up the queue -- and eventually Send -- instead of letting the
// segmenter produce an unbounded backlog.
type SegmentedConn struct {
	c   net.Conn
	seg *tp.Segmenter
	ra  *tp.Reassembler
	out *netbuf.SegmentQueue

	mu      sync.Mutex
	headers map[uint8][]byte // service/method/client/session/version prefix, keyed by sequence number

	writeErr chan error
}

// NewSegmentedConn wraps c, segmenting outbound messages and
// reassembling inbound ones according to cfg. queueCapacity bounds the
// outbound pacing queue in bytes.
func NewSegmentedConn(c net.Conn, cfg tp.Config, queueCapacity int) *SegmentedConn {
	sc := &SegmentedConn{
		c:        c,
		seg:      tp.NewSegmenter(cfg),
		ra:       tp.NewReassembler(cfg, nil),
		out:      netbuf.New(queueCapacity),
		headers:  make(map[uint8][]byte),
		writeErr: make(chan error, 1),
	}
	go sc.drain()
	return sc
}

// drain pops paced frames off the outbound queue and writes them to
// the connection in order. It exits (and records the first write
// error) as soon as a write fails or the queue is closed.
func (sc *SegmentedConn) drain() {
	for {
		frame, err := sc.out.Pop()
		if err != nil {
			return
		}
		if _, err := sc.c.Write(frame); err != nil {
			select {
			case sc.writeErr <- err:
			default:
			}
			return
		}
	}
}

// Send segments msg and enqueues every resulting tp.Segment for
// paced delivery. It blocks only as long as the queue is full, not for
// the full round trip of the write.
func (sc *SegmentedConn) Send(msg *someip.Message) error {
	segments, err := sc.seg.Segment(msg)
	if err != nil {
		return err
	}
	for _, s := range segments {
		if err := sc.out.Push(s.Encode()); err != nil {
			return err
		}
	}
	select {
	case err := <-sc.writeErr:
		return err
	default:
		return nil
	}
}

// Recv blocks until one complete SOME/IP message has been
// reassembled from one or more TP segments read off the connection,
// or a read/framing error occurs.
func (sc *SegmentedConn) Recv() (*someip.Message, error) {
	for {
		frame, err := sc.readFrame()
		if err != nil {
			return nil, err
		}
		seg, err := tp.DecodeSegment(frame)
		if err != nil {
			continue // malformed segment: drop and keep reading, per spec's silent-drop rule
		}

		if seg.Type == tp.SegmentTypeFirst || seg.Type == tp.SegmentTypeSingle {
			if len(seg.Payload) >= someip.HeaderSize {
				sc.mu.Lock()
				sc.headers[seg.SequenceNumber] = append([]byte(nil), seg.Payload[:someip.HeaderSize]...)
				sc.mu.Unlock()
			}
		}

		result, err := sc.ra.ProcessSegment(seg)
		if err != nil {
			continue
		}
		if !result.Complete {
			continue
		}

		sc.mu.Lock()
		header := sc.headers[seg.SequenceNumber]
		delete(sc.headers, seg.SequenceNumber)
		sc.mu.Unlock()

		msg, err := someip.Deserialize(append(header, result.Payload...))
		if err != nil {
			continue
		}
		return msg, nil
	}
}

// readFrame reads one TP-framed segment: the tp.HeaderSize-byte header
// (offset, length, sequence, type) followed by length bytes of
// payload, mirroring tp.Segment.Encode's layout.
func (sc *SegmentedConn) readFrame() ([]byte, error) {
	var head [tp.HeaderSize]byte
	if _, err := io.ReadFull(sc.c, head[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(head[2:4])
	frame := make([]byte, tp.HeaderSize+int(length))
	copy(frame, head[:])
	if _, err := io.ReadFull(sc.c, frame[tp.HeaderSize:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// Close releases the outbound queue and closes the connection.
func (sc *SegmentedConn) Close() error {
	_ = sc.out.Close()
	return sc.c.Close()
}

// ProcessTimeouts drops any reassembly buffer older than the
// configured ReassemblyTimeout. Callers should invoke this
// periodically (e.g. from a ticker) since SegmentedConn runs no
// background timer of its own for it.
func (sc *SegmentedConn) ProcessTimeouts() {
	sc.ra.ProcessTimeouts()
}

// Statistics returns the reassembler's lifetime counters.
func (sc *SegmentedConn) Statistics() tp.Stats {
	return sc.ra.Statistics()
}
