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

// Package ws_someip is a second framing boundary for SOME/IP, carrying
// TP-segmented messages as binary WebSocket frames instead of a raw
// net.Conn byte stream. Unlike transport/conn_someip, a WebSocket frame
// already has its own message boundary, so one gorilla/websocket
// ReadMessage call yields exactly one tp.Segment's wire bytes -- no
// length peeking is needed on the receive side.
package ws_someip

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/go-someip/someip/internal/netbuf"
	"github.com/go-someip/someip/someip"
	"github.com/go-someip/someip/tp"
)

// upgrader is shared across Upgrade calls; origin checking is left to
// the caller's http.Handler (e.g. behind an authenticating proxy), the
// same posture the teacher's own tools take toward local-network tools.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn carries SOME/IP messages over a WebSocket connection,
// segmenting and reassembling exactly like transport/conn_someip's
// SegmentedConn. Outbound segments are paced through a
// netbuf.SegmentQueue so a slow browser-side reader applies
// backpressure instead of letting the segmenter buffer unboundedly.
type Conn struct {
	ws  *websocket.Conn
	seg *tp.Segmenter
	ra  *tp.Reassembler
	out *netbuf.SegmentQueue

	mu      sync.Mutex
	headers map[uint8][]byte

	writeErr chan error
}

// NewConn wraps ws, segmenting and reassembling according to cfg.
// queueCapacity bounds the outbound pacing queue in bytes.
func NewConn(ws *websocket.Conn, cfg tp.Config, queueCapacity int) *Conn {
	c := &Conn{
		ws:       ws,
		seg:      tp.NewSegmenter(cfg),
		ra:       tp.NewReassembler(cfg, nil),
		out:      netbuf.New(queueCapacity),
		headers:  make(map[uint8][]byte),
		writeErr: make(chan error, 1),
	}
	go c.drain()
	return c
}

// Upgrade promotes an incoming HTTP request to a WebSocket connection
// and wraps it as a Conn.
func Upgrade(w http.ResponseWriter, r *http.Request, cfg tp.Config, queueCapacity int) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws, cfg, queueCapacity), nil
}

// Dial opens a WebSocket connection to url and wraps it as a Conn.
func Dial(url string, cfg tp.Config, queueCapacity int) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws, cfg, queueCapacity), nil
}

func (c *Conn) drain() {
	for {
		frame, err := c.out.Pop()
		if err != nil {
			return
		}
		if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			select {
			case c.writeErr <- err:
			default:
			}
			return
		}
	}
}

// Send segments msg and enqueues every resulting TP segment for paced
// delivery as its own binary WebSocket frame.
func (c *Conn) Send(msg *someip.Message) error {
	segments, err := c.seg.Segment(msg)
	if err != nil {
		return err
	}
	for _, s := range segments {
		if err := c.out.Push(s.Encode()); err != nil {
			return err
		}
	}
	select {
	case err := <-c.writeErr:
		return err
	default:
		return nil
	}
}

// Recv blocks until one complete SOME/IP message has been
// reassembled from one or more TP segments received as WebSocket
// frames.
func (c *Conn) Recv() (*someip.Message, error) {
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		seg, err := tp.DecodeSegment(frame)
		if err != nil {
			continue
		}

		if seg.Type == tp.SegmentTypeFirst || seg.Type == tp.SegmentTypeSingle {
			if len(seg.Payload) >= someip.HeaderSize {
				c.mu.Lock()
				c.headers[seg.SequenceNumber] = append([]byte(nil), seg.Payload[:someip.HeaderSize]...)
				c.mu.Unlock()
			}
		}

		result, err := c.ra.ProcessSegment(seg)
		if err != nil || !result.Complete {
			continue
		}

		c.mu.Lock()
		header := c.headers[seg.SequenceNumber]
		delete(c.headers, seg.SequenceNumber)
		c.mu.Unlock()

		msg, err := someip.Deserialize(append(header, result.Payload...))
		if err != nil {
			continue
		}
		return msg, nil
	}
}

// Close releases the outbound queue and closes the WebSocket
// connection.
func (c *Conn) Close() error {
	_ = c.out.Close()
	return c.ws.Close()
}

// ProcessTimeouts drops any reassembly buffer older than the
// configured ReassemblyTimeout.
func (c *Conn) ProcessTimeouts() {
	c.ra.ProcessTimeouts()
}

// Statistics returns the reassembler's lifetime counters.
func (c *Conn) Statistics() tp.Stats {
	return c.ra.Statistics()
}
