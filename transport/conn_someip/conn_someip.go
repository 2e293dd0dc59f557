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

// Package conn_someip is the net.Conn framing boundary for SOME/IP:
// it turns a byte stream into a sequence of whole SOME/IP messages (or,
// via SegmentedConn, a sequence of TP segments) without depending on
// mangos's own transport SPI. tcp_someip-style listeners/dialers build
// on top of this the way mangos's built-in transports build on
// transport.ConnPipe.
package conn_someip

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"go.nanomsg.org/mangos/v3/protocol"

	"github.com/go-someip/someip/someip"
)

// ProtocolInfo and Message are this package's names for the mangos
// types a Pipe implementation has to move -- Info to describe which
// protocol pair a connection serves, Message to carry a decoded
// frame's bytes up to the owning protocol's pipe.
type ProtocolInfo = protocol.Info
type Message = protocol.Message

// Pipe is the contract a net.Conn-backed SOME/IP connection satisfies.
// It is intentionally narrower than protocol.Pipe: this package is a
// building block for a Dialer/Listener pair, not a protocol.Pipe
// itself -- the someip_tcp transport (future work) wraps one of these
// per accepted/dialed connection.
type Pipe interface {
	Recv() (*Message, error)
	Send(*Message) error
	Close() error
	GetOption(string) (interface{}, error)
}

// connSomeip implements Pipe on top of net.Conn. Each frame on the
// wire is one whole serialized SOME/IP message: the 16-byte header's
// own length field (bytes 4:8) is reused as the stream framing length,
// so no extra length prefix is needed the way a generic byte-stream
// transport would add one.
type connSomeip struct {
	c       net.Conn
	proto   ProtocolInfo
	open    bool
	options map[string]interface{}
	maxrx   int
	sync.Mutex
}

// Recv reads one SOME/IP message from the stream. It reads the first
// 8 bytes (service_id, method_id, length) to learn how many bytes
// follow, then reads exactly that many more.
func (p *connSomeip) Recv() (*Message, error) {
	var h [8]byte
	if _, err := io.ReadFull(p.c, h[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(h[4:8])
	if length < 8 || int(length) > maxSomeIPFrame || (p.maxrx > 0 && int(length) > p.maxrx) {
		return nil, protocol.ErrTooLong
	}

	total := 8 + int(length)

	msg := &Message{Header: make([]byte, 0, 4), Body: make([]byte, total)}
	copy(msg.Body[0:8], h[:])
	if _, err := io.ReadFull(p.c, msg.Body[8:]); err != nil {
		return nil, err
	}
	return msg, nil
}

// Send writes msg.Body -- the full serialized SOME/IP message -- to
// the stream. msg.Header (pipe routing) is never placed on the wire.
func (p *connSomeip) Send(msg *Message) error {
	_, err := p.c.Write(msg.Body)
	return err
}

// Close closes the underlying connection, idempotently.
func (p *connSomeip) Close() error {
	p.Lock()
	defer p.Unlock()
	if p.open {
		p.open = false
		return p.c.Close()
	}
	return nil
}

func (p *connSomeip) GetOption(n string) (interface{}, error) {
	switch n {
	case protocol.OptionMaxRecvSize:
		return p.maxrx, nil
	}
	if v, ok := p.options[n]; ok {
		return v, nil
	}
	return nil, protocol.ErrBadOption
}

// SetMaxRecvSize bounds the length field Recv will accept, rejecting
// anything larger with protocol.ErrTooLong rather than allocating it.
func (p *connSomeip) SetMaxRecvSize(sz int) {
	p.Lock()
	p.maxrx = sz
	p.Unlock()
}

// NewConnPipe wraps c as a Pipe. options seeds the values GetOption
// returns for keys Recv/Send never touch directly (local/remote
// address, caller-supplied metadata).
func NewConnPipe(c net.Conn, proto ProtocolInfo, options map[string]interface{}) Pipe {
	p := &connSomeip{
		c:       c,
		proto:   proto,
		open:    true,
		options: make(map[string]interface{}, len(options)+2),
	}
	p.options[protocol.OptionLocalAddr] = c.LocalAddr()
	p.options[protocol.OptionRemoteAddr] = c.RemoteAddr()
	for k, v := range options {
		p.options[k] = v
	}
	return p
}

// maxSomeIPFrame is the largest single-frame length this package will
// ever allocate for, independent of any caller-set SetMaxRecvSize --
// it matches someip.MaxTCPPayloadSize plus the header so a corrupt
// length field can't trigger an unbounded allocation.
const maxSomeIPFrame = someip.MaxTCPPayloadSize + someip.HeaderSize
