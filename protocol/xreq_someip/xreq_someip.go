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

// Packege xreq_someip implements the SOME/IP protocol. This sends messages
// out to xrep_someip partners, and receives their responses and notifications.
package xreq_someip

import (
	"encoding/binary"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3/protocol"

	"github.com/go-someip/someip/protocol/proto_someip"
	"github.com/go-someip/someip/someip"
	"github.com/go-someip/someip/tp"
)

// Protocol identity information.
const (
	Self       = proto_someip.ProtoSomeIPReq
	Peer       = proto_someip.ProtoSomeIPRep
	SelfName   = "someip-req"
	PeerName   = "someip-rep"
	NotifyName = "someip-notify"
)

type SomeIPOpts = proto_someip.SomeIPOpts
type MessageSomeIP = proto_someip.MessageSomeIP

const defaultSurveyTime = time.Second
const defaultQLen = 128

type pipe struct {
	s      *socket
	p      protocol.Pipe
	closeQ chan struct{}
}

type context struct {
	s *socket

	recvQ      chan *MessageSomeIP
	recvExpire time.Duration
	recvQLen   int

	sessionID uint16
	chkMsg    func(c *context, m *MessageSomeIP) error
}

type socket struct {
	opts SomeIPOpts
	//
	master *context // default context
	slave  *context // background context for receiving notification
	//
	closed bool // true if closed
	closeQ chan struct{}
	//
	sendQ      chan *protocol.Message // sendQ
	sendExpire time.Duration
	sendQLen   int // send Q depth
	//
	sizeQ chan struct{}
	//
	sync.Mutex
}

var (
	nilQ <-chan time.Time
)

// nextSessionID advances a context's session counter per SOME/IP's
// correlation rule: session id 0 is reserved to mean "no session
// assigned yet", so the 16-bit counter wraps 0xFFFF -> 1, never back
// to 0.
func nextSessionID(sessionID uint16) uint16 {
	next := sessionID + 1
	if next == 0 {
		next = 1
	}
	return next
}

func (c *context) SendMsg(m *protocol.Message) error {
	s := c.s
	s.Lock()

	if s.closed {
		m.Free()
		s.Unlock()
		return protocol.ErrClosed
	}

	if len(m.Header) != proto_someip.RzvHdrBySomeIP || len(m.Body) < proto_someip.RzvBodyBySomeIP {
		m.Free()
		s.Unlock()
		return protocol.ErrTooShort
	}

	opts := s.opts
	timeQ := nilQ
	if s.sendExpire > 0 {
		timeQ = time.After(s.sendExpire)
	}
	sendQ := s.sendQ
	closeQ := s.closeQ
	sizeQ := s.sizeQ
	s.Unlock()

	c.sessionID = nextSessionID(c.sessionID)

	// Re-encode the header through the core codec: method id, message
	// type, return code and payload already live in m.Body courtesy of
	// the caller's message builder (NewReqMsg/NewMsgRaw) and ride
	// through unchanged; identity and the session counter are stamped
	// in here and the length field is recomputed from scratch by
	// someip.Message.Serialize rather than poked by hand.
	req := &someip.Message{
		ServiceID:        opts.ServiceID,
		MethodID:         binary.BigEndian.Uint16(m.Body[2:4]),
		ClientID:         opts.ClientID,
		SessionID:        c.sessionID,
		ProtocolVersion:  opts.ProtoVersion,
		InterfaceVersion: opts.InfVersion,
		MessageType:      someip.MessageType(m.Body[14]),
		ReturnCode:       someip.ReturnCode(m.Body[15]),
		Payload:          append([]byte(nil), m.Body[proto_someip.RzvBodyBySomeIP:]...),
	}
	copy(m.Body, req.Serialize())

	select {
	case sendQ <- m:
		return nil
	case <-closeQ:
		return protocol.ErrClosed
	case <-timeQ:
		return protocol.ErrSendTimeout
	case <-sizeQ:
		m.Free()
		return nil
	}
}

// SendRequest sends payload as a REQUEST to method over s and waits
// for the matching RESPONSE/ERROR. If no reply arrives within
// cfg.RetryTimeout the request is retransmitted -- as a fresh request
// with its own session id, so a late reply to an earlier attempt is
// rejected by chkMsgExchange rather than mistaken for the current
// one -- up to cfg.MaxRetries times before the last timeout is
// returned to the caller.
func SendRequest(s protocol.Socket, method uint16, payload []byte, cfg tp.Config) (*protocol.Message, error) {
	if err := s.SetOption(protocol.OptionRecvDeadline, cfg.RetryTimeout); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := s.SendMsg(proto_someip.NewReqMsg(method, payload)); err != nil {
			return nil, err
		}
		resp, err := s.RecvMsg()
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *context) RecvMsg() (*protocol.Message, error) {
	for {
		s := c.s
		s.Lock()
		if s.closed {
			s.Unlock()
			return nil, protocol.ErrClosed
		}
		timeq := nilQ
		if c.recvExpire > 0 {
			timeq = time.After(c.recvExpire)
		}
		sizeQ := s.sizeQ
		s.Unlock()

		select {
		case <-s.closeQ:
			return nil, protocol.ErrClosed
		case m := <-c.recvQ:
			if m == nil {
				return nil, protocol.ErrBadValue
			}
			if err := c.chkMsg(c, m); err != nil {
				m.M.Free()
				return nil, err
			}
			return m.M, nil
		case <-timeq:
			return nil, protocol.ErrRecvTimeout
		case <-sizeQ:
			continue
		}
	}
}

func (c *context) close() {
}

func (c *context) Close() error {
	c.s.Lock()
	defer c.s.Unlock()
	c.close()
	return nil
}

func (c *context) SetOption(option string, value interface{}) error {
	switch option {
	case protocol.OptionReadQLen:
		if v, ok := value.(int); ok && v >= 0 {
			c.s.Lock()
			c.recvQLen = v
			c.s.Unlock()
			return nil
		}
		return protocol.ErrBadValue
	}
	return protocol.ErrBadOption
}

func (c *context) GetOption(option string) (interface{}, error) {
	switch option {
	case protocol.OptionReadQLen:
		c.s.Lock()
		v := c.recvQLen
		c.s.Unlock()
		return v, nil

	case protocol.OptionLinkSz:
		return (int)(16), nil
	}
	return nil, protocol.ErrBadOption
}

func (p *pipe) close() {
	_ = p.p.Close()
}

func (p *pipe) sender() {
	s := p.s
outer:
	for {
		var m *protocol.Message
		select {
		case <-p.closeQ:
			break outer
		case m = <-s.sendQ:
		}

		if err := p.p.SendMsg(m); err != nil {
			m.Free()
			break
		}
	}
	p.close()
}

func (p *pipe) receiver() {
	s := p.s
outer:
	for {
		m := p.p.RecvMsg()
		if m == nil {
			break
		}
		decoded, err := proto_someip.FromSomeIPBody(m)
		if err != nil {
			m.Free()
			continue
		}
		m2 := &decoded

		var recvQ chan *MessageSomeIP

		s.Lock()
		recvMasterQ := s.master.recvQ
		recvSlaveQ := s.slave.recvQ
		sizeQ := s.sizeQ
		s.Unlock()

		switch m2.MsgType {
		case proto_someip.MT_NOTIFICATION:
			recvQ = recvSlaveQ
		case proto_someip.MT_RESPONSE:
			fallthrough
		case proto_someip.MT_ERROR:
			recvQ = recvMasterQ
		default:
			continue
		}

		select {
		case recvQ <- m2:
			continue
		case <-sizeQ: // resize discards
			m.Free()
			continue
		case <-p.closeQ:
			m.Free()
			break outer
		}
	}
	p.close()
}

func (s *socket) OpenContext() (protocol.Context, error) {
	return nil, protocol.ErrProtoOp
}

// SendMsg sends m through the master context: m.Body[2:4] carries the
// method id, m.Body[14:16] the message type and return code, and
// m.Body[16:] the payload. SendRequest sends through this path.
func (s *socket) SendMsg(m *protocol.Message) error {
	return s.master.SendMsg(m)
}

func (s *socket) RecvMsg() (*protocol.Message, error) {
	return s.master.RecvMsg()
}

func (s *socket) AddPipe(pp protocol.Pipe) error {
	p := &pipe{
		p:      pp,
		s:      s,
		closeQ: make(chan struct{}),
	}
	pp.SetPrivate(p)
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return protocol.ErrClosed
	}
	go p.receiver()
	go p.sender()
	return nil
}

func (s *socket) RemovePipe(pp protocol.Pipe) {
	p := pp.GetPrivate().(*pipe)
	close(p.closeQ)
	s.Lock()
	s.Unlock()
}

func (s *socket) Close() error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return protocol.ErrClosed
	}
	s.closed = true
	s.master.close()
	s.slave.close()
	s.Unlock()
	close(s.closeQ)
	return nil
}

func (s *socket) GetOption(option string) (interface{}, error) {
	switch option {
	case protocol.OptionRaw:
		return false, nil
	case protocol.OptionWriteQLen:
		s.Lock()
		v := s.sendQLen
		s.Unlock()
		return v, nil

	case protocol.OptionRecvDeadline:
		s.Lock()
		v := s.master.recvExpire
		s.Unlock()
		return v, nil

	case protocol.OptionSendDeadline:
		s.Lock()
		v := s.sendExpire
		s.Unlock()
		return v, nil

	case proto_someip.OptionSomeIPCtxMaster:
		s.Lock()
		v := s.master
		s.Unlock()
		return v, nil

	case proto_someip.OptionSomeIPCtxSlave:
		s.Lock()
		v := s.slave
		s.Unlock()
		return v, nil

	case proto_someip.OptionSomeIPSrvID:
		s.Lock()
		v := s.opts.ServiceID
		s.Unlock()
		return v, nil

	default:
		return s.master.GetOption(option)
	}
}

func (s *socket) SetOption(option string, value interface{}) error {
	switch option {
	case protocol.OptionWriteQLen:
		if v, ok := value.(int); ok && v >= 0 {
			newQ := make(chan *protocol.Message, v)
			sizeQ := make(chan struct{})
			s.Lock()
			s.sendQLen = v
			s.sendQ = newQ
			sizeQ, s.sizeQ = s.sizeQ, sizeQ
			s.Unlock()
			close(sizeQ)
			return nil
		}
		return protocol.ErrBadValue

	case protocol.OptionRecvDeadline:
		if v, ok := value.(time.Duration); ok {
			s.Lock()
			s.master.recvExpire = v
			s.Unlock()
			return nil
		}
		return protocol.ErrBadValue

	case protocol.OptionSendDeadline:
		if v, ok := value.(time.Duration); ok {
			s.Lock()
			s.sendExpire = v
			s.Unlock()
			return nil
		}
		return protocol.ErrBadValue

	case protocol.OptionReadQLen:
		if v, ok := value.(int); ok && v >= 0 {
			recvQ := make(chan *MessageSomeIP, v)
			sizeQ := make(chan struct{})
			s.Lock()
			s.master.recvQLen = v
			s.master.recvQ = recvQ
			sizeQ, s.sizeQ = s.sizeQ, sizeQ
			s.Unlock()
			close(sizeQ)
			return nil
		}
		return protocol.ErrBadValue

	case proto_someip.OptionSomeIPPV:
		if v, ok := value.(uint8); ok {
			s.Lock()
			s.opts.ProtoVersion = v
			s.Unlock()
			return nil
		}
		return protocol.ErrBadValue

	case proto_someip.OptionSomeIPInfPV:
		if v, ok := value.(uint8); ok {
			s.Lock()
			s.opts.InfVersion = v
			s.Unlock()
			return nil
		}
		return protocol.ErrBadValue

	case proto_someip.OptionSomeIPSrvID:
		if v, ok := value.(uint16); ok {
			s.Lock()
			s.opts.ServiceID = v
			s.Unlock()
			return nil
		}
		return protocol.ErrBadValue

	case proto_someip.OptionSomeIPCltID:
		if v, ok := value.(uint16); ok {
			s.Lock()
			s.opts.ClientID = v
			s.Unlock()
			return nil
		}
		return protocol.ErrBadValue

	default:
		return protocol.ErrBadOption
	}
}

func (*socket) Info() protocol.Info {
	return protocol.Info{
		Self:     Self,
		Peer:     Peer,
		SelfName: SelfName,
		PeerName: PeerName,
	}
}

func chkMsgCommon(c *context, m *MessageSomeIP) error {
	s := c.s
	if s.opts.ServiceID != m.ServiceID || s.opts.ClientID != m.ClientID ||
		s.opts.ProtoVersion != m.ProtoVersion || s.opts.InfVersion != m.InfVersion {
		return protocol.ErrProtoOp
	}
	return nil
}

func chkMsgExchange(c *context, m *MessageSomeIP) error {
	if err := chkMsgCommon(c, m); err != nil {
		return err
	}
	if m.MsgType == proto_someip.MT_RESPONSE && c.sessionID != m.SessionID {
		return protocol.ErrProtoOp
	}
	return nil
}

func chkMsgNotification(c *context, m *MessageSomeIP) error {
	return chkMsgCommon(c, m)
}

// NewProtocol returns a new protocol implementation.
func NewProtocol() protocol.Protocol {
	s := &socket{
		sendQLen: defaultQLen,
		sendQ:    make(chan *protocol.Message, defaultQLen),
		closeQ:   make(chan struct{}),
		sizeQ:    make(chan struct{}),
	}
	s.master = &context{
		s:          s,
		recvExpire: 500 * time.Millisecond,
		recvQLen:   defaultQLen,
		recvQ:      make(chan *MessageSomeIP, defaultQLen),
		sessionID:  0, // 0 is reserved/invalid; nextSessionID assigns 1 on the first send
		chkMsg:     chkMsgExchange,
	}

	s.slave = &context{
		s:          s,
		recvExpire: 0,
		recvQLen:   defaultQLen,
		recvQ:      make(chan *MessageSomeIP, defaultQLen),
		sessionID:  0,
		chkMsg:     chkMsgNotification,
	}
	return s
}

// NewSocket allocates a new Socket using the SOME/IP request protocol.
func NewSocket() (protocol.Socket, error) {
	return protocol.MakeSocket(NewProtocol()), nil
}
