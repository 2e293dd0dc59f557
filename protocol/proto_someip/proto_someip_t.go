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

package proto_someip

import (
	"encoding/binary"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol"
)

// OptSomeIP is the per-message identity a caller building a raw
// request with NewMsgRaw supplies explicitly, rather than relying on
// a socket's bound SomeIPOpts.
type OptSomeIP struct {
	PV    byte
	InfPV byte
	SrvID uint16
	CltID uint16
}

// NewSomeIPMsg allocates a mangos message sized for an l-byte SOME/IP
// payload: RzvHdrBySomeIP bytes of pipe-id header, RzvBodyBySomeIP
// bytes of SOME/IP header, then l bytes of payload.
func NewSomeIPMsg(l int) *protocol.Message {
	msg := mangos.NewMessage(l + RzvBodyBySomeIP)
	msg.Header = msg.Header[0:RzvHdrBySomeIP]
	msg.Body = msg.Body[:l+RzvBodyBySomeIP]
	return msg
}

// NewReqMsg builds a MT_REQUEST message for method carrying snd as
// its payload. The service/client identity fields are left zero for
// the sending socket to fill in.
func NewReqMsg(method uint16, snd []byte) *protocol.Message {
	msg := NewSomeIPMsg(len(snd))
	copy(msg.Body[RzvBodyBySomeIP:], snd)
	binary.BigEndian.PutUint16(msg.Body[2:4], method)
	msg.Body[14] = byte(MT_REQUEST)
	msg.Body[15] = byte(E_OK)
	return msg
}

// NewSomeIPRepMsg allocates a mangos message like NewSomeIPMsg, but
// also reserves the extra 4 bytes of header a REP-side pipe uses to
// remember which pipe a response must be routed back to.
func NewSomeIPRepMsg(l int) *protocol.Message {
	msg := mangos.NewMessage(l + RzvBodyBySomeIP)
	msg.Header = msg.Header[0 : 4+RzvHdrBySomeIP]
	msg.Body = msg.Body[:l+RzvBodyBySomeIP]
	return msg
}

// NewMsgRaw builds a fully-addressed SOME/IP message: method, the
// explicit identity in opt, the given message type and return code,
// and snd as the payload.
func NewMsgRaw(method uint16, opt OptSomeIP, t MsgTypeCode, c ErrCodeSomeIP, snd []byte) *protocol.Message {
	msg := NewSomeIPMsg(len(snd))
	copy(msg.Body[RzvBodyBySomeIP:], snd)

	binary.BigEndian.PutUint16(msg.Body[0:2], opt.SrvID)
	binary.BigEndian.PutUint16(msg.Body[2:4], method)
	binary.BigEndian.PutUint32(msg.Body[4:8], uint32(RzvBodyWithoutLth+len(snd)))
	binary.BigEndian.PutUint16(msg.Body[8:10], opt.CltID)
	msg.Body[12] = opt.PV
	msg.Body[13] = opt.InfPV
	msg.Body[14] = byte(t)
	msg.Body[15] = byte(c)
	return msg
}

// NewRepMsg builds a response to the request m: it duplicates m's
// pipe-id header and service/client/session/version fields, replacing
// only the message type, return code, and payload.
func NewRepMsg(m *protocol.Message, msgType MsgTypeCode, rtnCode ErrCodeSomeIP, snd []byte) *protocol.Message {
	m0 := m.Dup()
	m0.Body = m0.Body[0:RzvBodyBySomeIP]
	binary.BigEndian.PutUint32(m0.Body[4:8], uint32(RzvBodyWithoutLth+len(snd)))
	m0.Body[14] = byte(msgType)
	m0.Body[15] = byte(rtnCode)
	m0.Body = append(m0.Body, snd...)
	return m0
}
