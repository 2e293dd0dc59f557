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

// Package proto_someip glues the someip core codec's Message to a
// mangos Socket/Pipe protocol implementation: the wire-level
// MessageType/ReturnCode identity is the someip package's, and this
// package only adds the framing mangos.Message needs (a 4-byte pipe-id
// header ahead of the 16-byte SOME/IP header) and the protocol.ID
// pair xreq_someip/xrep_someip register under.
package proto_someip

import (
	"go.nanomsg.org/mangos/v3/protocol"

	"github.com/go-someip/someip/someip"
)

// Framing constants. mangos reserves msg.Header for pipe routing; the
// SOME/IP header and payload both live in msg.Body.
const (
	RzvHdrBySomeIP    = 4  // bytes of msg.Header reserved for pipe id
	RzvBodyBySomeIP   = 16 // someip.HeaderSize
	RzvBodyWithoutLth = 8  // client_id..return_code, the span Length() covers
)

const defaultQLen = 128

// ProtoSomeIPReq and ProtoSomeIPRep are this module's private
// protocol.ID allocations for the request/response pair. Upstream
// mangos has no notion of SOME/IP, so these are not nanomsg-registry
// numbers -- they only need to be distinct and stable within this
// module, the same way mangos's own experimental protocols pick
// unregistered numbers during development.
const (
	ProtoSomeIPReq uint16 = 0x3A0
	ProtoSomeIPRep uint16 = 0x3A1
)

// Socket options specific to the SOME/IP protocols, passed to
// Socket.SetOption/GetOption alongside mangos's standard
// protocol.Option* constants.
const (
	OptionSomeIPCtxMaster = "SOMEIP-CTX-MASTER"
	OptionSomeIPCtxSlave  = "SOMEIP-CTX-SLAVE"
	OptionSomeIPSrvID     = "SOMEIP-SRV-ID"
	OptionSomeIPCltID     = "SOMEIP-CLT-ID"
	OptionSomeIPPV        = "SOMEIP-PV"
	OptionSomeIPInfPV     = "SOMEIP-INF-PV"
)

// SomeIPOpts is the local-identity configuration a someip-req or
// someip-rep socket is bound with: which service/client id it speaks
// for, and which protocol/interface version it enforces.
type SomeIPOpts struct {
	ServiceID    uint16
	ClientID     uint16
	ProtoVersion uint8
	InfVersion   uint8
}

// MsgTypeCode and ErrCodeSomeIP are aliases onto the core someip
// package's enums -- this package carries no type of its own for
// message type or return code, so a value decoded by someip.Deserialize
// and a value produced by this protocol's pipes are interchangeable
// without a conversion step.
type MsgTypeCode = someip.MessageType
type ErrCodeSomeIP = someip.ReturnCode

// MsgTypeCode values, re-exported under the mangos-style names this
// package's pipes switch on.
const (
	MT_REQUEST              = someip.MessageTypeRequest
	MT_REQUEST_NO_RETURN    = someip.MessageTypeRequestNoReturn
	MT_NOTIFICATION         = someip.MessageTypeNotification
	MT_REQUEST_ACK          = someip.MessageTypeRequestAck
	MT_RESPONSE             = someip.MessageTypeResponse
	MT_ERROR                = someip.MessageTypeError
	MT_RESPONSE_ACK         = someip.MessageTypeResponseAck
	MT_ERROR_ACK            = someip.MessageTypeErrorAck
	MT_TP_REQUEST           = someip.MessageTypeTpRequest
	MT_TP_REQUEST_NO_RETURN = someip.MessageTypeTpRequestNoReturn
	MT_TP_NOTIFICATION      = someip.MessageTypeTpNotification
)

// ErrCodeSomeIP values, re-exported under the mangos-style names.
const (
	E_OK                      = someip.EOk
	E_NOT_OK                  = someip.ENotOk
	E_UNKNOWN_SERVICE         = someip.EUnknownService
	E_UNKNOWN_METHOD          = someip.EUnknownMethod
	E_NOT_READY               = someip.ENotReady
	E_NOT_REACHABLE           = someip.ENotReachable
	E_TIMEOUT                 = someip.ETimeout
	E_WRONG_PROTOCOL_VERSION  = someip.EWrongProtocolVersion
	E_WRONG_INTERFACE_VERSION = someip.EWrongInterfaceVersion
	E_MALFORMED_MESSAGE       = someip.EMalformedMessage
	E_WRONG_MESSAGE_TYPE      = someip.EWrongMessageType
)

// MessageSomeIP is the decoded view of a SOME/IP message as it moves
// through a mangos pipe: M is the underlying mangos message (owning
// the pipe-id header and the raw body bytes), and the remaining fields
// mirror someip.Message so callers never unpack m.Body by hand.
type MessageSomeIP struct {
	M            *protocol.Message
	ServiceID    uint16
	MethodID     uint16
	ClientID     uint16
	SessionID    uint16
	ProtoVersion uint8
	InfVersion   uint8
	MsgType      MsgTypeCode
	RtnCode      ErrCodeSomeIP
	Payload      []byte
}

// ToSomeIP converts the mangos-pipe view into the core someip.Message
// this module's codec operates on, independent of any mangos framing.
func (m *MessageSomeIP) ToSomeIP() *someip.Message {
	return &someip.Message{
		ServiceID:        m.ServiceID,
		MethodID:         m.MethodID,
		ClientID:         m.ClientID,
		SessionID:        m.SessionID,
		ProtocolVersion:  m.ProtoVersion,
		InterfaceVersion: m.InfVersion,
		MessageType:      m.MsgType,
		ReturnCode:       m.RtnCode,
		Payload:          m.Payload,
	}
}

// FromSomeIPBody decodes a mangos message's body (16-byte SOME/IP
// header plus payload) with someip.Deserialize and copies the result
// into the flat fields RecvMsg callers read. Payload is the decoded
// copy, not a slice of m.Body.
func FromSomeIPBody(m *protocol.Message) (MessageSomeIP, error) {
	decoded, err := someip.Deserialize(m.Body)
	if err != nil {
		return MessageSomeIP{}, err
	}
	return MessageSomeIP{
		M:            m,
		ServiceID:    decoded.ServiceID,
		MethodID:     decoded.MethodID,
		ClientID:     decoded.ClientID,
		SessionID:    decoded.SessionID,
		ProtoVersion: decoded.ProtocolVersion,
		InfVersion:   decoded.InterfaceVersion,
		MsgType:      decoded.MessageType,
		RtnCode:      decoded.ReturnCode,
		Payload:      decoded.Payload,
	}, nil
}

// GetSomeIPBody returns the raw SOME/IP payload of a mangos message,
// i.e. everything past the 16-byte header.
func GetSomeIPBody(m *protocol.Message) []byte {
	return m.Body[RzvBodyBySomeIP:]
}

// GetSomeIPRtnCode returns the return_code field of a mangos message's
// SOME/IP body.
func GetSomeIPRtnCode(m *protocol.Message) ErrCodeSomeIP {
	return ErrCodeSomeIP(m.Body[15])
}

// GetSomeIPMsgType returns the message_type field of a mangos
// message's SOME/IP body.
func GetSomeIPMsgType(m *protocol.Message) MsgTypeCode {
	return MsgTypeCode(m.Body[14])
}
