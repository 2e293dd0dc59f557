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

// Package someip implements the SOME/IP message header codec: the
// 16-byte header plus payload carriage, validation, and the small set
// of classification helpers (is_request, is_response, uses_tp) that the
// RPC and TP boundary packages key off of.
package someip

import "fmt"

// HeaderSize is the fixed size of the SOME/IP header on the wire.
const HeaderSize = 16

// ProtocolVersion and InterfaceVersion are the only values this codec
// accepts; both are fixed at 1 by the wire format.
const (
	ProtocolVersion  uint8 = 1
	InterfaceVersion uint8 = 1
)

// MaxTCPPayloadSize is the TCP payload ceiling a valid Message's
// payload must not exceed.
const MaxTCPPayloadSize = 65527

// MessageType identifies the kind of a SOME/IP message.
type MessageType uint8

// MessageType values, SOME/IP SIP_RPC_684.
const (
	MessageTypeRequest            MessageType = 0x00
	MessageTypeRequestNoReturn    MessageType = 0x01
	MessageTypeNotification       MessageType = 0x02
	MessageTypeRequestAck         MessageType = 0x40
	MessageTypeResponse           MessageType = 0x80
	MessageTypeError              MessageType = 0x81
	MessageTypeResponseAck        MessageType = 0xC0
	MessageTypeErrorAck           MessageType = 0xC1
	MessageTypeTpRequest          MessageType = 0x20
	MessageTypeTpRequestNoReturn  MessageType = 0x21
	MessageTypeTpNotification     MessageType = 0x22
)

// tpBit is set on every TP-segmented message type variant.
const tpBit = 0x20

// String returns the SOME/IP specification name of the message type, or
// a hex fallback for unrecognized values.
func (t MessageType) String() string {
	switch t {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeRequestNoReturn:
		return "REQUEST_NO_RETURN"
	case MessageTypeNotification:
		return "NOTIFICATION"
	case MessageTypeRequestAck:
		return "REQUEST_ACK"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeError:
		return "ERROR"
	case MessageTypeResponseAck:
		return "RESPONSE_ACK"
	case MessageTypeErrorAck:
		return "ERROR_ACK"
	case MessageTypeTpRequest:
		return "TP_REQUEST"
	case MessageTypeTpRequestNoReturn:
		return "TP_REQUEST_NO_RETURN"
	case MessageTypeTpNotification:
		return "TP_NOTIFICATION"
	default:
		return fmt.Sprintf("UNKNOWN(%#02x)", uint8(t))
	}
}

// IsValid reports whether t is one of the enumerated message types.
func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeRequest, MessageTypeRequestNoReturn, MessageTypeNotification,
		MessageTypeRequestAck, MessageTypeResponse, MessageTypeError,
		MessageTypeResponseAck, MessageTypeErrorAck,
		MessageTypeTpRequest, MessageTypeTpRequestNoReturn, MessageTypeTpNotification:
		return true
	default:
		return false
	}
}

// IsRequest reports whether t is a request-carrying message type
// (ordinary or TP-segmented).
func (t MessageType) IsRequest() bool {
	switch t {
	case MessageTypeRequest, MessageTypeRequestNoReturn,
		MessageTypeTpRequest, MessageTypeTpRequestNoReturn:
		return true
	default:
		return false
	}
}

// IsResponse reports whether t is a response-carrying message type.
func (t MessageType) IsResponse() bool {
	switch t {
	case MessageTypeResponse, MessageTypeError, MessageTypeResponseAck, MessageTypeErrorAck:
		return true
	default:
		return false
	}
}

// UsesTp reports whether t is one of the three TP-segmented variants.
func (t MessageType) UsesTp() bool {
	switch t {
	case MessageTypeTpRequest, MessageTypeTpRequestNoReturn, MessageTypeTpNotification:
		return true
	default:
		return false
	}
}

// HasTpBit reports whether the 0x20 bit that marks TP segmentation is
// set, independent of whether the remaining bits form a type this
// codec recognizes. transport/* uses this to route incoming frames to
// the TP reassembler before decoding.
func (t MessageType) HasTpBit() bool {
	return uint8(t)&tpBit != 0
}

// ReturnCode is the SOME/IP RPC-level status/error code.
type ReturnCode uint8

// ReturnCode values.
const (
	EOk                     ReturnCode = 0x00
	ENotOk                  ReturnCode = 0x01
	EUnknownService         ReturnCode = 0x02
	EUnknownMethod          ReturnCode = 0x03
	ENotReady               ReturnCode = 0x04
	ENotReachable           ReturnCode = 0x05
	ETimeout                ReturnCode = 0x06
	EWrongProtocolVersion   ReturnCode = 0x07
	EWrongInterfaceVersion  ReturnCode = 0x08
	EMalformedMessage       ReturnCode = 0x09
	EWrongMessageType       ReturnCode = 0x0A
	// E2E protection codes, reserved for application-level E2E checks
	// this core never interprets.
	EE2ERepeated    ReturnCode = 0x0B
	EE2EWrongSeq    ReturnCode = 0x0C
	EE2ECRCError    ReturnCode = 0x0D
	EE2EWrongCRC    ReturnCode = 0x0E
	EE2ENotAvailable ReturnCode = 0x0F
)

// String returns the SOME/IP specification name of the return code, or
// a hex fallback for unrecognized values.
func (c ReturnCode) String() string {
	switch c {
	case EOk:
		return "E_OK"
	case ENotOk:
		return "E_NOT_OK"
	case EUnknownService:
		return "E_UNKNOWN_SERVICE"
	case EUnknownMethod:
		return "E_UNKNOWN_METHOD"
	case ENotReady:
		return "E_NOT_READY"
	case ENotReachable:
		return "E_NOT_REACHABLE"
	case ETimeout:
		return "E_TIMEOUT"
	case EWrongProtocolVersion:
		return "E_WRONG_PROTOCOL_VERSION"
	case EWrongInterfaceVersion:
		return "E_WRONG_INTERFACE_VERSION"
	case EMalformedMessage:
		return "E_MALFORMED_MESSAGE"
	case EWrongMessageType:
		return "E_WRONG_MESSAGE_TYPE"
	case EE2ERepeated, EE2EWrongSeq, EE2ECRCError, EE2EWrongCRC, EE2ENotAvailable:
		return fmt.Sprintf("E_E2E(%#02x)", uint8(c))
	default:
		return fmt.Sprintf("UNKNOWN(%#02x)", uint8(c))
	}
}

// IsValid reports whether c is one of the enumerated return codes,
// including the reserved E2E range 0x0B..0x0F.
func (c ReturnCode) IsValid() bool {
	return c <= EE2ENotAvailable
}

// IsSuccess reports whether c is E_OK.
func (c ReturnCode) IsSuccess() bool {
	return c == EOk
}
