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

package someip

import (
	"fmt"

	"github.com/go-someip/someip/wire"
)

// Message is a decoded SOME/IP message: the 16-byte header plus its
// payload. A Message exclusively owns its payload slice -- callers
// that need to retain bytes across a later mutation should copy them.
type Message struct {
	ServiceID        uint16
	MethodID         uint16
	ClientID         uint16
	SessionID        uint16
	ProtocolVersion  uint8
	InterfaceVersion uint8
	MessageType      MessageType
	ReturnCode       ReturnCode
	Payload          []byte
}

// New returns a Message with the fixed protocol/interface version
// fields already set, ready for the caller to fill in the rest.
func New(serviceID, methodID uint16, mt MessageType) *Message {
	return &Message{
		ServiceID:        serviceID,
		MethodID:         methodID,
		ProtocolVersion:  ProtocolVersion,
		InterfaceVersion: InterfaceVersion,
		MessageType:      mt,
		ReturnCode:       EOk,
	}
}

// Length computes the wire length field: 8 bytes (client_id through
// return_code) plus the payload.
func (m *Message) Length() uint32 {
	return 8 + uint32(len(m.Payload))
}

// Serialize encodes the header and payload onto the wire. The length
// field is always recomputed from the current payload before writing,
// per spec.
func (m *Message) Serialize() []byte {
	w := wire.NewWriter(HeaderSize + len(m.Payload))
	w.WriteU16(m.ServiceID)
	w.WriteU16(m.MethodID)
	w.WriteU32(m.Length())
	w.WriteU16(m.ClientID)
	w.WriteU16(m.SessionID)
	w.WriteU8(m.ProtocolVersion)
	w.WriteU8(m.InterfaceVersion)
	w.WriteU8(uint8(m.MessageType))
	w.WriteU8(uint8(m.ReturnCode))
	w.WriteBytes(m.Payload)
	return w.Bytes()
}

// Deserialize decodes a SOME/IP message from data. It fails with
// ErrMalformed if data is shorter than the 16-byte header, if the
// length field is less than 8, or if the number of bytes remaining
// after the header does not exactly equal length-8.
//
// A successfully decoded Message may still carry an unrecognized
// MessageType or ReturnCode -- that is a validation concern, checked
// separately by IsValid, so a transport can build the structured value
// first and decide whether to reject it.
func Deserialize(data []byte) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, ErrMalformed
	}
	r := wire.NewReader(data)

	m := &Message{}
	serviceID, _ := r.ReadU16()
	methodID, _ := r.ReadU16()
	length, _ := r.ReadU32()
	clientID, _ := r.ReadU16()
	sessionID, _ := r.ReadU16()
	pv, _ := r.ReadU8()
	iv, _ := r.ReadU8()
	mt, _ := r.ReadU8()
	rc, _ := r.ReadU8()

	if length < 8 {
		return nil, ErrMalformed
	}
	expectedPayload := int(length) - 8
	actualPayload := r.Remaining()
	if actualPayload != expectedPayload {
		return nil, ErrMalformed
	}

	payload, _ := r.ReadBytes(actualPayload)
	// Deserialize exclusively owns the payload it returns; copy out of
	// the input buffer so later mutation of data cannot alias it.
	m.Payload = append([]byte(nil), payload...)

	m.ServiceID = serviceID
	m.MethodID = methodID
	m.ClientID = clientID
	m.SessionID = sessionID
	m.ProtocolVersion = pv
	m.InterfaceVersion = iv
	m.MessageType = MessageType(mt)
	m.ReturnCode = ReturnCode(rc)
	return m, nil
}

// IsValid checks the header-level invariants: fixed protocol/interface
// version, enum membership of MessageType and ReturnCode, and the TCP
// payload ceiling. Message stores no length field -- Length() derives
// it from Payload -- so length consistency is not checked here; a
// frame whose length field disagrees with its size is rejected by
// Deserialize.
func (m *Message) IsValid() error {
	if m.ProtocolVersion != ProtocolVersion || m.InterfaceVersion != InterfaceVersion {
		return ErrBadVersion
	}
	if !m.MessageType.IsValid() {
		return ErrBadMessageType
	}
	if !m.ReturnCode.IsValid() {
		return ErrBadReturnCode
	}
	if len(m.Payload) > MaxTCPPayloadSize {
		return ErrTooLarge
	}
	return nil
}

// IsRequest reports whether the message's type is a request variant.
func (m *Message) IsRequest() bool { return m.MessageType.IsRequest() }

// IsResponse reports whether the message's type is a response variant.
func (m *Message) IsResponse() bool { return m.MessageType.IsResponse() }

// UsesTp reports whether the message's type is TP-segmented.
func (m *Message) UsesTp() bool { return m.MessageType.UsesTp() }

// String renders a stable debug line: hex IDs, the type and
// return-code names, the length, and the payload size -- never the
// payload bytes themselves.
func (m *Message) String() string {
	return fmt.Sprintf(
		"someip.Message{service=%#04x method=%#04x client=%#04x session=%#04x type=%s rc=%s length=%d payload=%dB}",
		m.ServiceID, m.MethodID, m.ClientID, m.SessionID,
		m.MessageType, m.ReturnCode, m.Length(), len(m.Payload),
	)
}
