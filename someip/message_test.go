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
	"bytes"
	"reflect"
	"testing"
)

// TestHelloWorldRoundTrip is S1 from spec.md.
func TestHelloWorldRoundTrip(t *testing.T) {
	m := &Message{
		ServiceID:        0x1000,
		MethodID:         0x0001,
		ClientID:         0x1234,
		SessionID:        0x5678,
		ProtocolVersion:  ProtocolVersion,
		InterfaceVersion: InterfaceVersion,
		MessageType:      MessageTypeRequest,
		ReturnCode:       EOk,
		Payload:          []byte("Hello"),
	}

	want := []byte{
		0x10, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x0D,
		0x12, 0x34, 0x56, 0x78, 0x01, 0x01, 0x00, 0x00,
		0x48, 0x65, 0x6C, 0x6C, 0x6F,
	}
	got := m.Serialize()
	if !bytes.Equal(got, want) {
		t.Fatalf("Serialize() = % X, want % X", got, want)
	}

	back, err := Deserialize(got)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !reflect.DeepEqual(back, m) {
		t.Fatalf("round-trip mismatch: got %+v want %+v", back, m)
	}
}

// TestLengthInvariant is S2 from spec.md.
func TestLengthInvariant(t *testing.T) {
	m := New(0x1, 0x1, MessageTypeRequest)
	m.Payload = bytes.Repeat([]byte{0xAA}, 100)
	if got := m.Length(); got != 108 {
		t.Fatalf("Length() = %d, want 108", got)
	}
	if err := m.IsValid(); err != nil {
		t.Fatalf("IsValid() = %v, want nil", err)
	}

	data := m.Serialize()
	// Corrupt the length field to 99.
	data[4], data[5], data[6], data[7] = 0, 0, 0, 99
	back, err := Deserialize(data)
	if err == nil {
		// Deserialize itself must fail: remaining bytes (100) != 99-8.
		t.Fatalf("expected Deserialize error, got message %v", back)
	}
}

// TestDeserializeTooShort is P3.
func TestDeserializeTooShort(t *testing.T) {
	for n := 0; n < HeaderSize; n++ {
		if _, err := Deserialize(make([]byte, n)); err != ErrMalformed {
			t.Fatalf("len %d: err = %v, want ErrMalformed", n, err)
		}
	}
}

// TestSerializeLengthField is P2.
func TestSerializeLengthField(t *testing.T) {
	m := New(1, 2, MessageTypeRequest)
	m.Payload = []byte("some payload bytes")
	data := m.Serialize()
	length := uint32(data[4])<<24 | uint32(data[5])<<16 | uint32(data[6])<<8 | uint32(data[7])
	if length != 8+uint32(len(m.Payload)) {
		t.Fatalf("length field = %d, want %d", length, 8+len(m.Payload))
	}
}

// TestRoundTripProperty is P1, run over a grid of valid messages.
func TestRoundTripProperty(t *testing.T) {
	payloads := [][]byte{nil, {}, {0x00}, bytes.Repeat([]byte{0x42}, 257)}
	types := []MessageType{MessageTypeRequest, MessageTypeRequestNoReturn, MessageTypeNotification,
		MessageTypeResponse, MessageTypeError, MessageTypeTpRequest}
	for _, p := range payloads {
		for _, mt := range types {
			m := New(0xBEEF, 0xCAFE, mt)
			m.ClientID = 0x0102
			m.SessionID = 0x0304
			m.ReturnCode = EOk
			m.Payload = p
			data := m.Serialize()
			back, err := Deserialize(data)
			if err != nil {
				t.Fatalf("type %v payload %v: Deserialize: %v", mt, p, err)
			}
			if back.ServiceID != m.ServiceID || back.MethodID != m.MethodID ||
				back.ClientID != m.ClientID || back.SessionID != m.SessionID ||
				back.MessageType != m.MessageType || back.ReturnCode != m.ReturnCode ||
				!bytes.Equal(back.Payload, m.Payload) {
				t.Fatalf("round-trip mismatch: got %+v want %+v", back, m)
			}
		}
	}
}

// TestDecodeDeterministic is P8: decoding the same input twice yields
// equal structured values, and neither decode mutates the input.
func TestDecodeDeterministic(t *testing.T) {
	m := New(1, 2, MessageTypeRequest)
	m.Payload = []byte("deterministic")
	data := m.Serialize()
	snapshot := append([]byte(nil), data...)

	a, errA := Deserialize(data)
	b, errB := Deserialize(data)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("decoders diverged: %+v vs %+v", a, b)
	}
	if !bytes.Equal(data, snapshot) {
		t.Fatalf("decode mutated input buffer")
	}
}

func TestIsValidRejectsBadVersion(t *testing.T) {
	m := New(1, 1, MessageTypeRequest)
	m.ProtocolVersion = 2
	if err := m.IsValid(); err != ErrBadVersion {
		t.Fatalf("IsValid() = %v, want ErrBadVersion", err)
	}
}

func TestIsValidRejectsOversizedPayload(t *testing.T) {
	m := New(1, 1, MessageTypeRequest)
	m.Payload = make([]byte, MaxTCPPayloadSize+1)
	if err := m.IsValid(); err != ErrTooLarge {
		t.Fatalf("IsValid() = %v, want ErrTooLarge", err)
	}
}

func TestClassificationHelpers(t *testing.T) {
	cases := []struct {
		mt         MessageType
		isReq      bool
		isResp     bool
		usesTp     bool
	}{
		{MessageTypeRequest, true, false, false},
		{MessageTypeRequestNoReturn, true, false, false},
		{MessageTypeNotification, false, false, false},
		{MessageTypeResponse, false, true, false},
		{MessageTypeError, false, true, false},
		{MessageTypeTpRequest, true, false, true},
		{MessageTypeTpRequestNoReturn, true, false, true},
		{MessageTypeTpNotification, false, false, true},
	}
	for _, c := range cases {
		m := New(1, 1, c.mt)
		if m.IsRequest() != c.isReq {
			t.Errorf("%v: IsRequest() = %v, want %v", c.mt, m.IsRequest(), c.isReq)
		}
		if m.IsResponse() != c.isResp {
			t.Errorf("%v: IsResponse() = %v, want %v", c.mt, m.IsResponse(), c.isResp)
		}
		if m.UsesTp() != c.usesTp {
			t.Errorf("%v: UsesTp() = %v, want %v", c.mt, m.UsesTp(), c.usesTp)
		}
	}
}

func TestStringOmitsPayloadBytes(t *testing.T) {
	m := New(1, 1, MessageTypeRequest)
	m.Payload = []byte{0xDE, 0xAD, 0xBE, 0xEF}
	s := m.String()
	if bytes.Contains([]byte(s), []byte{0xDE}) {
		t.Fatalf("String() leaked raw payload bytes: %q", s)
	}
}
