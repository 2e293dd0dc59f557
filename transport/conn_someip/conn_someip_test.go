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
	"net"
	"testing"

	"github.com/go-someip/someip/someip"
)

func TestConnSomeIPRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cp := NewConnPipe(client, ProtocolInfo{}, nil)
	sp := NewConnPipe(server, ProtocolInfo{}, nil)

	msg := someip.New(0x1234, 0x0421, someip.MessageTypeRequest)
	msg.Payload = []byte("hello")
	wire := &Message{Body: msg.Serialize()}

	done := make(chan error, 1)
	go func() { done <- cp.Send(wire) }()

	got, err := sp.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	decoded, err := someip.Deserialize(got.Body)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if decoded.ServiceID != 0x1234 || decoded.MethodID != 0x0421 {
		t.Fatalf("decoded = %s", decoded)
	}
	if string(decoded.Payload) != "hello" {
		t.Fatalf("payload = %q", decoded.Payload)
	}
}

func TestConnSomeIPRecvRejectsOversizedLength(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sp := NewConnPipe(server, ProtocolInfo{}, nil).(*connSomeip)
	sp.SetMaxRecvSize(16)

	msg := someip.New(1, 1, someip.MessageTypeRequest)
	msg.Payload = make([]byte, 64)
	wire := &Message{Body: msg.Serialize()}

	go func() { _, _ = NewConnPipe(client, ProtocolInfo{}, nil).Send(wire) }()

	if _, err := sp.Recv(); err == nil {
		t.Fatal("Recv succeeded, want ErrTooLong")
	}
}
