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
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/go-someip/someip/someip"
	"github.com/go-someip/someip/tp"
)

func smallSegmentConfig() tp.Config {
	cfg := tp.DefaultConfig()
	cfg.MaxSegmentSize = 32
	return cfg
}

func TestSegmentedConnSingleMessage(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cfg := tp.DefaultConfig()
	sc := NewSegmentedConn(client, cfg, 4096)
	defer sc.Close()
	sr := NewSegmentedConn(server, cfg, 4096)
	defer sr.Close()

	msg := someip.New(0x1111, 0x2222, someip.MessageTypeRequest)
	msg.Payload = []byte("short payload")

	go func() {
		if err := sc.Send(msg); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	got, err := sr.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got.ServiceID != 0x1111 || got.MethodID != 0x2222 {
		t.Fatalf("got = %s", got)
	}
	if string(got.Payload) != "short payload" {
		t.Fatalf("payload = %q", got.Payload)
	}
}

func TestSegmentedConnMultiSegment(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cfg := smallSegmentConfig()
	sc := NewSegmentedConn(client, cfg, 1<<20)
	defer sc.Close()
	sr := NewSegmentedConn(server, cfg, 1<<20)
	defer sr.Close()

	payload := bytes.Repeat([]byte("0123456789"), 50) // 500 bytes, many segments at MaxSegmentSize=32
	msg := someip.New(0x3333, 0x4444, someip.MessageTypeTpRequest)
	msg.Payload = payload

	go func() {
		if err := sc.Send(msg); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	done := make(chan *someip.Message, 1)
	go func() {
		got, err := sr.Recv()
		if err != nil {
			t.Errorf("Recv: %v", err)
			done <- nil
			return
		}
		done <- got
	}()

	select {
	case got := <-done:
		if got == nil {
			t.Fatal("Recv failed")
		}
		if !bytes.Equal(got.Payload, payload) {
			t.Fatalf("payload mismatch: got %d bytes, want %d", len(got.Payload), len(payload))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reassembled message")
	}
}
