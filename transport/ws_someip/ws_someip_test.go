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

package ws_someip

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-someip/someip/someip"
	"github.com/go-someip/someip/tp"
)

func TestConnRoundTripOverHTTPTestServer(t *testing.T) {
	cfg := tp.DefaultConfig()
	cfg.MaxSegmentSize = 40

	accepted := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Upgrade(w, r, cfg, 1<<20)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		accepted <- c
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	client, err := Dial(url, cfg, 1<<20)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var server *Conn
	select {
	case server = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("server never accepted the connection")
	}
	defer server.Close()

	payload := bytes.Repeat([]byte("x"), 200)
	msg := someip.New(0xAAAA, 0xBBBB, someip.MessageTypeTpNotification)
	msg.Payload = payload

	go func() {
		if err := client.Send(msg); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	got, err := server.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got.ServiceID != 0xAAAA || got.MethodID != 0xBBBB {
		t.Fatalf("got = %s", got)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("payload mismatch: got %d bytes, want %d", len(got.Payload), len(payload))
	}
}
