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

package xrep_someip

import (
	"testing"
	"time"

	"go.nanomsg.org/mangos/v3/protocol"
	_ "go.nanomsg.org/mangos/v3/transport/inproc"

	"github.com/go-someip/someip/protocol/proto_someip"
	"github.com/go-someip/someip/protocol/xreq_someip"
)

func mustSucceed(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestXRepSomeIPIdentity(t *testing.T) {
	s, err := NewSocket()
	mustSucceed(t, err)
	defer s.Close()

	info := s.Info()
	if info.Self != proto_someip.ProtoSomeIPRep {
		t.Fatalf("Self = %v, want %v", info.Self, proto_someip.ProtoSomeIPRep)
	}
	if info.SelfName != "someip-rep" {
		t.Fatalf("SelfName = %q", info.SelfName)
	}
	if info.Peer != proto_someip.ProtoSomeIPReq {
		t.Fatalf("Peer = %v, want %v", info.Peer, proto_someip.ProtoSomeIPReq)
	}
}

func TestXRepSomeIPOptions(t *testing.T) {
	s, err := NewSocket()
	mustSucceed(t, err)
	defer s.Close()

	mustSucceed(t, s.SetOption(protocol.OptionTTL, 4))
	v, err := s.GetOption(protocol.OptionTTL)
	mustSucceed(t, err)
	if v.(int) != 4 {
		t.Fatalf("TTL = %v", v)
	}

	mustSucceed(t, s.SetOption(protocol.OptionBestEffort, true))
	v, err = s.GetOption(protocol.OptionBestEffort)
	mustSucceed(t, err)
	if v.(bool) != true {
		t.Fatalf("BestEffort = %v", v)
	}

	mustSucceed(t, s.SetOption(proto_someip.OptionSomeIPSrvID, uint16(0x99)))
}

func TestXRepSomeIPRecvDeadline(t *testing.T) {
	s, err := NewSocket()
	mustSucceed(t, err)
	defer s.Close()

	mustSucceed(t, s.SetOption(protocol.OptionRecvDeadline, time.Millisecond))
	_, err = s.RecvMsg()
	if err != protocol.ErrRecvTimeout {
		t.Fatalf("RecvMsg error = %v, want ErrRecvTimeout", err)
	}
}

func TestXRepSomeIPSendNoHeaderRejected(t *testing.T) {
	s, err := NewSocket()
	mustSucceed(t, err)
	defer s.Close()

	opt := proto_someip.OptSomeIP{PV: 0x12, InfPV: 0x34, SrvID: 0x56, CltID: 0x78}
	m := proto_someip.NewMsgRaw(0x02, opt, proto_someip.MT_RESPONSE, proto_someip.E_OK, []byte("PING"))
	m.Header = m.Header[0:0]
	err = s.SendMsg(m)
	if err != protocol.ErrTooShort {
		t.Fatalf("SendMsg error = %v, want ErrTooShort", err)
	}
}

func TestXRepSomeIPProtocolMismatchRejected(t *testing.T) {
	addr := "inproc://xrep-someip-mismatch"

	srv, err := NewSocket()
	mustSucceed(t, err)
	defer srv.Close()
	clt, err := xreq_someip.NewSocket()
	mustSucceed(t, err)
	defer clt.Close()

	opt := proto_someip.OptSomeIP{PV: 0x12, InfPV: 0x34, SrvID: 0x56, CltID: 0x78}
	mustSucceed(t, srv.SetOption(protocol.OptionRecvDeadline, time.Second))
	mustSucceed(t, srv.SetOption(protocol.OptionSendDeadline, time.Second))
	mustSucceed(t, srv.SetOption(proto_someip.OptionSomeIPSrvID, opt.SrvID))
	mustSucceed(t, srv.SetOption(proto_someip.OptionSomeIPPV, opt.PV))
	mustSucceed(t, srv.SetOption(proto_someip.OptionSomeIPInfPV, opt.InfPV))

	mustSucceed(t, clt.SetOption(protocol.OptionSendDeadline, time.Second))
	// Client reports a different protocol version than the server enforces.
	mustSucceed(t, clt.SetOption(proto_someip.OptionSomeIPSrvID, opt.SrvID))
	mustSucceed(t, clt.SetOption(proto_someip.OptionSomeIPCltID, opt.CltID))
	mustSucceed(t, clt.SetOption(proto_someip.OptionSomeIPPV, byte(0x99)))
	mustSucceed(t, clt.SetOption(proto_someip.OptionSomeIPInfPV, opt.InfPV))

	mustSucceed(t, srv.Listen(addr))
	mustSucceed(t, clt.Dial(addr))
	time.Sleep(50 * time.Millisecond)

	mustSucceed(t, clt.SendMsg(proto_someip.NewReqMsg(0x02, []byte("PING"))))

	_, err = srv.RecvMsg()
	if err != protocol.ErrProtoOp {
		t.Fatalf("RecvMsg error = %v, want ErrProtoOp", err)
	}
}

func TestXRepSomeIPBestEffortDrop(t *testing.T) {
	s, err := NewSocket()
	mustSucceed(t, err)
	defer s.Close()

	mustSucceed(t, s.SetOption(protocol.OptionWriteQLen, 0))
	mustSucceed(t, s.SetOption(protocol.OptionSendDeadline, 10*time.Millisecond))
	mustSucceed(t, s.SetOption(protocol.OptionBestEffort, true))

	opt := proto_someip.OptSomeIP{PV: 0x12, InfPV: 0x34, SrvID: 0x56, CltID: 0x78}
	m := proto_someip.NewMsgRaw(0x02, opt, proto_someip.MT_RESPONSE, proto_someip.E_OK, []byte("x"))
	m.Header = m.Header[0:4]
	// No pipe is registered for id 0, so SendMsg frees and returns nil
	// rather than blocking -- there is nowhere for the message to go.
	if err := s.SendMsg(m); err != nil {
		t.Fatalf("SendMsg error = %v, want nil", err)
	}
}
