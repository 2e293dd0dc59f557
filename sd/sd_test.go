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

package sd

import (
	"net"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// TestFindServiceRoundTrip is scenario S6: one FIND_SERVICE entry, no
// options.
func TestFindServiceRoundTrip(t *testing.T) {
	Convey("FIND_SERVICE round-trip", t, func() {
		msg := New()
		msg.Entries = append(msg.Entries, NewServiceEntry(EntryTypeFindService, 0x1234, 0xFFFF, 0xFF, 3))

		encoded := msg.Encode()
		decoded, err := Decode(encoded)
		So(err, ShouldBeNil)
		So(decoded.Entries, ShouldHaveLength, 1)
		So(decoded.Options, ShouldBeEmpty)

		got, ok := decoded.Entries[0].(*ServiceEntry)
		So(ok, ShouldBeTrue)
		So(got.EntryType(), ShouldEqual, EntryTypeFindService)
		So(got.ServiceID, ShouldEqual, uint16(0x1234))
		So(got.InstanceID, ShouldEqual, uint16(0xFFFF))
		So(got.MajorVersion, ShouldEqual, uint8(0xFF))
		So(got.TTL, ShouldEqual, uint32(3))
	})
}

func TestOfferServiceStopSemantics(t *testing.T) {
	Convey("OFFER_SERVICE ttl==0 means stop offering", t, func() {
		e := NewServiceEntry(EntryTypeOfferService, 1, 2, 1, 0)
		So(e.IsStopOffering(), ShouldBeTrue)

		e2 := NewServiceEntry(EntryTypeOfferService, 1, 2, 1, 5)
		So(e2.IsStopOffering(), ShouldBeFalse)
	})
}

func TestEventGroupSubscribeSemantics(t *testing.T) {
	Convey("SUBSCRIBE_EVENTGROUP semantics", t, func() {
		stop := NewEventGroupEntry(EntryTypeSubscribeEventgroup, 1, 2, 1, 0, 9)
		So(stop.IsStopSubscribe(), ShouldBeTrue)

		nack := NewEventGroupEntry(EntryTypeSubscribeEventgroupAck, 1, 2, 1, 0, 9)
		So(nack.IsNack(), ShouldBeTrue)

		ack := NewEventGroupEntry(EntryTypeSubscribeEventgroupAck, 1, 2, 1, 3, 9)
		So(ack.IsNack(), ShouldBeFalse)
	})
}

func TestMessageWithOptionsRoundTrip(t *testing.T) {
	Convey("OFFER_SERVICE with an IPv4 endpoint option round-trips", t, func() {
		msg := New()
		msg.SetReboot(true)
		msg.SetUnicast(true)

		offer := NewServiceEntry(EntryTypeOfferService, 0x1000, 0x0001, 1, 3)
		offer.OptionsCount1 = 1
		msg.Entries = append(msg.Entries, offer)
		msg.Options = append(msg.Options, &Ipv4EndpointOption{
			Address: net.IPv4(192, 168, 1, 10),
			Proto:   L4ProtoUDP,
			Port:    30509,
		})

		encoded := msg.Encode()
		decoded, err := Decode(encoded)
		So(err, ShouldBeNil)
		So(decoded.IsReboot(), ShouldBeTrue)
		So(decoded.IsUnicast(), ShouldBeTrue)
		So(decoded.Entries, ShouldHaveLength, 1)
		So(decoded.Options, ShouldHaveLength, 1)

		opt, ok := decoded.Options[0].(*Ipv4EndpointOption)
		So(ok, ShouldBeTrue)
		So(opt.Address.Equal(net.IPv4(192, 168, 1, 10)), ShouldBeTrue)
		So(opt.Proto, ShouldEqual, L4ProtoUDP)
		So(opt.Port, ShouldEqual, uint16(30509))
	})
}

func TestUnknownOptionIsSkippedByLength(t *testing.T) {
	Convey("an option with an unrecognized type code is preserved, not dropped", t, func() {
		msg := New()
		msg.Options = append(msg.Options, &UnknownOption{Type: OptionType(0x7F), Body: []byte{1, 2, 3, 4}})
		msg.Options = append(msg.Options, &Ipv4MulticastOption{Address: net.IPv4(239, 255, 255, 251), Port: 30490})

		decoded, err := Decode(msg.Encode())
		So(err, ShouldBeNil)
		So(decoded.Options, ShouldHaveLength, 2)

		unk, ok := decoded.Options[0].(*UnknownOption)
		So(ok, ShouldBeTrue)
		So(unk.Type, ShouldEqual, OptionType(0x7F))
		So(unk.Body, ShouldResemble, []byte{1, 2, 3, 4})

		mc, ok := decoded.Options[1].(*Ipv4MulticastOption)
		So(ok, ShouldBeTrue)
		So(mc.Port, ShouldEqual, uint16(30490))
	})
}

func TestIpv6OptionsRoundTrip(t *testing.T) {
	Convey("IPv6 endpoint and multicast options round-trip", t, func() {
		addr := net.ParseIP("fe80::1")
		msg := New()
		msg.Options = append(msg.Options,
			&Ipv6EndpointOption{Address: addr, Proto: L4ProtoTCP, Port: 30509},
			&Ipv6MulticastOption{Address: addr, Port: 30490},
			&LoadBalancingOption{Priority: 1, Weight: 100},
		)

		decoded, err := Decode(msg.Encode())
		So(err, ShouldBeNil)
		So(decoded.Options, ShouldHaveLength, 3)

		ep, ok := decoded.Options[0].(*Ipv6EndpointOption)
		So(ok, ShouldBeTrue)
		So(ep.Address.Equal(addr), ShouldBeTrue)
		So(ep.Proto, ShouldEqual, L4ProtoTCP)

		mc, ok := decoded.Options[1].(*Ipv6MulticastOption)
		So(ok, ShouldBeTrue)
		So(mc.Address.Equal(addr), ShouldBeTrue)

		lb, ok := decoded.Options[2].(*LoadBalancingOption)
		So(ok, ShouldBeTrue)
		So(lb.Priority, ShouldEqual, uint16(1))
		So(lb.Weight, ShouldEqual, uint16(100))
	})
}

func TestDecodeUnknownEntryTypeFails(t *testing.T) {
	Convey("an entry with an unrecognized type code fails the whole decode", t, func() {
		msg := New()
		msg.Entries = append(msg.Entries, NewServiceEntry(EntryTypeFindService, 1, 2, 1, 1))
		encoded := msg.Encode()
		// Corrupt the entry's type byte (first byte after the 8-byte
		// header, whose last 4 bytes are the entries-length prefix).
		encoded[HeaderSize] = 0x55

		_, err := Decode(encoded)
		So(err, ShouldEqual, ErrMalformed)
	})
}

func TestDecodeTruncatedHeaderFails(t *testing.T) {
	Convey("fewer than 8 bytes fails with ErrMalformed", t, func() {
		_, err := Decode([]byte{0x80, 0, 0})
		So(err, ShouldEqual, ErrMalformed)
	})
}

func TestFlagSetters(t *testing.T) {
	Convey("SetReboot/SetUnicast don't disturb the other bit", t, func() {
		m := New()
		m.SetReboot(true)
		m.SetUnicast(true)
		So(m.Flags, ShouldEqual, FlagReboot|FlagUnicast)

		m.SetReboot(false)
		So(m.IsReboot(), ShouldBeFalse)
		So(m.IsUnicast(), ShouldBeTrue)
	})
}
