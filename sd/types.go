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

// Package sd implements the Service-Discovery wire format: the 8-byte
// SD header, the entries array (ServiceEntry / EventGroupEntry) and the
// options array (IPv4/IPv6 endpoint and multicast, load balancing).
// An SdMessage is carried as the payload of a someip.Message whose
// ServiceID is the well-known value ServiceID (0xFFFF) and MethodID is
// MethodID (0x8100).
package sd

// ServiceID and MethodID are the well-known SOME/IP IDs an SD message
// rides under, per spec.md §6 and the original's include/sd headers.
const (
	ServiceID uint16 = 0xFFFF
	MethodID  uint16 = 0x8100
)

// DefaultMulticastAddr is the SD well-known multicast group and port
// this specification adopts (spec.md §9 Open Questions resolves the
// 239.255.255.251 vs 239.118.122.69 ambiguity in the source in favor
// of the former).
const DefaultMulticastAddr = "239.255.255.251:30490"

// HeaderSize is the fixed size of the SD header that precedes the
// entries array.
const HeaderSize = 8

// EntrySize is the fixed on-wire size of every SdEntry variant.
const EntrySize = 16

// EntryType identifies the kind and role of an SdEntry.
type EntryType uint8

// EntryType values. FindService/OfferService share the ServiceEntry
// shape; OfferService and StopOfferService share the same wire code
//0x01, distinguished only by TTL (spec.md §9 Open Questions -- this
// specification retains that ambiguity rather than inventing a new
// wire code).
const (
	EntryTypeFindService            EntryType = 0x00
	EntryTypeOfferService           EntryType = 0x01
	EntryTypeSubscribeEventgroup    EntryType = 0x06
	EntryTypeSubscribeEventgroupAck EntryType = 0x07
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeFindService:
		return "FIND_SERVICE"
	case EntryTypeOfferService:
		return "OFFER_SERVICE"
	case EntryTypeSubscribeEventgroup:
		return "SUBSCRIBE_EVENTGROUP"
	case EntryTypeSubscribeEventgroupAck:
		return "SUBSCRIBE_EVENTGROUP_ACK"
	default:
		return "UNKNOWN_ENTRY"
	}
}

// isServiceEntryType reports whether t decodes to a ServiceEntry.
func isServiceEntryType(t EntryType) bool {
	return t == EntryTypeFindService || t == EntryTypeOfferService
}

// isEventGroupEntryType reports whether t decodes to an EventGroupEntry.
func isEventGroupEntryType(t EntryType) bool {
	return t == EntryTypeSubscribeEventgroup || t == EntryTypeSubscribeEventgroupAck
}

// OptionType identifies the kind of an SdOption.
type OptionType uint8

// OptionType values. IPv4 endpoint and IPv4 multicast are the base
// variants; the IPv6 and load-balancing codes are filled in here per
// SPEC_FULL.md's supplemented-features section, grounded on the
// original's sd_message.cpp. OptionTypeConfiguration has no concrete
// variant and decodes as an UnknownOption.
const (
	OptionTypeConfiguration OptionType = 0x01
	OptionTypeLoadBalancing OptionType = 0x02
	OptionTypeIpv4Endpoint  OptionType = 0x04
	OptionTypeIpv6Endpoint  OptionType = 0x06
	OptionTypeIpv4Multicast OptionType = 0x14
	OptionTypeIpv6Multicast OptionType = 0x16
)

func (t OptionType) String() string {
	switch t {
	case OptionTypeConfiguration:
		return "CONFIGURATION"
	case OptionTypeLoadBalancing:
		return "LOAD_BALANCING"
	case OptionTypeIpv4Endpoint:
		return "IPV4_ENDPOINT"
	case OptionTypeIpv6Endpoint:
		return "IPV6_ENDPOINT"
	case OptionTypeIpv4Multicast:
		return "IPV4_MULTICAST"
	case OptionTypeIpv6Multicast:
		return "IPV6_MULTICAST"
	default:
		return "UNKNOWN_OPTION"
	}
}

// L4Proto identifies the transport protocol an endpoint option names.
type L4Proto uint8

const (
	L4ProtoTCP L4Proto = 0x06
	L4ProtoUDP L4Proto = 0x11
)

func (p L4Proto) String() string {
	switch p {
	case L4ProtoTCP:
		return "TCP"
	case L4ProtoUDP:
		return "UDP"
	default:
		return "UNKNOWN"
	}
}

// Flag bits in the SD header.
const (
	FlagReboot  uint8 = 0x80
	FlagUnicast uint8 = 0x40
)
