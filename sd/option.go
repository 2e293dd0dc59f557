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
	"fmt"
	"net"

	"github.com/go-someip/someip/wire"
)

// SdOption is a variable-length SD option. Every variant shares the
// 2-byte-length + 1-byte-type + 1-byte-reserved framing; the type
// dictates how the remaining declared-length bytes are interpreted.
type SdOption interface {
	// OptionType returns the on-wire type code.
	OptionType() OptionType
	// Encode writes the full wire representation, including the
	// 2-byte length prefix.
	Encode() []byte
}

// optionLength returns the declared length field for an option whose
// body (everything after the reserved byte) is bodyLen bytes: the
// type byte and the reserved byte both count, per spec.md §6 ("length
// counts every byte after the length field").
func optionLength(bodyLen int) uint16 {
	return uint16(2 + bodyLen) // type(1) + reserved(1) + body
}

// Ipv4EndpointOption names a single IPv4 endpoint (address, transport
// protocol, port) at which a service instance is reachable.
type Ipv4EndpointOption struct {
	Address net.IP
	Proto   L4Proto
	Port    uint16
}

func (o *Ipv4EndpointOption) OptionType() OptionType { return OptionTypeIpv4Endpoint }

func (o *Ipv4EndpointOption) Encode() []byte {
	w := wire.NewWriter(2 + 10)
	w.WriteU16(optionLength(8))
	w.WriteU8(uint8(OptionTypeIpv4Endpoint))
	w.WriteU8(0) // reserved
	writeIpv4(w, o.Address)
	w.WriteU8(0) // reserved
	w.WriteU8(uint8(o.Proto))
	w.WriteU16(o.Port)
	return w.Bytes()
}

func (o *Ipv4EndpointOption) String() string {
	return fmt.Sprintf("sd.Ipv4EndpointOption{%s:%d/%s}", o.Address, o.Port, o.Proto)
}

func decodeIpv4Endpoint(r *wire.Reader) (*Ipv4EndpointOption, error) {
	addr, err := readIpv4(r)
	if err != nil {
		return nil, err
	}
	r.Skip(1) // reserved
	proto, err := r.ReadU8()
	if err != nil {
		return nil, ErrMalformed
	}
	port, err := r.ReadU16()
	if err != nil {
		return nil, ErrMalformed
	}
	return &Ipv4EndpointOption{Address: addr, Proto: L4Proto(proto), Port: port}, nil
}

// Ipv4MulticastOption names an IPv4 multicast group used for event
// notification distribution.
type Ipv4MulticastOption struct {
	Address net.IP
	Port    uint16
}

func (o *Ipv4MulticastOption) OptionType() OptionType { return OptionTypeIpv4Multicast }

func (o *Ipv4MulticastOption) Encode() []byte {
	w := wire.NewWriter(2 + 9)
	w.WriteU16(optionLength(7))
	w.WriteU8(uint8(OptionTypeIpv4Multicast))
	w.WriteU8(0) // reserved
	writeIpv4(w, o.Address)
	w.WriteU8(0) // reserved
	w.WriteU16(o.Port)
	return w.Bytes()
}

func (o *Ipv4MulticastOption) String() string {
	return fmt.Sprintf("sd.Ipv4MulticastOption{%s:%d}", o.Address, o.Port)
}

func decodeIpv4Multicast(r *wire.Reader) (*Ipv4MulticastOption, error) {
	addr, err := readIpv4(r)
	if err != nil {
		return nil, err
	}
	r.Skip(1) // reserved
	port, err := r.ReadU16()
	if err != nil {
		return nil, ErrMalformed
	}
	return &Ipv4MulticastOption{Address: addr, Port: port}, nil
}

// Ipv6EndpointOption is Ipv4EndpointOption's 16-byte-address sibling.
// spec.md §3 only reserves the code for this; SPEC_FULL.md's
// supplemented-features section fills it in from the original's
// sd_message.cpp, which encodes it alongside the IPv4 variant.
type Ipv6EndpointOption struct {
	Address net.IP
	Proto   L4Proto
	Port    uint16
}

func (o *Ipv6EndpointOption) OptionType() OptionType { return OptionTypeIpv6Endpoint }

func (o *Ipv6EndpointOption) Encode() []byte {
	w := wire.NewWriter(2 + 22)
	w.WriteU16(optionLength(20))
	w.WriteU8(uint8(OptionTypeIpv6Endpoint))
	w.WriteU8(0)
	writeIpv6(w, o.Address)
	w.WriteU8(0)
	w.WriteU8(uint8(o.Proto))
	w.WriteU16(o.Port)
	return w.Bytes()
}

func (o *Ipv6EndpointOption) String() string {
	return fmt.Sprintf("sd.Ipv6EndpointOption{[%s]:%d/%s}", o.Address, o.Port, o.Proto)
}

func decodeIpv6Endpoint(r *wire.Reader) (*Ipv6EndpointOption, error) {
	addr, err := readIpv6(r)
	if err != nil {
		return nil, err
	}
	r.Skip(1)
	proto, err := r.ReadU8()
	if err != nil {
		return nil, ErrMalformed
	}
	port, err := r.ReadU16()
	if err != nil {
		return nil, ErrMalformed
	}
	return &Ipv6EndpointOption{Address: addr, Proto: L4Proto(proto), Port: port}, nil
}

// Ipv6MulticastOption is Ipv4MulticastOption's 16-byte-address sibling.
type Ipv6MulticastOption struct {
	Address net.IP
	Port    uint16
}

func (o *Ipv6MulticastOption) OptionType() OptionType { return OptionTypeIpv6Multicast }

func (o *Ipv6MulticastOption) Encode() []byte {
	w := wire.NewWriter(2 + 21)
	w.WriteU16(optionLength(19))
	w.WriteU8(uint8(OptionTypeIpv6Multicast))
	w.WriteU8(0)
	writeIpv6(w, o.Address)
	w.WriteU8(0)
	w.WriteU16(o.Port)
	return w.Bytes()
}

func (o *Ipv6MulticastOption) String() string {
	return fmt.Sprintf("sd.Ipv6MulticastOption{[%s]:%d}", o.Address, o.Port)
}

func decodeIpv6Multicast(r *wire.Reader) (*Ipv6MulticastOption, error) {
	addr, err := readIpv6(r)
	if err != nil {
		return nil, err
	}
	r.Skip(1)
	port, err := r.ReadU16()
	if err != nil {
		return nil, ErrMalformed
	}
	return &Ipv6MulticastOption{Address: addr, Port: port}, nil
}

// LoadBalancingOption carries the priority/weight pair a client uses
// to pick among multiple offers of the same service, per the
// original's load_balancing_option.cpp.
type LoadBalancingOption struct {
	Priority uint16
	Weight   uint16
}

func (o *LoadBalancingOption) OptionType() OptionType { return OptionTypeLoadBalancing }

func (o *LoadBalancingOption) Encode() []byte {
	w := wire.NewWriter(2 + 6)
	w.WriteU16(optionLength(4))
	w.WriteU8(uint8(OptionTypeLoadBalancing))
	w.WriteU8(0)
	w.WriteU16(o.Priority)
	w.WriteU16(o.Weight)
	return w.Bytes()
}

func (o *LoadBalancingOption) String() string {
	return fmt.Sprintf("sd.LoadBalancingOption{priority=%d weight=%d}", o.Priority, o.Weight)
}

func decodeLoadBalancing(r *wire.Reader) (*LoadBalancingOption, error) {
	priority, err := r.ReadU16()
	if err != nil {
		return nil, ErrMalformed
	}
	weight, err := r.ReadU16()
	if err != nil {
		return nil, ErrMalformed
	}
	return &LoadBalancingOption{Priority: priority, Weight: weight}, nil
}

// UnknownOption preserves the type code and raw body of an option
// this codec does not recognize, so that a decode never silently
// drops bytes the caller might need to forward. spec.md §4.3 mandates
// skipping by declared length, not discarding; retaining the body
// (rather than just the length) is what lets a relay re-encode it
// unchanged.
type UnknownOption struct {
	Type OptionType
	Body []byte // everything after the reserved byte
}

func (o *UnknownOption) OptionType() OptionType { return o.Type }

func (o *UnknownOption) Encode() []byte {
	w := wire.NewWriter(2 + 2 + len(o.Body))
	w.WriteU16(optionLength(len(o.Body)))
	w.WriteU8(uint8(o.Type))
	w.WriteU8(0)
	w.WriteBytes(o.Body)
	return w.Bytes()
}

func (o *UnknownOption) String() string {
	return fmt.Sprintf("sd.UnknownOption{type=%#02x bodyLen=%d}", uint8(o.Type), len(o.Body))
}

// DecodeOption reads one variable-length option from r: the 2-byte
// length, 1-byte type, 1-byte reserved, then dispatches on type.
// Unrecognized types are preserved as UnknownOption by consuming
// exactly the declared length, so framing is never lost.
func DecodeOption(r *wire.Reader) (SdOption, error) {
	length, err := r.ReadU16()
	if err != nil {
		return nil, ErrMalformed
	}
	if length < 2 {
		// type + reserved must be present even for a degenerate option.
		return nil, ErrMalformed
	}
	typ, err := r.ReadU8()
	if err != nil {
		return nil, ErrMalformed
	}
	reserved, err := r.ReadU8()
	if err != nil {
		return nil, ErrMalformed
	}
	_ = reserved
	bodyLen := int(length) - 2
	if r.Remaining() < bodyLen {
		return nil, ErrMalformed
	}
	bodyStart := r.Position()

	var (
		opt SdOption
		derr error
	)
	switch OptionType(typ) {
	case OptionTypeIpv4Endpoint:
		opt, derr = decodeIpv4Endpoint(r)
	case OptionTypeIpv4Multicast:
		opt, derr = decodeIpv4Multicast(r)
	case OptionTypeIpv6Endpoint:
		opt, derr = decodeIpv6Endpoint(r)
	case OptionTypeIpv6Multicast:
		opt, derr = decodeIpv6Multicast(r)
	case OptionTypeLoadBalancing:
		opt, derr = decodeLoadBalancing(r)
	default:
		body, rerr := r.ReadBytes(bodyLen)
		if rerr != nil {
			return nil, ErrMalformed
		}
		return &UnknownOption{Type: OptionType(typ), Body: append([]byte(nil), body...)}, nil
	}
	if derr != nil {
		return nil, derr
	}
	// A recognized type's body may be shorter than the declared length
	// (reserved/padding bytes in a future minor revision); land the
	// cursor at the declared boundary regardless of how many bytes the
	// variant-specific decoder actually consumed.
	r.SetPosition(bodyStart + bodyLen)
	return opt, nil
}

func writeIpv4(w *wire.Writer, ip net.IP) {
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	w.WriteBytes(v4)
}

func readIpv4(r *wire.Reader) (net.IP, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return nil, ErrMalformed
	}
	return net.IPv4(b[0], b[1], b[2], b[3]), nil
}

func writeIpv6(w *wire.Writer, ip net.IP) {
	v6 := ip.To16()
	if v6 == nil {
		v6 = net.IPv6zero
	}
	w.WriteBytes(v6)
}

func readIpv6(r *wire.Reader) (net.IP, error) {
	b, err := r.ReadBytes(16)
	if err != nil {
		return nil, ErrMalformed
	}
	ip := make(net.IP, 16)
	copy(ip, b)
	return ip, nil
}
