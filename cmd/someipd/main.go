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

// Command someipd is a minimal Service-Discovery daemon: it offers one
// configured service over the SD multicast group, answers FIND_SERVICE
// with a matching OFFER_SERVICE, and logs malformed datagrams and
// matched FIND_SERVICE entries.
// It exists to give the sd, someip, and internal/config packages a real
// process to run inside, the way the teacher's own example commands
// exercise its protocols end to end rather than just unit-testing them.
package main

import (
	"net"
	"time"

	"github.com/droundy/goopt"
	"github.com/rs/zerolog"

	"github.com/go-someip/someip/internal/config"
	"github.com/go-someip/someip/internal/logging"
	"github.com/go-someip/someip/sd"
	"github.com/go-someip/someip/someip"
)

var (
	flagConfig       = goopt.String([]string{"-c", "--config"}, "", "path to a TOML config file (defaults built in if omitted)")
	flagServiceID    = goopt.Int([]string{"--service-id"}, 0x1234, "service id to offer")
	flagInstanceID   = goopt.Int([]string{"--instance-id"}, 0x0001, "instance id to offer")
	flagMajorVersion = goopt.Int([]string{"--major-version"}, 1, "major version to offer")
	flagTTL          = goopt.Int([]string{"--ttl"}, 3, "OFFER_SERVICE TTL in seconds")
	flagOfferAddr    = goopt.String([]string{"--offer-addr"}, "", "IPv4 address to advertise in the offer's endpoint option (defaults to the outbound interface address)")
	flagOfferPort    = goopt.Int([]string{"--offer-port"}, 30501, "TCP port to advertise in the offer's endpoint option")
)

func init() {
	goopt.Summary = "SOME/IP Service Discovery daemon"
	goopt.Author = "go-someip contributors"
	goopt.Version = "0.1.0"
}

func main() {
	goopt.Parse(nil)
	logging.ConfigureRuntime()
	log := logging.Named("someipd")

	cfg := config.Default()
	if *flagConfig != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			log.Fatal().Err(err).Str("path", *flagConfig).Msg("load config")
		}
		cfg = loaded
	}

	d, err := newDaemon(cfg, offeredService{
		ServiceID:    uint16(*flagServiceID),
		InstanceID:   uint16(*flagInstanceID),
		MajorVersion: uint8(*flagMajorVersion),
		TTL:          uint32(*flagTTL),
		Port:         uint16(*flagOfferPort),
		Addr:         *flagOfferAddr,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("start daemon")
	}
	defer d.Close()

	log.Info().
		Str("multicast", cfg.SD.MulticastAddr).
		Uint16("service_id", uint16(*flagServiceID)).
		Uint16("instance_id", uint16(*flagInstanceID)).
		Msg("someipd running")

	d.run()
}

// offeredService names the single service this daemon advertises.
type offeredService struct {
	ServiceID    uint16
	InstanceID   uint16
	MajorVersion uint8
	TTL          uint32
	Port         uint16
	Addr         string // advertised endpoint address; resolved at startup if empty
}

type daemon struct {
	conn    *net.UDPConn
	peer    *net.UDPAddr
	offer   offeredService
	offerIP net.IP
	log     zerolog.Logger
}

func newDaemon(cfg config.Config, offer offeredService, log zerolog.Logger) (*daemon, error) {
	addr, err := net.ResolveUDPAddr("udp4", cfg.SD.MulticastAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetReadBuffer(1 << 20); err != nil {
		_ = conn.Close()
		return nil, err
	}

	ip := net.ParseIP(offer.Addr)
	if ip == nil {
		ip = outboundAddr()
	}

	return &daemon{
		conn:    conn,
		peer:    addr,
		offer:   offer,
		offerIP: ip,
		log:     log,
	}, nil
}

func (d *daemon) Close() error {
	return d.conn.Close()
}

// run blocks forever, periodically re-offering the configured service
// and answering any FIND_SERVICE entry addressed to it.
func (d *daemon) run() {
	ticker := time.NewTicker(time.Duration(d.offer.TTL) * time.Second / 2)
	defer ticker.Stop()

	go func() {
		for range ticker.C {
			d.sendOffer()
		}
	}()
	d.sendOffer()

	buf := make([]byte, 64*1024)
	for {
		n, src, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		d.handleDatagram(buf[:n], src)
	}
}

func (d *daemon) handleDatagram(data []byte, src *net.UDPAddr) {
	msg, err := someip.Deserialize(data)
	if err != nil {
		d.log.Warn().Err(err).Str("src", src.String()).Msg("malformed someip datagram")
		return
	}
	if msg.ServiceID != sd.ServiceID || msg.MethodID != sd.MethodID {
		return
	}
	sdMsg, err := sd.Decode(msg.Payload)
	if err != nil {
		d.log.Warn().Err(err).Str("src", src.String()).Msg("malformed sd message")
		return
	}
	for _, e := range sdMsg.Entries {
		se, ok := e.(*sd.ServiceEntry)
		if !ok || se.EntryType() != sd.EntryTypeFindService {
			continue
		}
		if se.ServiceID != d.offer.ServiceID {
			continue
		}
		if se.InstanceID != 0xFFFF && se.InstanceID != d.offer.InstanceID {
			continue
		}
		d.log.Debug().Str("src", src.String()).Uint16("service_id", se.ServiceID).Msg("find_service matched, re-offering")
		d.sendOffer()
	}
}

func (d *daemon) sendOffer() {
	entry := sd.NewServiceEntry(sd.EntryTypeOfferService, d.offer.ServiceID, d.offer.InstanceID, d.offer.MajorVersion, d.offer.TTL)

	sdMsg := sd.New()
	sdMsg.Entries = []sd.SdEntry{entry}
	sdMsg.Options = []sd.SdOption{
		&sd.Ipv4EndpointOption{Address: d.offerIP, Proto: sd.L4ProtoTCP, Port: d.offer.Port},
	}

	wire := someip.New(sd.ServiceID, sd.MethodID, someip.MessageTypeNotification)
	wire.Payload = sdMsg.Encode()

	if _, err := d.conn.WriteToUDP(wire.Serialize(), d.peer); err != nil {
		d.log.Warn().Err(err).Msg("send offer")
	}
}

// outboundAddr returns this host's address on the interface the
// kernel would pick to reach the public internet, used only as a
// fallback when --offer-addr is not given.
func outboundAddr() net.IP {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return net.IPv4(127, 0, 0, 1)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP
}
