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

// Package config loads the TOML configuration consumed by the
// boundary packages and cmd/someipd: TP size limits, the local
// SOME/IP identity, and listener/SD addresses. The core codec
// packages take a tp.Config directly and never read this file.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/go-someip/someip/tp"
)

// Config is the top-level daemon configuration.
type Config struct {
	TP       TPConfig       `toml:"tp"`
	Identity IdentityConfig `toml:"identity"`
	Listen   ListenConfig   `toml:"listen"`
	SD       SDConfig       `toml:"sd"`
}

// TPConfig mirrors tp.Config's fields with TOML tags and millisecond
// durations, since TOML has no native duration type.
type TPConfig struct {
	MaxSegmentSize         uint32 `toml:"max_segment_size"`
	MaxMessageSize         uint32 `toml:"max_message_size"`
	MaxConcurrentTransfers int    `toml:"max_concurrent_transfers"`
	ReassemblyTimeoutMs    int64  `toml:"reassembly_timeout_ms"`
	RetryTimeoutMs         int64  `toml:"retry_timeout_ms"`
	MaxRetries             int    `toml:"max_retries"`
}

// ReassemblyTimeout returns the configured reassembly timeout as a
// time.Duration.
func (c TPConfig) ReassemblyTimeout() time.Duration {
	return time.Duration(c.ReassemblyTimeoutMs) * time.Millisecond
}

// RetryTimeout returns the configured retry timeout as a
// time.Duration.
func (c TPConfig) RetryTimeout() time.Duration {
	return time.Duration(c.RetryTimeoutMs) * time.Millisecond
}

// ToTPConfig converts the TOML-decoded fields into the tp.Config the
// Segmenter and Reassembler actually take, so boundary code never
// hand-rolls the millisecond-to-Duration conversion twice.
func (c TPConfig) ToTPConfig() tp.Config {
	return tp.Config{
		MaxSegmentSize:         c.MaxSegmentSize,
		MaxMessageSize:         c.MaxMessageSize,
		MaxConcurrentTransfers: c.MaxConcurrentTransfers,
		ReassemblyTimeout:      c.ReassemblyTimeout(),
		RetryTimeout:           c.RetryTimeout(),
		MaxRetries:             c.MaxRetries,
	}
}

// IdentityConfig names the local SOME/IP endpoint this process acts
// as: its own service id (when answering requests) and client id
// (when issuing them).
type IdentityConfig struct {
	ServiceID        uint16 `toml:"service_id"`
	ClientID         uint16 `toml:"client_id"`
	ProtocolVersion  uint8  `toml:"protocol_version"`
	InterfaceVersion uint8  `toml:"interface_version"`
}

// ListenConfig names the transport addresses this process listens on.
type ListenConfig struct {
	TCPAddr string `toml:"tcp_addr"`
	UDPAddr string `toml:"udp_addr"`
	WSAddr  string `toml:"ws_addr"`
}

// SDConfig names the Service-Discovery multicast group this process
// joins, defaulting to spec.md §6/§9's resolved well-known address.
type SDConfig struct {
	MulticastAddr string `toml:"multicast_addr"`
}

// Default returns the configuration defaults, matching spec.md §6's
// size limits and sd.DefaultMulticastAddr.
func Default() Config {
	return Config{
		TP: TPConfig{
			MaxSegmentSize:         1400,
			MaxMessageSize:         1000000,
			MaxConcurrentTransfers: 10,
			ReassemblyTimeoutMs:    5000,
			RetryTimeoutMs:         500,
			MaxRetries:             3,
		},
		Identity: IdentityConfig{
			ProtocolVersion:  1,
			InterfaceVersion: 1,
		},
		Listen: ListenConfig{
			TCPAddr: ":30501",
			UDPAddr: ":30490",
			WSAddr:  ":30502",
		},
		SD: SDConfig{
			MulticastAddr: "239.255.255.251:30490",
		},
	}
}

// Load reads a TOML file at path, applying its values on top of
// Default so a config file only needs to name the fields it overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants a malformed or hand-edited config
// file could violate before any component builds on top of it.
func Validate(cfg Config) error {
	if cfg.TP.MaxSegmentSize < 17 {
		return fmt.Errorf("config: tp.max_segment_size must be >= 17 (16-byte header + >=1 payload byte)")
	}
	if cfg.TP.MaxMessageSize == 0 {
		return fmt.Errorf("config: tp.max_message_size must be > 0")
	}
	if cfg.TP.MaxConcurrentTransfers <= 0 {
		return fmt.Errorf("config: tp.max_concurrent_transfers must be > 0")
	}
	if cfg.TP.ReassemblyTimeoutMs <= 0 {
		return fmt.Errorf("config: tp.reassembly_timeout_ms must be > 0")
	}
	return nil
}
