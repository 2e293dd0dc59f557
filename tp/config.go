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

package tp

import "time"

// Config bounds the Segmenter and Reassembler. Defaults match spec.md
// §6's size limits.
//
// RetryTimeout and MaxRetries are unused by the Segmenter/Reassembler
// themselves -- they exist here, rather than duplicated in every
// boundary package, so that protocol/xreq_someip's retransmission loop
// (SPEC_FULL.md §4) shares one configuration surface with segmentation.
type Config struct {
	MaxSegmentSize         uint32
	MaxMessageSize         uint32
	MaxConcurrentTransfers int
	ReassemblyTimeout      time.Duration
	RetryTimeout           time.Duration
	MaxRetries             int
}

// DefaultConfig returns the spec.md §6 defaults.
func DefaultConfig() Config {
	return Config{
		MaxSegmentSize:         1400,
		MaxMessageSize:         1000000,
		MaxConcurrentTransfers: 10,
		ReassemblyTimeout:      5000 * time.Millisecond,
		RetryTimeout:           500 * time.Millisecond,
		MaxRetries:             3,
	}
}
