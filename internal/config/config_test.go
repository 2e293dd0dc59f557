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

package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Validate(Default()) = %v, want nil", err)
	}
}

func TestToTPConfigConvertsDurations(t *testing.T) {
	tpCfg := Default().TP.ToTPConfig()
	if tpCfg.ReassemblyTimeout.Milliseconds() != 5000 {
		t.Fatalf("ReassemblyTimeout = %v, want 5000ms", tpCfg.ReassemblyTimeout)
	}
	if tpCfg.MaxSegmentSize != 1400 {
		t.Fatalf("MaxSegmentSize = %d, want 1400", tpCfg.MaxSegmentSize)
	}
}

func TestValidateRejectsTinySegmentSize(t *testing.T) {
	cfg := Default()
	cfg.TP.MaxSegmentSize = 10
	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() = nil, want error for max_segment_size < 17")
	}
}
