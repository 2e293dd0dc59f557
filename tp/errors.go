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

import "errors"

var (
	// ErrMessageTooLarge is returned by the Segmenter when a message's
	// payload exceeds Config.MaxMessageSize.
	ErrMessageTooLarge = errors.New("tp: message too large")

	// ErrResourceExhausted is returned by the Reassembler when
	// Config.MaxConcurrentTransfers would be exceeded by creating a
	// new buffer.
	ErrResourceExhausted = errors.New("tp: too many concurrent reassemblies")

	// ErrSequenceError is returned when a CONSECUTIVE_SEGMENT or
	// LAST_SEGMENT arrives for a sequence number with no open buffer.
	ErrSequenceError = errors.New("tp: segment for unknown sequence")
)
