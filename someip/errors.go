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

package someip

import "errors"

// Errors returned by Deserialize and IsValid. These are plain
// comparable sentinels, in the spirit of mangos's protocol.Err* set --
// callers compare with errors.Is rather than pattern-matching a string.
var (
	// ErrMalformed is returned by Deserialize when the input does not
	// fit the 16-byte-header-plus-payload grammar.
	ErrMalformed = errors.New("someip: malformed message")

	// ErrTooLarge is returned by IsValid when the payload exceeds
	// MaxTCPPayloadSize.
	ErrTooLarge = errors.New("someip: payload too large")

	// ErrBadVersion is returned by IsValid when protocol_version or
	// interface_version is not 1.
	ErrBadVersion = errors.New("someip: wrong protocol or interface version")

	// ErrBadMessageType is returned by IsValid when message_type is
	// not one of the enumerated MessageType values.
	ErrBadMessageType = errors.New("someip: invalid message type")

	// ErrBadReturnCode is returned by IsValid when return_code is not
	// one of the enumerated ReturnCode values.
	ErrBadReturnCode = errors.New("someip: invalid return code")
)
