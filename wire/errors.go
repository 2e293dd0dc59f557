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

package wire

import "errors"

// ErrMalformed is returned whenever a Reader operation would need to
// consume bytes past the end of the buffer.  It never collides with a
// successfully-decoded value -- Reader methods always return it as a
// distinct second return value, never as a sentinel packed into the
// value itself.
var ErrMalformed = errors.New("wire: malformed message")
