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

import "errors"

// ErrMalformed is returned by Decode when the input does not fit the
// SD header/entries/options grammar, or when an entry declares a type
// code this codec does not recognize (spec.md §4.3 -- unknown entry
// types fail the decode outright; unknown option types, by contrast,
// are skipped by declared length rather than rejected).
var ErrMalformed = errors.New("sd: malformed message")
