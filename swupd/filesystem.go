// Copyright 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package swupd

import (
	"os"
	"strings"
)

const illegalChars = ";&|*`/<>\\\"'"

// filenameBlacklisted reports whether name contains characters that would
// be unsafe to use as a path component. Bundle names come from the MoM and
// from CLI arguments, neither of which is trusted input.
func filenameBlacklisted(name string) bool {
	return strings.ContainsAny(name, illegalChars)
}

// exists reports whether path is present on disk, treating any stat error
// other than "not exist" as present (caller will hit the real error on the
// next operation against path).
func exists(path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false
	}
	return true
}
