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
	"bytes"
	"os/exec"
	"strings"
)

// VerifySignature checks that sigPath is a valid detached PKCS7 signature
// of contentPath produced by a certificate chaining to caPath. Signature
// verification is shelled out to openssl rather than done with a Go PKCS7
// library, the same way the teacher's build tooling signs and verifies the
// MoM: PKCS7/CMS support in the Go ecosystem at the time was thin enough
// that openssl smime was the practical choice for both sides.
func VerifySignature(contentPath, sigPath, caPath string) error {
	cmd := exec.Command(
		"openssl", "smime", "-verify",
		"-in", sigPath,
		"-inform", "der",
		"-content", contentPath,
		"-CAfile", caPath,
		"-purpose", "crlsign",
	)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return newError(KindIntegrity, "", err,
			"%s\nsignature verification failed: %s", strings.TrimSpace(buf.String()), strings.Join(cmd.Args, " "))
	}
	return nil
}
