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

package main

import "github.com/clearlinux/swupd-client/swupd"

// Exit codes, the closed set named in spec.md §6.
const (
	exitOK = iota
	exitCurrentVersionUnknown
	exitCouldntLoadMoM
	exitCouldntLoadManifest
	exitRecurseManifest
	exitInvalidBundle
	exitBundleNotTracked
	exitRequiredBundleError
	exitDiskSpaceError
	exitCouldntRemoveFile
	exitCouldntListDir
	exitTimeUnknown
	exitUnexpectedCondition
	exitBadCert
)

// cliError pins an error to one specific exit code, for the call sites
// (version probe, MoM load, recurse_manifest...) where spec.md names a
// distinct code that swupd.Kind's coarser taxonomy can't disambiguate on
// its own.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// withCode wraps err (if non-nil) so codeForError reports code for it.
func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// codeForError maps an engine error to one of the named exit codes. Kind
// alone doesn't disambiguate every case (e.g. KindState covers both "MoM
// missing" and "tracking divergence"), so a few sentinel error types are
// checked first.
func codeForError(err error) int {
	if err == nil {
		return exitOK
	}

	if ce, ok := err.(*cliError); ok {
		return ce.code
	}

	switch err.(type) {
	case *swupd.InvalidBundleError:
		return exitInvalidBundle
	case *swupd.RequiredByError:
		return exitRequiredBundleError
	case *swupd.NotTrackedError:
		return exitBundleNotTracked
	case *swupd.RemovalFailedError:
		return exitCouldntRemoveFile
	}

	switch {
	case swupd.IsKind(err, swupd.KindCapacity):
		return exitDiskSpaceError
	case swupd.IsKind(err, swupd.KindPolicy):
		return exitRequiredBundleError
	case swupd.IsKind(err, swupd.KindIntegrity):
		return exitCouldntLoadManifest
	case swupd.IsKind(err, swupd.KindTransport):
		return exitCouldntLoadMoM
	case swupd.IsKind(err, swupd.KindState):
		return exitCouldntLoadManifest
	default:
		return exitUnexpectedCondition
	}
}
