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
	"strconv"

	"github.com/pkg/errors"
)

// Kind classifies an Error into one of the taxonomy buckets so callers can
// branch on what went wrong without string-matching messages.
type Kind int

const (
	// KindTransport covers network, DNS, TLS, and timeout failures.
	KindTransport Kind = iota + 1
	// KindIntegrity covers hash mismatches, signature failures, and parse errors.
	KindIntegrity
	// KindState covers missing files, unknown versions, and tracking divergence.
	KindState
	// KindPolicy covers invalid bundle names, required-by conflicts, and the
	// os-core removal guard.
	KindPolicy
	// KindCapacity covers disk space exhaustion.
	KindCapacity
	// KindInterrupted covers user abort.
	KindInterrupted
	// KindFatal covers anything that should never happen in a correct build.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindIntegrity:
		return "integrity"
	case KindState:
		return "state"
	case KindPolicy:
		return "policy"
	case KindCapacity:
		return "capacity"
	case KindInterrupted:
		return "interrupted"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the error type returned by this package's exported operations.
// It carries a Kind so callers can make retry/abort decisions, and wraps an
// underlying cause via github.com/pkg/errors so the full chain still prints.
type Error struct {
	Kind    Kind
	Bundle  string // bundle the error pertains to, if any
	cause   error
	message string
}

func (e *Error) Error() string {
	msg := e.message
	if e.Bundle != "" {
		msg = e.Bundle + ": " + msg
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

// Cause returns the wrapped error, satisfying github.com/pkg/errors'
// causer interface so errors.Cause(err) unwraps through an *Error.
func (e *Error) Cause() error {
	return e.cause
}

// newError constructs an *Error of the given kind wrapping cause (which may
// be nil) with the given message.
func newError(kind Kind, bundle string, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Bundle:  bundle,
		cause:   cause,
		message: errors.Errorf(format, args...).Error(),
	}
}

// IsKind reports whether err is (or wraps) a *swupd.Error of kind k.
func IsKind(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == k
		}
		cause := errors.Cause(err)
		if cause == err {
			return false
		}
		err = cause
	}
	return false
}

// NotFoundError is the cause Store attaches to its KindTransport error when
// the server answers a manifest fetch with 404. Store makes a single fetch
// attempt per URL and does not retry.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.URL
}

// InvalidBundleError is returned when a requested bundle name is absent
// from the MoM (spec.md §4.2's BADNAME flag, §7's Policy taxonomy).
type InvalidBundleError struct {
	Name string
}

func (e *InvalidBundleError) Error() string {
	return "invalid bundle name: " + e.Name
}

// RequiredByError is returned when bundle-remove's target still has
// dependants (spec.md §4.7); Remove returns it as the cause of a
// KindPolicy *Error.
type RequiredByError struct {
	Name string
	Tree []string
}

func (e *RequiredByError) Error() string {
	msg := "bundle \"" + e.Name + "\" is required by other installed bundles:"
	for _, line := range e.Tree {
		msg += "\n" + line
	}
	return msg
}

// NotTrackedError is returned when a command is asked to act on a bundle
// that isn't in the local subscription set (spec.md §4.7's "not installed"
// guard on remove).
type NotTrackedError struct {
	Name string
}

func (e *NotTrackedError) Error() string {
	return "bundle \"" + e.Name + "\" is not installed"
}

// RemovalFailedError is returned when every one of a bundle's
// uniquely-owned files failed to unlink from the live tree.
type RemovalFailedError struct {
	Name      string
	Attempted int
}

func (e *RemovalFailedError) Error() string {
	return "bundle \"" + e.Name + "\": could not remove any of its " +
		strconv.Itoa(e.Attempted) + " uniquely-owned files"
}
