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

import (
	"context"
	"errors"
	"testing"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/swupd"
)

func TestCodeForErrorNil(t *testing.T) {
	if got := codeForError(nil); got != exitOK {
		t.Fatalf("codeForError(nil) = %d, want exitOK", got)
	}
}

func TestWithCodeNilPassesThrough(t *testing.T) {
	if err := withCode(exitBadCert, nil); err != nil {
		t.Fatalf("withCode(code, nil) = %v, want nil", err)
	}
}

func TestWithCodeWinsOverKindInference(t *testing.T) {
	underlying := &swupd.InvalidBundleError{Name: "foo"}
	wrapped := withCode(exitTimeUnknown, underlying)
	if got := codeForError(wrapped); got != exitTimeUnknown {
		t.Fatalf("codeForError(withCode(...)) = %d, want exitTimeUnknown (explicit code should win)", got)
	}
	if !errors.Is(wrapped, wrapped) {
		t.Fatalf("wrapped error should be comparable to itself")
	}
	var cliErr *cliError
	if !errors.As(wrapped, &cliErr) {
		t.Fatalf("expected errors.As to unwrap to *cliError")
	}
	if cliErr.Unwrap() != underlying {
		t.Fatalf("cliError.Unwrap() = %v, want the original underlying error", cliErr.Unwrap())
	}
}

func TestCodeForErrorByConcreteType(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid bundle", &swupd.InvalidBundleError{Name: "x"}, exitInvalidBundle},
		{"required by", &swupd.RequiredByError{Name: "x"}, exitRequiredBundleError},
		{"not tracked", &swupd.NotTrackedError{Name: "x"}, exitBundleNotTracked},
		{"removal failed", &swupd.RemovalFailedError{Name: "x", Attempted: 3}, exitCouldntRemoveFile},
	}
	for _, c := range cases {
		if got := codeForError(c.err); got != c.want {
			t.Errorf("%s: codeForError() = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestCodeForErrorByKindViaRealCalls(t *testing.T) {
	// CurrentVersion against a prefix with no os-release surfaces a
	// genuine *swupd.Error of KindState, which this package's mapping
	// routes to exitCouldntLoadManifest (the same bucket as a corrupt
	// manifest, since both mean "the state on disk can't be trusted").
	_, err := swupd.CurrentVersion(t.TempDir())
	if err == nil || !swupd.IsKind(err, swupd.KindState) {
		t.Fatalf("expected a KindState error from CurrentVersion, got %v", err)
	}
	if got := codeForError(err); got != exitCouldntLoadManifest {
		t.Errorf("codeForError(KindState) = %d, want exitCouldntLoadManifest", got)
	}

	// Remove refusing os-core surfaces a genuine KindPolicy error.
	mom := &swupd.MoM{Submanifests: map[string]*swupd.Manifest{}}
	cfg := config.Config{PathPrefix: t.TempDir(), StateDir: t.TempDir()}
	_, err = swupd.Remove(context.Background(), cfg, nil, mom, "os-core")
	if err == nil || !swupd.IsKind(err, swupd.KindPolicy) {
		t.Fatalf("expected a KindPolicy error from Remove(os-core), got %v", err)
	}
	if got := codeForError(err); got != exitRequiredBundleError {
		t.Errorf("codeForError(KindPolicy) = %d, want exitRequiredBundleError", got)
	}
}

func TestPluralSuffix(t *testing.T) {
	if plural(1) != "" {
		t.Fatalf("plural(1) should be empty")
	}
	if plural(0) != "s" {
		t.Fatalf("plural(0) should be \"s\"")
	}
	if plural(2) != "s" {
		t.Fatalf("plural(2) should be \"s\"")
	}
}
