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
	"net/http"
	"os"
	"time"

	"github.com/clearlinux/swupd-client/internal/transport"
	"github.com/pkg/errors"
)

// DelayMultiplier and MaxDelaySeconds parameterize the exponential backoff
// between retries (spec.md §4.5's "DELAY_MULTIPLIER"/"MAX_DELAY").
const (
	DelayMultiplier = 2
	MaxDelaySeconds = 300
)

// retryDecision classifies what a download pipeline should do after a
// single fetch attempt fails.
type retryDecision int

const (
	// retryNever means the error is permanent; give up on this URL.
	retryNever retryDecision = iota
	// retryNow means try again immediately, no backoff.
	retryNow
	// retryAfterDelay means back off before trying again.
	retryAfterDelay
)

// classifyRetry implements spec.md §4.5's retry categorisation:
//   - do not retry: HTTP 403/404, local write error
//   - retry now: partial content / server range error (Cache.fetchOne
//     then retries that download without resume), generic retryable error
//   - retry after delay: unspecified transport error, timeout
func classifyRetry(err error) retryDecision {
	// transport.Download wraps every error it returns via errors.Wrapf,
	// so the concrete type a local write failure started as (*os.PathError)
	// is hidden behind that wrap by the time it gets here; unwrap first,
	// the same way IsKind does before its own type switch.
	cause := errors.Cause(err)
	if _, ok := cause.(*os.PathError); ok {
		return retryNever
	}
	if statusErr, ok := cause.(*transport.StatusError); ok {
		switch statusErr.StatusCode {
		case http.StatusForbidden, http.StatusNotFound:
			return retryNever
		default:
			return retryAfterDelay
		}
	}
	if _, ok := cause.(*transport.RangeNotSupportedError); ok {
		return retryNow
	}
	return retryAfterDelay
}

// backoffDelay returns the delay to wait after failed attempt number
// attempt (0-based) before the next one, given the configured initial
// delay in seconds.
func backoffDelay(initialSeconds, attempt int) time.Duration {
	delay := initialSeconds
	for i := 0; i < attempt; i++ {
		delay *= DelayMultiplier
		if delay > MaxDelaySeconds {
			delay = MaxDelaySeconds
			break
		}
	}
	return time.Duration(delay) * time.Second
}

// withRetry calls fn up to maxRetries+1 times, honoring classifyRetry's
// verdict and backing off between attempts per backoffDelay. sleep is
// injected so tests can run without real delays.
func withRetry(maxRetries, initialDelaySeconds int, sleep func(time.Duration), fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		switch classifyRetry(err) {
		case retryNever:
			return err
		case retryNow:
			continue
		case retryAfterDelay:
			sleep(backoffDelay(initialDelaySeconds, attempt))
		}
	}
	return lastErr
}
