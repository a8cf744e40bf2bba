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

// Package transport is the explicit HTTP transport handed into the core
// engine, replacing the teacher's module-scope connection handle (spec.md
// §9's "Transport singleton" redesign note). It knows how to do a single
// GET with optional range-resume and is safe to call concurrently so the
// download pipeline can fan requests out across goroutines.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Connect timeout and low-speed timeout named in spec.md §5.
const (
	ConnectTimeout  = 30 * time.Second
	LowSpeedTimeout = 120 * time.Second
)

// StatusError is returned when the server responds with a status the call
// cannot use (anything but 200 for Get, anything but 200 or 206 for
// Download), carrying the status code so callers can apply spec.md §4.5's
// retry categorisation (403/404 don't retry, others may).
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// RangeNotSupportedError is returned when a range-resume request comes
// back as a full 200 rather than a partial 206, signalling that the server
// doesn't support resume for this URL; the download pipeline then retries
// that one file without resume. Other files' retries still request resume.
type RangeNotSupportedError struct {
	URL string
}

func (e *RangeNotSupportedError) Error() string {
	return "range resume not supported by server for " + e.URL
}

// Transport performs HTTP GETs on behalf of the engine. The zero value is
// not usable; construct with New.
type Transport struct {
	client *http.Client
}

// New builds a Transport with the connect/low-speed timeouts spec.md §5
// names. A single Transport is safe to share across concurrent download
// goroutines.
func New() *Transport {
	return &Transport{
		client: &http.Client{
			Timeout: LowSpeedTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: ConnectTimeout,
				}).DialContext,
			},
		},
	}
}

// Get issues a plain GET and returns the response body for the caller to
// read and close.
func (t *Transport) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", url)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", url)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}

// Download fetches url and writes it atomically to destPath: the body is
// streamed to "destPath.download" and renamed into place only once fully
// written, so a crash mid-download never leaves a corrupt file at
// destPath (mirrors the teacher's download-to-temp-then-rename pattern).
//
// If resume is true and a partial file already exists at destPath+".download",
// a Range request continues from its current size; a server that ignores
// the Range header and responds 200 instead of 206 yields
// RangeNotSupportedError so the caller can disable resume and restart.
func (t *Transport) Download(ctx context.Context, url, destPath string, resume bool) (err error) {
	tmpPath := destPath + ".download"

	var offset int64
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if resume {
		if fi, statErr := os.Stat(tmpPath); statErr == nil {
			offset = fi.Size()
			flags = os.O_WRONLY | os.O_APPEND
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %s", url)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetching %s", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		if offset > 0 {
			// Server ignored our Range header and sent the whole body back;
			// the caller should disable resume and retry from scratch.
			return &RangeNotSupportedError{URL: url}
		}
	case http.StatusPartialContent:
		// Fine whether or not we asked for a range: some servers answer 206
		// even to a full request when they only have a byte-range cached.
	default:
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	out, err := os.OpenFile(tmpPath, flags, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening %s", tmpPath)
	}

	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return errors.Wrapf(copyErr, "writing %s", tmpPath)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "closing %s", tmpPath)
	}

	if err = os.Rename(tmpPath, destPath); err != nil {
		return errors.Wrapf(err, "renaming %s to %s", tmpPath, destPath)
	}

	return nil
}
