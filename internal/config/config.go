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

// Package config gathers the client's process-wide settings into a single
// record, threaded explicitly through the engine instead of living in
// package-level variables (spec.md §9's "global process state" redesign
// note). It is built once by the CLI front end from compiled-in defaults,
// an optional on-disk INI file, and flag overrides, in that order of
// increasing priority.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"
)

// DefaultConfigPath is where the on-disk client config is read from unless
// overridden by --config.
const DefaultConfigPath = "/usr/share/defaults/swupd/config"

// DefaultStateDir is the writable state root used when none is configured.
const DefaultStateDir = "/var/lib/swupd"

// Config is the single configuration record threaded through the core
// engine APIs: path_prefix, state_dir, content_url/version_url, format,
// and the retry/disk-space knobs named in spec.md §5's "Shared resources".
type Config struct {
	// PathPrefix is the installation root ("/" for the running system, a
	// chroot path for offline installs).
	PathPrefix string
	// StateDir is the writable state root holding manifests, staged
	// content, and tracking files.
	StateDir string
	// ContentURL is where manifests and fullfiles/packs are fetched from.
	ContentURL string
	// VersionURL is where the target version is probed from.
	VersionURL string
	// Format is the on-disk manifest format version to request.
	Format string
	// MaxRetries and RetryDelay parameterize the download pipeline's
	// backoff policy (spec.md §4.5).
	MaxRetries int
	RetryDelay int // seconds
	// SkipDiskspaceCheck disables the pre-install free-space check.
	SkipDiskspaceCheck bool
	// NoSigCheck disables MoM detached-signature verification.
	NoSigCheck bool
	// CertPath is the CA certificate used to verify the MoM signature.
	CertPath string
	// AllowMix enables preferring a local mix manifest over the network
	// copy for a given version (spec.md §4.1 "Mix mode").
	AllowMix bool
}

// defaults returns the compiled-in configuration before any file or flag
// overrides are applied.
func defaults() Config {
	return Config{
		PathPrefix: "/",
		StateDir:   DefaultStateDir,
		Format:     "staging",
		MaxRetries: 3,
		RetryDelay: 10,
		CertPath:   "/usr/share/clear/update-ca/Swupd_Root.pem",
	}
}

// Load builds a Config from compiled-in defaults overlaid with path's INI
// file, if it exists. A missing file is not an error: the defaults are
// used as-is, mirroring the teacher's readServerINI tolerance for an
// absent server.ini.
func Load(path string) (Config, error) {
	c := defaults()
	if path == "" {
		path = DefaultConfigPath
	}

	if !fileExists(path) {
		return c, nil
	}

	cfg, err := ini.InsensitiveLoad(path)
	if err != nil {
		return c, errors.Wrapf(err, "reading config %s", path)
	}

	section := cfg.Section("Server")
	if key, err := section.GetKey("path_prefix"); err == nil {
		c.PathPrefix = key.Value()
	}
	if key, err := section.GetKey("state_dir"); err == nil {
		c.StateDir = key.Value()
	}
	if key, err := section.GetKey("content_url"); err == nil {
		c.ContentURL = key.Value()
	}
	if key, err := section.GetKey("version_url"); err == nil {
		c.VersionURL = key.Value()
	}
	if key, err := section.GetKey("format"); err == nil {
		c.Format = key.Value()
	}
	if key, err := section.GetKey("cert_path"); err == nil {
		c.CertPath = key.Value()
	}
	if key, err := section.GetKey("max_retries"); err == nil {
		if v, err := key.Int(); err == nil {
			c.MaxRetries = v
		}
	}
	if key, err := section.GetKey("retry_delay"); err == nil {
		if v, err := key.Int(); err == nil {
			c.RetryDelay = v
		}
	}

	return c, nil
}

// StagedDir is state/staged, the content-addressed blob cache (spec.md §4.5).
func (c Config) StagedDir() string {
	return filepath.Join(c.StateDir, "staged")
}

// VersionDir is state/<version>, holding that version's manifests.
func (c Config) VersionDir(version uint32) string {
	return filepath.Join(c.StateDir, strconv.FormatUint(uint64(version), 10))
}

// BundlesDir is state/bundles, the tracking-file directory.
func (c Config) BundlesDir() string {
	return filepath.Join(c.StateDir, "bundles")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
