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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/internal/transport"
)

// Store fetches and caches manifests for a set of versions, the client
// side half of the split the teacher's ad hoc internal/client.State used
// to do as one grab-bag struct (spec.md §9's "layered store/transport"
// redesign note). One Store is built per command invocation and reused
// across every load_mom/load_bundle_manifest call it makes.
type Store struct {
	cfg        config.Config
	transport  *transport.Transport
	mix        *config.MixManifest
	noSigCheck bool
}

// NewStore builds a Store rooted at cfg.StateDir, fetching over t. mix may
// be nil, meaning no bundle has a local overlay.
func NewStore(cfg config.Config, t *transport.Transport, mix *config.MixManifest) *Store {
	return &Store{cfg: cfg, transport: t, mix: mix, noSigCheck: cfg.NoSigCheck}
}

func (s *Store) versionDir(version uint32) string {
	return s.cfg.VersionDir(version)
}

// LoadMoM implements load_mom (spec.md §4.1): locate Manifest.MoM under
// state/<version>/, fetching and signature-checking it if not already
// cached, then parse it.
func (s *Store) LoadMoM(ctx context.Context, version uint32, allowMix bool, hint string) (*MoM, error) {
	dir := s.versionDir(version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, newError(KindState, "", err, "creating state dir %s", dir)
	}

	momPath := filepath.Join(dir, "Manifest.MoM")

	if allowMix && s.mix != nil {
		if overlay, preferred := s.mix.Overlay("MoM"); preferred {
			return s.parseMoMFile(overlay.ManifestPath, true)
		}
	}

	if !exists(momPath) {
		if err := s.fetchManifest(ctx, version, "MoM", momPath, hint); err != nil {
			return nil, err
		}
		if !s.noSigCheck {
			if err := s.verifyMoMSignature(ctx, version, momPath); err != nil {
				_ = os.Remove(momPath)
				return nil, err
			}
		}
	}

	return s.parseMoMFile(momPath, false)
}

func (s *Store) parseMoMFile(path string, fromMix bool) (*MoM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindState, "", err, "opening %s", path)
	}
	defer func() {
		_ = f.Close()
	}()

	mom, err := ParseMoM(f)
	if err != nil {
		return nil, newError(KindIntegrity, "", err, "parsing MoM %s", path)
	}
	mom.Name = "MoM"
	mom.FromMix = fromMix
	return mom, nil
}

func (s *Store) verifyMoMSignature(ctx context.Context, version uint32, momPath string) error {
	sigPath := momPath + ".sig"
	if !exists(sigPath) {
		url := fmt.Sprintf("%s/%d/Manifest.MoM.sig", s.cfg.ContentURL, version)
		if err := s.transport.Download(ctx, url, sigPath, false); err != nil {
			return classifyFetchErr(err, url)
		}
	}
	if err := VerifySignature(momPath, sigPath, s.cfg.CertPath); err != nil {
		return newError(KindIntegrity, "", err, "MoM signature verification failed for version %d", version)
	}
	return nil
}

// LoadBundleManifest implements load_bundle_manifest (spec.md §4.1): given
// a MoM entry naming a bundle, fetch Manifest.<bundle> into the entry
// version's state dir if absent, verify its content hash matches the MoM's
// record, and parse it. The cached copy is named Manifest.<bundle>; no
// Manifest.<bundle>.<hash> file is fetched or written.
func (s *Store) LoadBundleManifest(ctx context.Context, mom *MoM, entry *File) (*Manifest, error) {
	if entry == nil {
		return nil, newError(KindFatal, "", nil, "nil MoM entry")
	}

	if s.cfg.AllowMix && s.mix != nil {
		if overlay, preferred := s.mix.Overlay(entry.Name); preferred {
			m, err := ParseManifestFile(overlay.ManifestPath)
			if err != nil {
				return nil, newError(KindIntegrity, entry.Name, err, "parsing mix overlay manifest")
			}
			m.FromMix = true
			m.applyHeuristics()
			return m, nil
		}
	}

	dir := s.versionDir(entry.Version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, newError(KindState, entry.Name, err, "creating state dir %s", dir)
	}

	hashStr := entry.Hash.String()
	name := "Manifest." + entry.Name
	path := filepath.Join(dir, name)

	if !exists(path) {
		if err := s.fetchManifest(ctx, entry.Version, entry.Name, path, ""); err != nil {
			return nil, err
		}
	}

	actual, err := GetHashForFile(path)
	if err != nil {
		return nil, newError(KindIntegrity, entry.Name, err, "hashing %s", path)
	}
	if actual != hashStr {
		_ = os.Remove(path)
		return nil, newError(KindIntegrity, entry.Name, nil,
			"hash mismatch for %s: MoM says %s, fetched content hashes to %s", name, hashStr, actual)
	}

	m, err := ParseManifestFile(path)
	if err != nil {
		return nil, newError(KindIntegrity, entry.Name, err, "parsing %s", path)
	}
	m.applyHeuristics()
	return m, nil
}

// fetchManifest downloads Manifest.<name> for version into dest. hint, when
// non-empty, is a content URL to try before s.cfg.ContentURL (used when a
// caller already knows a mirror that has the file).
func (s *Store) fetchManifest(ctx context.Context, version uint32, name, dest, hint string) error {
	fname := "Manifest." + name
	if name == "MoM" {
		fname = "Manifest.MoM"
	}

	urls := []string{}
	if hint != "" {
		urls = append(urls, hint+"/"+strconv.FormatUint(uint64(version), 10)+"/"+fname)
	}
	urls = append(urls, s.cfg.ContentURL+"/"+strconv.FormatUint(uint64(version), 10)+"/"+fname)

	var lastErr error
	for _, url := range urls {
		if err := s.transport.Download(ctx, url, dest, false); err != nil {
			lastErr = classifyFetchErr(err, url)
			continue
		}
		return nil
	}
	return lastErr
}

func classifyFetchErr(err error, url string) error {
	if statusErr, ok := err.(*transport.StatusError); ok && statusErr.StatusCode == 404 {
		return newError(KindTransport, "", &NotFoundError{URL: url}, "fetching %s", url)
	}
	return newError(KindTransport, "", err, "fetching %s", url)
}
