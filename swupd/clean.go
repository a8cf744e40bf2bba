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
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/log"
)

// hashLen is the length, in hex characters, of a content hash, and so the
// name length of a fullfile blob under state/staged/.
const hashLen = 64

// hashedManifestPattern matches a cached per-bundle manifest copy named
// "Manifest.<bundle>.<hex>" -- exactly one dot after "Manifest." once the
// bundle name itself is stripped -- as opposed to the plain "Manifest.MoM"
// or "Manifest.<bundle>" the engine reads directly.
var hashedManifestPattern = regexp.MustCompile(`^Manifest\.[^.]+\.[0-9a-fA-F]+$`)

// CleanResult reports what Clean removed (or, under dryRun, would remove).
type CleanResult struct {
	FilesRemoved int
}

// Clean implements the state garbage collector (spec.md §4.8). In default
// mode, a version directory still referenced by currentVersion's MoM text
// keeps its plain manifests and loses only the hashed cache copies;
// everything else about state/<version>/ is removed outright. all drops
// that distinction and removes every manifest in every version directory,
// preserving nothing but state_dir/bundles/. Under dryRun nothing is
// actually removed; FilesRemoved still reports what would have been.
func Clean(cfg config.Config, currentVersion uint32, all, dryRun bool) (*CleanResult, error) {
	result := &CleanResult{}

	n, err := cleanStagedDir(cfg, dryRun)
	if err != nil {
		return nil, err
	}
	result.FilesRemoved += n

	n, err = cleanStateRoot(cfg, dryRun)
	if err != nil {
		return nil, err
	}
	result.FilesRemoved += n

	n, err = cleanVersionDirs(cfg, currentVersion, all, dryRun)
	if err != nil {
		return nil, err
	}
	result.FilesRemoved += n

	return result, nil
}

// isStagedBlobEntry reports whether name is a fullfile blob or its
// symlink-target sidecar ("<hash>.target"), the two staged-content shapes
// download.go/install.go write under state/staged/.
func isStagedBlobEntry(name string) bool {
	return len(strings.TrimSuffix(name, ".target")) == hashLen
}

// removeEntry deletes path unless dryRun, logging rather than failing the
// whole walk on an individual removal error.
func removeEntry(path string, dryRun bool) bool {
	if dryRun {
		return true
	}
	if err := os.RemoveAll(path); err != nil {
		log.Warning(log.Clean, "could not remove %s: %s", path, err)
		return false
	}
	return true
}

func cleanStagedDir(cfg config.Config, dryRun bool) (int, error) {
	entries, err := os.ReadDir(cfg.StagedDir())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, newError(KindState, "", err, "reading staged directory")
	}

	removed := 0
	for _, e := range entries {
		if !isStagedBlobEntry(e.Name()) {
			continue
		}
		if removeEntry(filepath.Join(cfg.StagedDir(), e.Name()), dryRun) {
			removed++
		}
	}
	return removed, nil
}

func isPackIndicator(name string) bool {
	return strings.HasPrefix(name, "pack-") && strings.HasSuffix(name, ".tar")
}

// cleanStateRoot removes pack indicator files and delta-manifest files
// living directly under state_dir, never touching state_dir/bundles/
// (that directory's name never matches either pattern).
func cleanStateRoot(cfg config.Config, dryRun bool) (int, error) {
	entries, err := os.ReadDir(cfg.StateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, newError(KindState, "", err, "reading state directory %s", cfg.StateDir)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !isPackIndicator(name) && !strings.HasPrefix(name, "Manifest-") {
			continue
		}
		if removeEntry(filepath.Join(cfg.StateDir, name), dryRun) {
			removed++
		}
	}
	return removed, nil
}

func cleanVersionDirs(cfg config.Config, currentVersion uint32, all, dryRun bool) (int, error) {
	entries, err := os.ReadDir(cfg.StateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, newError(KindState, "", err, "reading state directory %s", cfg.StateDir)
	}

	var momText string
	if !all {
		data, readErr := os.ReadFile(filepath.Join(cfg.VersionDir(currentVersion), "Manifest.MoM"))
		if readErr == nil {
			momText = string(data)
		}
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.ParseUint(e.Name(), 10, 32); err != nil {
			continue
		}

		dir := filepath.Join(cfg.StateDir, e.Name())
		selective := !all && strings.Contains(momText, e.Name())

		n, err := cleanOneVersionDir(dir, selective, dryRun)
		if err != nil {
			return removed, err
		}
		removed += n

		if !dryRun {
			_ = os.Remove(dir)
		}
	}
	return removed, nil
}

// cleanOneVersionDir removes manifests from dir. When selective, only
// hashed cache copies go; the plain Manifest.MoM/Manifest.<bundle> files
// a later load_mom/load_bundle_manifest call might still reuse survive.
func cleanOneVersionDir(dir string, selective, dryRun bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, newError(KindState, "", err, "reading %s", dir)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "Manifest.") {
			continue
		}
		if selective && !hashedManifestPattern.MatchString(name) {
			continue
		}
		if removeEntry(filepath.Join(dir, name), dryRun) {
			removed++
		}
	}
	return removed, nil
}
