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
	"os"
	"path/filepath"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/log"
)

// coreBundle is the one bundle Remove always refuses to touch.
const coreBundle = "os-core"

// RemoveResult reports what Remove did, for the CLI to print.
type RemoveResult struct {
	FilesRemoved int
}

// Remove implements the remover (spec.md §4.7): unsubscribes target,
// refusing if it is os-core, not installed, not present in the current
// MoM, or still required by another installed bundle. Survivors keep
// every file target does not uniquely own; the rest is unlinked
// best-effort from the live tree and target's tracking file is dropped.
func Remove(ctx context.Context, cfg config.Config, store *Store, mom *MoM, target string) (*RemoveResult, error) {
	if target == coreBundle {
		return nil, newError(KindPolicy, target, nil, "%s cannot be removed", coreBundle)
	}

	if !IsInstalled(cfg, target) {
		return nil, &NotTrackedError{Name: target}
	}

	if mom.BundleEntry(target) == nil {
		return nil, &InvalidBundleError{Name: target}
	}

	subs, err := ReadSubscriptions(cfg)
	if err != nil {
		return nil, err
	}
	survivors := unloadTrackedBundle(subs, target)

	if _, err := RecurseManifest(ctx, store, mom, survivors, "", false); err != nil {
		return nil, err
	}

	if dependants := RequiredBy(target, mom); len(dependants) > 0 {
		return nil, newError(KindPolicy, target,
			&RequiredByError{Name: target, Tree: dependants}, "cannot remove %q", target)
	}

	targetManifest, ok := mom.Submanifests[target]
	if !ok {
		targetEntry := mom.BundleEntry(target)
		m, err := store.LoadBundleManifest(ctx, mom, targetEntry)
		if err != nil {
			return nil, err
		}
		mom.Submanifests[target] = m
		targetManifest = m
	}

	survivorManifests := make([]*Manifest, 0, len(survivors))
	for _, s := range survivors {
		if m, ok := mom.Submanifests[s.Name]; ok {
			survivorManifests = append(survivorManifests, m)
		}
	}

	survivorFiles := ConsolidateFiles(FilesFromBundles(survivorManifests))
	targetFiles := ConsolidateFiles(FilesFromBundles([]*Manifest{targetManifest}))
	uniquelyOwned := filterOutByName(targetFiles, survivorFiles)

	removed, attempted := unlinkFiles(cfg, uniquelyOwned)
	if attempted > 0 && removed == 0 {
		return nil, &RemovalFailedError{Name: target, Attempted: attempted}
	}

	RemoveTracked(cfg, target)

	return &RemoveResult{FilesRemoved: removed}, nil
}

// unloadTrackedBundle returns subs with target removed, implementing
// unload_tracked_bundle (spec.md §4.7).
func unloadTrackedBundle(subs Subscriptions, target string) Subscriptions {
	out := make(Subscriptions, 0, len(subs))
	for _, s := range subs {
		if s.Name != target {
			out = append(out, s)
		}
	}
	return out
}

// filterOutByName keeps entries of a whose filename does not appear in b,
// the by-name counterpart of FilterOutExistingFiles used here because a
// survivor may claim the same path at a different hash (spec.md §4.7
// "deduplicate the target's file list against the survivors... by
// filename").
func filterOutByName(a, b []FileRef) []FileRef {
	present := make(map[string]bool, len(b))
	for _, r := range b {
		present[r.Name] = true
	}
	out := make([]FileRef, 0, len(a))
	for _, r := range a {
		if !present[r.Name] {
			out = append(out, r)
		}
	}
	return out
}

// unlinkFiles removes every non-deleted, non-directory record of refs
// from the live tree under cfg.PathPrefix, best-effort: a missing path
// counts as success, other failures are logged and the remainder is
// still attempted (spec.md §4.7). It reports how many it actually
// removed against how many it tried, so a caller can tell "nothing to
// do" apart from "tried and failed".
func unlinkFiles(cfg config.Config, refs []FileRef) (removed, attempted int) {
	for _, r := range refs {
		if r.IsDeleted() || r.IsDir() {
			continue
		}
		attempted++
		path := filepath.Join(cfg.PathPrefix, r.Name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warning(log.Remove, "could not remove %s: %s", r.Name, err)
			continue
		}
		removed++
	}
	return removed, attempted
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
