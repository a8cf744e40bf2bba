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
	"sort"
	"strings"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/log"
)

// Subscription records that a bundle is part of the current working set,
// together with the version at which it was last seen to change.
type Subscription struct {
	Name    string
	Version uint32
}

// Subscriptions is the in-memory subscription set (spec.md §4.2). Order is
// not significant; lookups are by name.
type Subscriptions []*Subscription

// Contains reports whether name is already subscribed.
func (s Subscriptions) Contains(name string) bool {
	for _, sub := range s {
		if sub.Name == name {
			return true
		}
	}
	return false
}

// Add appends a new subscription. Callers must check Contains first; Add
// does not deduplicate.
func (s *Subscriptions) Add(name string, version uint32) {
	*s = append(*s, &Subscription{Name: name, Version: version})
}

// AddFlags is the bitset returned by AddSubscriptions, letting callers
// distinguish "nothing to do" from "invalid name" and "transport error"
// without string-matching.
type AddFlags uint8

const (
	// FlagNew is set when at least one new subscription was added.
	FlagNew AddFlags = 1 << iota
	// FlagBadName is set when at least one requested bundle is absent from the MoM.
	FlagBadName
	// FlagErr is set when at least one manifest fetch failed.
	FlagErr
)

// AddSubscriptions implements add_subscriptions (spec.md §4.2): resolves
// each name in requested against mom, recursively pulling in the
// includes tree, and appends a subscription for any bundle that is not
// already installed (or findAll is true) and not yet subscribed.
func AddSubscriptions(ctx context.Context, requested []string, subs *Subscriptions, store *Store, mom *MoM, cfg config.Config, findAll bool, depth int) AddFlags {
	var flags AddFlags

	for _, name := range requested {
		entry := mom.BundleEntry(name)
		if entry == nil {
			flags |= FlagBadName
			continue
		}

		alreadySubscribed := subs.Contains(name)
		if alreadySubscribed && depth > 0 {
			continue
		}

		if entry.Experimental && alreadySubscribed {
			log.Warning(log.Client, "bundle %q is experimental and already installed; continuing", name)
		}

		manifest, ok := mom.Submanifests[name]
		if !ok {
			m, err := store.LoadBundleManifest(ctx, mom, entry)
			if err != nil {
				log.Error(log.Manifest, "failed to load manifest for %q: %s", name, err)
				flags |= FlagErr
				continue
			}
			mom.Submanifests[name] = m
			manifest = m
		}

		var includes []string
		for _, inc := range manifest.Header.Includes {
			includes = append(includes, inc.Name)
		}
		flags |= AddSubscriptions(ctx, includes, subs, store, mom, cfg, findAll, depth+1)

		if (!IsInstalled(cfg, name) || findAll) && !subs.Contains(name) {
			subs.Add(name, entry.Version)
			flags |= FlagNew
		}
	}

	return flags
}

// IsInstalled reports whether name has a tracking file in cfg's tracking
// directory (spec.md §4.2's is_installed_bundle).
func IsInstalled(cfg config.Config, name string) bool {
	return exists(filepath.Join(cfg.BundlesDir(), name))
}

// ReadSubscriptions implements read_subscriptions: one Subscription per
// tracking file found in cfg's tracking directory. Version is left zero;
// callers that need it look it up via mom.BundleEntry once a MoM is loaded.
func ReadSubscriptions(cfg config.Config) (Subscriptions, error) {
	entries, err := os.ReadDir(cfg.BundlesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return Subscriptions{}, nil
		}
		return nil, newError(KindState, "", err, "reading tracking directory %s", cfg.BundlesDir())
	}

	var subs Subscriptions
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		subs.Add(e.Name(), 0)
	}
	return subs, nil
}

// TrackInstalled implements track_installed: creates the zero-byte tracking
// file declaring name as manually installed, bootstrapping the tracking
// directory from the in-image seed directory the first time it's empty.
func TrackInstalled(cfg config.Config, name string) error {
	if err := bootstrapTrackingDir(cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.BundlesDir(), 0755); err != nil {
		return newError(KindState, name, err, "creating tracking directory")
	}

	path := filepath.Join(cfg.BundlesDir(), name)
	f, err := os.Create(path)
	if err != nil {
		return newError(KindState, name, err, "creating tracking file %s", path)
	}
	return f.Close()
}

// imageTrackingDir is where the running system's in-image manually
// installed set lives, seeded at install time.
const imageTrackingDir = "usr/share/clear/bundles"

// bootstrapTrackingDir copies the in-image tracking directory into the
// state tracking directory the first time the latter is empty, discarding
// the ".MoM" marker the image copy carries (spec.md §4.2).
func bootstrapTrackingDir(cfg config.Config) error {
	stateDir := cfg.BundlesDir()
	entries, err := os.ReadDir(stateDir)
	if err == nil && len(entries) > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return newError(KindState, "", err, "reading tracking directory %s", stateDir)
	}

	seedDir := filepath.Join(cfg.PathPrefix, imageTrackingDir)
	seedEntries, err := os.ReadDir(seedDir)
	if err != nil {
		// No in-image seed to copy from; not an error, just nothing to bootstrap.
		return nil
	}

	if err = os.MkdirAll(stateDir, 0755); err != nil {
		return newError(KindState, "", err, "creating tracking directory %s", stateDir)
	}

	for _, e := range seedEntries {
		if e.IsDir() || e.Name() == ".MoM" {
			continue
		}
		dst := filepath.Join(stateDir, e.Name())
		f, err := os.Create(dst)
		if err != nil {
			return newError(KindState, e.Name(), err, "seeding tracking file %s", dst)
		}
		if err = f.Close(); err != nil {
			return newError(KindState, e.Name(), err, "seeding tracking file %s", dst)
		}
	}
	return nil
}

// RemoveTracked implements remove_tracked: deletes name's tracking file,
// tolerating any I/O error (spec.md §4.2) by logging rather than failing
// the caller's operation.
func RemoveTracked(cfg config.Config, name string) {
	path := filepath.Join(cfg.BundlesDir(), name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warning(log.Remove, "could not remove tracking file for %q: %s", name, err)
	}
}

// RequiredBy implements required_by (spec.md §4.2): a depth-first walk
// over mom.Submanifests, reporting every installed bundle whose includes
// list names target, directly or transitively.
func RequiredBy(target string, mom *MoM) []string {
	return requiredByDepth(target, mom, 1)
}

func requiredByDepth(target string, mom *MoM, depth int) []string {
	var names []string
	for name := range mom.Submanifests {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		sub := mom.Submanifests[name]
		for _, inc := range sub.Header.Includes {
			if inc.Name != target {
				continue
			}
			var prefix string
			if depth == 1 {
				prefix = "  * "
			} else {
				prefix = strings.Repeat(" ", 4*(depth-1)) + "|-- "
			}
			out = append(out, prefix+name)
			out = append(out, requiredByDepth(name, mom, depth+1)...)
			break
		}
	}
	return out
}
