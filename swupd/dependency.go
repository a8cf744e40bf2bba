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

import "context"

// RecurseManifest implements recurse_manifest (spec.md §4.3): loads every
// manifest named by subs from store, attaching each to mom.Submanifests,
// and returns the resulting list. When filterName is non-empty, the
// returned list is pruned to the include-closure of that one bundle
// (show_included_bundles' use case). With serverMode set, a subscription
// the MoM does not list is skipped; without it, that name is reported as
// an *InvalidBundleError. Neither mode checks whether a bundle is
// installed locally.
func RecurseManifest(ctx context.Context, store *Store, mom *MoM, subs Subscriptions, filterName string, serverMode bool) ([]*Manifest, error) {
	for _, sub := range subs {
		if _, ok := mom.Submanifests[sub.Name]; ok {
			continue
		}
		entry := mom.BundleEntry(sub.Name)
		if entry == nil {
			if serverMode {
				continue
			}
			return nil, &InvalidBundleError{Name: sub.Name}
		}
		m, err := store.LoadBundleManifest(ctx, mom, entry)
		if err != nil {
			return nil, err
		}
		mom.Submanifests[sub.Name] = m
	}

	if filterName == "" {
		return allSubmanifests(mom), nil
	}
	return includeClosure(ctx, store, mom, filterName)
}

// allSubmanifests returns every manifest attached to mom, in no particular order.
func allSubmanifests(mom *MoM) []*Manifest {
	out := make([]*Manifest, 0, len(mom.Submanifests))
	for _, m := range mom.Submanifests {
		out = append(out, m)
	}
	return out
}

// includeClosure returns name's manifest plus every manifest transitively
// named by its includes list, fetching and attaching any not already on
// mom (used when filterName targets a bundle recurse_manifest's first pass
// didn't need, e.g. show_included_bundles on an uninstalled bundle).
func includeClosure(ctx context.Context, store *Store, mom *MoM, name string) ([]*Manifest, error) {
	visited := map[string]bool{}
	var out []*Manifest

	var visit func(string) error
	visit = func(bundle string) error {
		if visited[bundle] {
			return nil
		}
		visited[bundle] = true

		m, ok := mom.Submanifests[bundle]
		if !ok {
			entry := mom.BundleEntry(bundle)
			if entry == nil {
				return &InvalidBundleError{Name: bundle}
			}
			loaded, err := store.LoadBundleManifest(ctx, mom, entry)
			if err != nil {
				return err
			}
			mom.Submanifests[bundle] = loaded
			m = loaded
		}
		out = append(out, m)

		for _, inc := range m.Header.Includes {
			if err := visit(inc.Name); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(name); err != nil {
		return nil, err
	}
	return out, nil
}
