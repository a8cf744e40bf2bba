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

import "sort"

// FileRef points at a file record together with the name of the bundle
// manifest that owns it, so consolidation can break filename ties by
// bundle name (spec.md §9's resolved duplicate-name tie-breaker).
type FileRef struct {
	*File
	Bundle string
}

// FilesFromBundles implements files_from_bundles (spec.md §4.4):
// concatenates every manifest's file list into one slice of refs, each
// still pointing at its owning bundle.
func FilesFromBundles(manifests []*Manifest) []FileRef {
	var refs []FileRef
	for _, m := range manifests {
		for _, f := range m.Files {
			refs = append(refs, FileRef{File: f, Bundle: m.Name})
		}
	}
	return refs
}

// ConsolidateFiles implements consolidate_files (spec.md §4.4): sorts by
// (filename, is_deleted asc, last_change desc, bundle asc) and keeps the
// first record per filename, i.e. the newest non-deleted record if any,
// else the newest deletion. The bundle-name tie-breaker makes the result
// deterministic when two bundles disagree about a path at the same
// version (spec.md §9 Open Question, resolved lexicographically).
func ConsolidateFiles(refs []FileRef) []FileRef {
	sorted := make([]FileRef, len(refs))
	copy(sorted, refs)

	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.IsDeleted() != b.IsDeleted() {
			return !a.IsDeleted()
		}
		if a.Version != b.Version {
			return a.Version > b.Version
		}
		return a.Bundle < b.Bundle
	})

	out := make([]FileRef, 0, len(sorted))
	for i, r := range sorted {
		if i > 0 && sorted[i-1].Name == r.Name {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterOutDeletedFiles removes tombstone records, leaving only files that
// should exist in the live tree.
func FilterOutDeletedFiles(refs []FileRef) []FileRef {
	out := make([]FileRef, 0, len(refs))
	for _, r := range refs {
		if !r.IsDeleted() {
			out = append(out, r)
		}
	}
	return out
}

// FilterOutExistingFiles implements filter_out_existing_files: keeps
// entries of a whose (filename, hash) pair does not appear in b. Used to
// reduce a to-be-installed file set down to the work actually needed on
// top of what's already installed.
func FilterOutExistingFiles(a, b []FileRef) []FileRef {
	existing := make(map[string]bool, len(b))
	for _, r := range b {
		existing[refKey(r)] = true
	}

	out := make([]FileRef, 0, len(a))
	for _, r := range a {
		if !existing[refKey(r)] {
			out = append(out, r)
		}
	}
	return out
}

func refKey(r FileRef) string {
	return r.Name + "\x00" + r.Hash.String()
}
