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
	"errors"
	"fmt"
)

type ftype int
type fmodifier int
type fstatus int
type frename bool

const (
	typeUnset ftype = iota
	typeFile
	typeDirectory
	typeLink
	typeManifest
)

var typeBytes = map[ftype]byte{
	typeUnset:     '.',
	typeFile:      'F',
	typeDirectory: 'D',
	typeLink:      'L',
	typeManifest:  'M',
}

const (
	modifierUnset fmodifier = iota
	modifierConfig
	modifierState
	modifierBoot
)

var modifierBytes = map[fmodifier]byte{
	modifierUnset:  '.',
	modifierConfig: 'C',
	modifierState:  's',
	modifierBoot:   'b',
}

const (
	statusUnset fstatus = iota
	statusDeleted
	statusGhosted
	// statusExperimental marks a MoM bundle-manifest descriptor whose
	// bundle is experimental (spec.md §3's is_experimental, introduced at
	// format 27): the manifest-body status byte this client reads
	// doubles as that bit since a bundle descriptor is never itself
	// deleted or ghosted in practice.
	statusExperimental
)

var statusBytes = map[fstatus]byte{
	statusUnset:        '.',
	statusDeleted:      'd',
	statusGhosted:      'g',
	statusExperimental: 'e',
}

const (
	renameUnset = false
	renameSet   = true
)

var renameBytes = map[frename]byte{
	renameUnset: '.',
	renameSet:   'r',
}

// File is one entry of a manifest: either a shipped filesystem object
// (regular file, directory or symlink) or, inside a Manifest-of-Manifests,
// the descriptor for one bundle manifest.
//
// File satisfies spec.md §3's "File record": Name is the absolute,
// lexically-normalized path rooted at "/" (or, inside a MoM, the bundle
// name); Hash is the zero hash exactly when Status is deleted.
type File struct {
	Name    string
	Hash    Hashval
	Version uint32

	Type     ftype
	Status   fstatus
	Modifier fmodifier
	Rename   frename

	// DoNotUpdate marks a record the installer must never stage or rename,
	// regardless of subscription state (spec.md §4.6).
	DoNotUpdate bool

	// Experimental mirrors the MoM entry's is_experimental flag (spec.md
	// §3, §9 open question): carried through so callers can warn without
	// refusing to subscribe.
	Experimental bool

	// Peer links this record to another record of the same Name (spec.md
	// §3's "peer pointer", redesigned per §9 as a plain pointer rather than
	// a doubly-linked list node). ConsolidateFiles does not set it and the
	// installer does not read it; it stays nil on records this package
	// builds.
	Peer *File

	// Staging is a slot for the local path of a downloaded blob. The
	// download pipeline does not set it (staged blobs are found by hash
	// under state/staged/), so it stays empty on records this package
	// builds.
	Staging string
}

// IsDir reports whether f describes a directory.
func (f *File) IsDir() bool { return f.Type == typeDirectory }

// IsLink reports whether f describes a symlink.
func (f *File) IsLink() bool { return f.Type == typeLink }

// IsManifest reports whether f is a MoM bundle-manifest descriptor.
func (f *File) IsManifest() bool { return f.Type == typeManifest }

// IsDeleted reports whether f is a tombstone record.
func (f *File) IsDeleted() bool { return f.Status == statusDeleted }

// IsGhosted reports whether f is a ghost (boot-file tombstone never
// actually removed from the live tree; spec.md §4.6 heuristics).
func (f *File) IsGhosted() bool { return f.Status == statusGhosted }

// IsConfig, IsState and IsBoot report the post-install-script-relevant
// modifier flags set by applyHeuristics (spec.md §4.6 step 1).
func (f *File) IsConfig() bool { return f.Modifier == modifierConfig }
func (f *File) IsState() bool  { return f.Modifier == modifierState }
func (f *File) IsBoot() bool   { return f.Modifier == modifierBoot }

// typeFromFlag return file type based on flag byte
func typeFromFlag(flag byte) (ftype, error) {
	switch flag {
	case 'F':
		return typeFile, nil
	case 'D':
		return typeDirectory, nil
	case 'L':
		return typeLink, nil
	case 'M':
		return typeManifest, nil
	case 'I', '.':
		// 'I' denotes an iterative (delta) manifest descriptor; the core
		// engine never fetches one directly, but tolerates the flag so a
		// MoM referencing one doesn't fail to parse (spec.md §6).
		return typeUnset, nil
	default:
		return typeUnset, fmt.Errorf("invalid file type flag: %v", flag)
	}
}

func (t ftype) String() string {
	switch t {
	case typeFile:
		return "F"
	case typeDirectory:
		return "D"
	case typeLink:
		return "L"
	case typeManifest:
		return "M"
	case typeUnset:
		return "."
	}
	return "?"
}

// statusFromFlag return status based on flag byte
func statusFromFlag(flag byte) (fstatus, error) {
	switch flag {
	case 'd':
		return statusDeleted, nil
	case 'g':
		return statusGhosted, nil
	case 'e':
		return statusExperimental, nil
	case '.':
		return statusUnset, nil
	default:
		return statusUnset, fmt.Errorf("invalid file status flag: %v", flag)
	}
}

// modifierFromFlag return modifier from flag byte
func modifierFromFlag(flag byte) (fmodifier, error) {
	switch flag {
	case 'C':
		return modifierConfig, nil
	case 's':
		return modifierState, nil
	case 'b':
		return modifierBoot, nil
	case '.':
		return modifierUnset, nil
	default:
		return modifierUnset, fmt.Errorf("invalid file modifier flag: %v", flag)
	}
}

// renameFromFlag set rename flag from flag byte
func renameFromFlag(flag byte) (frename, error) {
	switch flag {
	case 'r':
		return renameSet, nil
	case '.':
		return renameUnset, nil
	default:
		return renameUnset, fmt.Errorf("invalid file rename flag: %v", flag)
	}
}

// setFlags set flags from flag string
func (f *File) setFlags(flags string) error {
	if len(flags) != 4 {
		return fmt.Errorf("invalid number of flags: %v", flags)
	}

	var err error
	if f.Type, err = typeFromFlag(flags[0]); err != nil {
		return err
	}
	if f.Status, err = statusFromFlag(flags[1]); err != nil {
		return err
	}
	if f.Modifier, err = modifierFromFlag(flags[2]); err != nil {
		return err
	}
	if f.Rename, err = renameFromFlag(flags[3]); err != nil {
		return err
	}

	f.Experimental = f.Status == statusExperimental

	return nil
}

// GetFlagString returns the flags in a format suitable for the Manifest
func (f *File) GetFlagString() (string, error) {
	if f.Type == typeUnset &&
		f.Status == statusUnset &&
		f.Modifier == modifierUnset &&
		f.Rename == renameUnset {
		return "", errors.New("no flags are set on file")
	}

	flagBytes := []byte{
		typeBytes[f.Type],
		statusBytes[f.Status],
		modifierBytes[f.Modifier],
		renameBytes[f.Rename],
	}

	return string(flagBytes), nil
}

// sameFile reports whether f1 and f2 describe the same filesystem object:
// same path, content, and type/status/modifier flags.
func sameFile(f1, f2 *File) bool {
	return f1.Name == f2.Name &&
		f1.Hash == f2.Hash &&
		f1.Type == f2.Type &&
		f1.Status == f2.Status &&
		f1.Modifier == f2.Modifier
}

// typeChanged reports whether live, the type currently present at f's final
// path in the live tree, differs from the type f.Type requires, which the
// installer uses to decide whether the existing entry must be unlinked
// before staging (spec.md §4.6 pass 1 step 3).
func typeChanged(f *File, live ftype) bool {
	if live == typeUnset {
		return false
	}
	return live != f.Type
}
