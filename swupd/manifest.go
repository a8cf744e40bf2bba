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
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
)

const manifestFieldDelim = "\t"

// ManifestHeader contains the metadata block of a manifest: everything
// before the blank line that separates it from the file-record body.
type ManifestHeader struct {
	Format      uint
	Version     uint32
	Previous    uint32
	FileCount   uint32
	TimeStamp   time.Time
	ContentSize uint64

	// Includes is populated from "includes:" header lines, one stub
	// Manifest per included bundle name (Name filled in, nothing else).
	// The dependency engine resolves these into real Manifests.
	Includes []*Manifest
}

// Manifest represents a bundle's file list and metadata, or (for the
// Manifest-of-Manifests) the set of bundle descriptor records for a
// version (spec.md §3).
type Manifest struct {
	Name         string
	Header       ManifestHeader
	Files        []*File
	DeletedFiles []*File

	// FromMix is true when this manifest was loaded from a local mix
	// overlay rather than fetched from the network (spec.md §4.1 "Mix mode").
	FromMix bool
}

// MoM wraps the root manifest for a version, whose Files are bundle
// descriptor records (F.Name is the bundle name, F.Hash the bundle
// manifest's content hash, F.Version its last-change version,
// F.Experimental the MoM's is_experimental bit).
type MoM struct {
	Manifest

	// Submanifests holds bundle manifests already fetched and attached to
	// this MoM, keyed by bundle name. The dependency engine populates this
	// as it recurses through includes (spec.md §4.3).
	Submanifests map[string]*Manifest
}

// BundleEntry returns the MoM's descriptor record for name, or nil if name
// is not present in this version's MoM.
func (m *MoM) BundleEntry(name string) *File {
	for _, f := range m.Files {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// readManifestFileHeaderLine reads one header line ("key:\tvalue") of a
// manifest and records it on m.
func readManifestFileHeaderLine(fields []string, m *Manifest) error {
	var err error
	var parsed uint64

	switch fields[0] {
	case "MANIFEST":
		if parsed, err = strconv.ParseUint(fields[1], 10, 16); err != nil {
			return errors.Wrap(err, "invalid manifest")
		}
		m.Header.Format = uint(parsed)
	case "version:":
		if parsed, err = strconv.ParseUint(fields[1], 10, 32); err != nil {
			return errors.Wrap(err, "invalid manifest")
		}
		m.Header.Version = uint32(parsed)
	case "previous:":
		if parsed, err = strconv.ParseUint(fields[1], 10, 32); err != nil {
			return errors.Wrap(err, "invalid manifest")
		}
		m.Header.Previous = uint32(parsed)
	case "filecount:":
		if parsed, err = strconv.ParseUint(fields[1], 10, 32); err != nil {
			return errors.Wrap(err, "invalid manifest")
		}
		m.Header.FileCount = uint32(parsed)
	case "timestamp:":
		var timestamp int64
		if timestamp, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
			return errors.Wrap(err, "invalid manifest")
		}
		m.Header.TimeStamp = time.Unix(timestamp, 0)
	case "contentsize:":
		if parsed, err = strconv.ParseUint(fields[1], 10, 64); err != nil {
			return errors.Wrap(err, "invalid manifest")
		}
		m.Header.ContentSize = parsed
	case "includes:":
		m.Header.Includes = append(m.Header.Includes, &Manifest{Name: fields[1]})
	}

	return nil
}

// readManifestFileEntry reads one body line:
// "<fflags, 4 chars>", "<hash, 64 chars>", "<version>", "<filename>"
func readManifestFileEntry(fields []string, m *Manifest) error {
	if len(fields) != 4 {
		return errors.Errorf("invalid manifest entry, expected 4 fields, got %d", len(fields))
	}
	fflags := fields[0]
	fhash := fields[1]
	fver := fields[2]
	fname := fields[3]

	if len(fflags) != 4 {
		return errors.Errorf("invalid number of flags: %v", fflags)
	}
	if len(fhash) != HashLen {
		return errors.Errorf("invalid hash: %v", fhash)
	}

	parsed, err := strconv.ParseUint(fver, 10, 32)
	if err != nil {
		return errors.Wrap(err, "invalid version")
	}

	file := &File{Name: fname, Version: uint32(parsed)}
	file.Hash = internHash(fhash)

	if err = file.setFlags(fflags); err != nil {
		return errors.Wrap(err, "invalid flags")
	}

	m.Files = append(m.Files, file)
	if file.Status == statusDeleted {
		m.DeletedFiles = append(m.DeletedFiles, file)
	}

	return nil
}

// CheckHeaderIsValid verifies that all header fields in the manifest are
// sane enough to act on.
func (m *Manifest) CheckHeaderIsValid() error {
	if m.Header.Format == 0 {
		return errors.New("manifest format not set")
	}
	if m.Header.Version == 0 {
		return errors.New("manifest has version zero, version must be positive")
	}
	if m.Header.Version < m.Header.Previous {
		return errors.New("version is smaller than previous")
	}
	if m.Header.FileCount == 0 {
		return errors.New("manifest has a zero file count")
	}
	if m.Header.TimeStamp.IsZero() {
		return errors.New("manifest timestamp not set")
	}
	// Includes are not required.
	return nil
}

var requiredManifestHeaderEntries = []string{
	"MANIFEST",
	"version:",
	"previous:",
	"filecount:",
	"timestamp:",
	"contentsize:",
}

// ParseManifestFile creates a Manifest from the file at path, naming it
// from the "Manifest.<name>" suffix of the path.
func ParseManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	m.Name = getNameForManifestFile(path)
	if err = f.Close(); err != nil {
		return nil, err
	}
	return m, nil
}

func getNameForManifestFile(path string) string {
	prefix := "Manifest."
	idx := strings.LastIndex(path, prefix)
	if idx != -1 {
		return path[idx+len(prefix):]
	}
	return ""
}

// ParseManifest creates a Manifest from the textual wire format described
// in spec.md §6: a header block of "key:\tvalue" lines, a blank line, then
// one tab-separated file record per line.
func ParseManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	input := bufio.NewScanner(r)

	parsedEntries := make(map[string]uint)
	for input.Scan() {
		text := input.Text()
		if text == "" {
			break
		}

		fields := strings.Split(text, manifestFieldDelim)
		entry := fields[0]
		if entry != "includes:" && parsedEntries[entry] > 0 {
			return nil, errors.Errorf("invalid manifest, duplicate entry %q in header", entry)
		}
		parsedEntries[entry]++

		if err := readManifestFileHeaderLine(fields, m); err != nil {
			return nil, err
		}
	}

	for _, e := range requiredManifestHeaderEntries {
		if parsedEntries[e] == 0 {
			return nil, errors.Errorf("invalid manifest, missing entry %q in header", e)
		}
	}
	if err := m.CheckHeaderIsValid(); err != nil {
		return nil, err
	}

	for input.Scan() {
		text := input.Text()
		if text == "" {
			return nil, errors.New("invalid manifest, extra blank line")
		}

		fields := strings.Split(text, manifestFieldDelim)
		if err := readManifestFileEntry(fields, m); err != nil {
			return nil, err
		}
	}

	if len(m.Files) == 0 {
		return nil, errors.New("invalid manifest, does not have any file entries")
	}

	return m, nil
}

// ParseMoM parses r as a Manifest and wraps it as a MoM, ready for the
// dependency engine to attach submanifests to.
func ParseMoM(r io.Reader) (*MoM, error) {
	m, err := ParseManifest(r)
	if err != nil {
		return nil, err
	}
	return &MoM{Manifest: *m, Submanifests: make(map[string]*Manifest)}, nil
}

var manifestTemplate = template.Must(template.New("manifest").Parse(`
{{- with .Header -}}
MANIFEST	{{.Format}}
version:	{{.Version}}
previous:	{{.Previous}}
filecount:	{{.FileCount}}
timestamp:	{{(.TimeStamp.Unix)}}
contentsize:	{{.ContentSize -}}
{{range .Includes}}
includes:	{{.Name}}
{{- end}}
{{- end}}
{{ range .Files}}
{{.GetFlagString}}	{{.Hash}}	{{.Version}}	{{.Name}}
{{- end}}
`))

// WriteManifest writes m in the textual wire format to w.
func (m *Manifest) WriteManifest(w io.Writer) error {
	if err := m.CheckHeaderIsValid(); err != nil {
		return err
	}
	if err := manifestTemplate.Execute(w, m); err != nil {
		return errors.Wrapf(err, "couldn't write Manifest.%s", m.Name)
	}
	return nil
}

// WriteManifestFile writes manifest m to a new file at path.
func (m *Manifest) WriteManifestFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err = m.WriteManifest(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// sortFilesName sorts Files and DeletedFiles by name, the ordering the
// consolidator and installer operate on (spec.md §4.4).
func (m *Manifest) sortFilesName() {
	sort.Slice(m.Files, func(i, j int) bool {
		return m.Files[i].Name < m.Files[j].Name
	})
	sort.Slice(m.DeletedFiles, func(i, j int) bool {
		return m.DeletedFiles[i].Name < m.DeletedFiles[j].Name
	})
}
