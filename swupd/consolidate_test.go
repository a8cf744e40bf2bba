package swupd

import "testing"

func ref(bundle, name string, version uint32, deleted bool) FileRef {
	f := &File{Name: name, Version: version}
	if deleted {
		f.Status = statusDeleted
	}
	return FileRef{File: f, Bundle: bundle}
}

func TestFilesFromBundles(t *testing.T) {
	manifests := []*Manifest{
		{Name: "os-core", Files: []*File{{Name: "/usr/bin/true"}}},
		{Name: "editors", Files: []*File{{Name: "/usr/bin/vim"}}},
	}
	refs := FilesFromBundles(manifests)
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].Bundle != "os-core" || refs[1].Bundle != "editors" {
		t.Errorf("unexpected bundle attribution: %+v", refs)
	}
}

func TestConsolidateFilesPrefersNewestNonDeleted(t *testing.T) {
	refs := []FileRef{
		ref("editors", "/a", 5, false),
		ref("os-core", "/a", 10, true),
		ref("ide", "/a", 8, false),
	}
	out := ConsolidateFiles(refs)
	if len(out) != 1 {
		t.Fatalf("expected 1 consolidated record, got %d", len(out))
	}
	if out[0].Version != 8 || out[0].Bundle != "ide" {
		t.Errorf("expected newest non-deleted record (version 8, ide), got %+v", out[0])
	}
}

func TestConsolidateFilesAllDeletedKeepsNewestDeletion(t *testing.T) {
	refs := []FileRef{
		ref("editors", "/a", 5, true),
		ref("os-core", "/a", 10, true),
	}
	out := ConsolidateFiles(refs)
	if len(out) != 1 || out[0].Version != 10 {
		t.Fatalf("expected newest deletion (version 10), got %+v", out)
	}
}

func TestConsolidateFilesTieBreaksOnBundleName(t *testing.T) {
	refs := []FileRef{
		ref("zeta", "/a", 5, false),
		ref("alpha", "/a", 5, false),
	}
	out := ConsolidateFiles(refs)
	if len(out) != 1 || out[0].Bundle != "alpha" {
		t.Fatalf("expected lexicographically first bundle to win, got %+v", out)
	}
}

func TestFilterOutDeletedFiles(t *testing.T) {
	refs := []FileRef{
		ref("os-core", "/a", 1, false),
		ref("os-core", "/b", 1, true),
	}
	out := FilterOutDeletedFiles(refs)
	if len(out) != 1 || out[0].Name != "/a" {
		t.Fatalf("expected only /a to survive, got %+v", out)
	}
}

func TestFilterOutExistingFiles(t *testing.T) {
	a := []FileRef{
		{File: &File{Name: "/a", Hash: InternHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")}},
		{File: &File{Name: "/b", Hash: InternHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")}},
	}
	b := []FileRef{
		{File: &File{Name: "/a", Hash: InternHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")}},
	}
	out := FilterOutExistingFiles(a, b)
	if len(out) != 1 || out[0].Name != "/b" {
		t.Fatalf("expected only /b to remain, got %+v", out)
	}
}
