package swupd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/clearlinux/swupd-client/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{PathPrefix: dir, StateDir: filepath.Join(dir, "state")}
}

func makeMoM(bundles map[string][]string) *MoM {
	mom := &MoM{Submanifests: map[string]*Manifest{}}
	for name, includes := range bundles {
		entry := &File{Name: name, Version: 10, Hash: InternHash(AllZeroHash)}
		mom.Files = append(mom.Files, entry)

		var incManifests []*Manifest
		for _, inc := range includes {
			incManifests = append(incManifests, &Manifest{Name: inc})
		}
		mom.Submanifests[name] = &Manifest{
			Name:   name,
			Header: ManifestHeader{Includes: incManifests},
		}
	}
	return mom
}

func TestAddSubscriptionsBadName(t *testing.T) {
	cfg := testConfig(t)
	mom := makeMoM(map[string][]string{"os-core": nil})
	subs := Subscriptions{}

	flags := AddSubscriptions(context.Background(), []string{"nonexistent"}, &subs, nil, mom, cfg, false, 0)
	if flags&FlagBadName == 0 {
		t.Error("expected FlagBadName")
	}
	if len(subs) != 0 {
		t.Errorf("expected no subscriptions, got %v", subs)
	}
}

func TestAddSubscriptionsNewAndIncludes(t *testing.T) {
	cfg := testConfig(t)
	mom := makeMoM(map[string][]string{
		"editors": {"os-core"},
		"os-core": nil,
	})
	subs := Subscriptions{}

	flags := AddSubscriptions(context.Background(), []string{"editors"}, &subs, nil, mom, cfg, false, 0)
	if flags&FlagNew == 0 {
		t.Error("expected FlagNew")
	}
	if !subs.Contains("editors") || !subs.Contains("os-core") {
		t.Errorf("expected editors and os-core subscribed, got %v", subs)
	}
}

func TestAddSubscriptionsAlreadyInstalledSkipsUnlessFindAll(t *testing.T) {
	cfg := testConfig(t)
	mom := makeMoM(map[string][]string{"os-core": nil})
	if err := TrackInstalled(cfg, "os-core"); err != nil {
		t.Fatal(err)
	}

	subs := Subscriptions{}
	flags := AddSubscriptions(context.Background(), []string{"os-core"}, &subs, nil, mom, cfg, false, 0)
	if flags&FlagNew != 0 {
		t.Error("did not expect FlagNew for an already-installed bundle")
	}
	if subs.Contains("os-core") {
		t.Error("did not expect os-core to be (re)subscribed")
	}

	subs = Subscriptions{}
	flags = AddSubscriptions(context.Background(), []string{"os-core"}, &subs, nil, mom, cfg, true, 0)
	if flags&FlagNew == 0 {
		t.Error("expected FlagNew when findAll is true")
	}
}

func TestTrackInstalledAndIsInstalled(t *testing.T) {
	cfg := testConfig(t)
	if IsInstalled(cfg, "editors") {
		t.Fatal("expected editors to not be installed yet")
	}
	if err := TrackInstalled(cfg, "editors"); err != nil {
		t.Fatal(err)
	}
	if !IsInstalled(cfg, "editors") {
		t.Error("expected editors to be installed after TrackInstalled")
	}

	RemoveTracked(cfg, "editors")
	if IsInstalled(cfg, "editors") {
		t.Error("expected editors to not be installed after RemoveTracked")
	}
}

func TestBootstrapTrackingDirCopiesSeedAndDropsMoM(t *testing.T) {
	cfg := testConfig(t)
	seedDir := filepath.Join(cfg.PathPrefix, imageTrackingDir)
	if err := os.MkdirAll(seedDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"os-core", ".MoM"} {
		if err := os.WriteFile(filepath.Join(seedDir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := TrackInstalled(cfg, "editors"); err != nil {
		t.Fatal(err)
	}

	if !IsInstalled(cfg, "os-core") {
		t.Error("expected os-core seeded from the image tracking dir")
	}
	if IsInstalled(cfg, ".MoM") {
		t.Error("expected .MoM marker to be dropped, not copied")
	}
	if !IsInstalled(cfg, "editors") {
		t.Error("expected editors to still be tracked")
	}
}

func TestReadSubscriptions(t *testing.T) {
	cfg := testConfig(t)
	if err := TrackInstalled(cfg, "os-core"); err != nil {
		t.Fatal(err)
	}
	if err := TrackInstalled(cfg, "editors"); err != nil {
		t.Fatal(err)
	}

	subs, err := ReadSubscriptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !subs.Contains("os-core") || !subs.Contains("editors") {
		t.Errorf("expected both bundles tracked, got %v", subs)
	}
}

func TestRequiredBy(t *testing.T) {
	mom := makeMoM(map[string][]string{
		"editors": {"os-core"},
		"ide":     {"editors"},
		"os-core": nil,
	})

	got := RequiredBy("os-core", mom)
	want := []string{"  * editors", "    |-- ide"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
