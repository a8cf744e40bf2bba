package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nonexistent.ini"))
	if err != nil {
		t.Fatal(err)
	}
	if c.StateDir != DefaultStateDir {
		t.Errorf("StateDir = %q, want %q", c.StateDir, DefaultStateDir)
	}
	if c.PathPrefix != "/" {
		t.Errorf("PathPrefix = %q, want \"/\"", c.PathPrefix)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	contents := "[Server]\n" +
		"state_dir = /custom/state\n" +
		"content_url = https://example.test/update\n" +
		"max_retries = 7\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.StateDir != "/custom/state" {
		t.Errorf("StateDir = %q, want /custom/state", c.StateDir)
	}
	if c.ContentURL != "https://example.test/update" {
		t.Errorf("ContentURL = %q", c.ContentURL)
	}
	if c.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", c.MaxRetries)
	}
	// Unset fields keep their compiled-in default.
	if c.RetryDelay != defaults().RetryDelay {
		t.Errorf("RetryDelay = %d, want default %d", c.RetryDelay, defaults().RetryDelay)
	}
}

func TestConfigDirHelpers(t *testing.T) {
	c := Config{StateDir: "/var/lib/swupd"}
	if got, want := c.StagedDir(), "/var/lib/swupd/staged"; got != want {
		t.Errorf("StagedDir() = %q, want %q", got, want)
	}
	if got, want := c.VersionDir(10), "/var/lib/swupd/10"; got != want {
		t.Errorf("VersionDir(10) = %q, want %q", got, want)
	}
	if got, want := c.BundlesDir(), "/var/lib/swupd/bundles"; got != want {
		t.Errorf("BundlesDir() = %q, want %q", got, want)
	}
}

func TestLoadMixManifestMissing(t *testing.T) {
	mm, err := LoadMixManifest(filepath.Join(t.TempDir(), "mix.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(mm.Bundles) != 0 {
		t.Errorf("expected no overlays, got %d", len(mm.Bundles))
	}
}

func TestLoadMixManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mix.toml")
	contents := `
[bundles.editors]
source = "local"
manifest_path = "/var/lib/mix/Manifest.editors"
[bundles.editors.flags]
preferred = true

[bundles.os-core]
source = "upstream"
manifest_path = "/var/lib/mix/Manifest.os-core"
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	mm, err := LoadMixManifest(path)
	if err != nil {
		t.Fatal(err)
	}

	overlay, preferred := mm.Overlay("editors")
	if !preferred {
		t.Error("expected editors overlay to be preferred")
	}
	if overlay.ManifestPath != "/var/lib/mix/Manifest.editors" {
		t.Errorf("ManifestPath = %q", overlay.ManifestPath)
	}

	if _, preferred := mm.Overlay("os-core"); preferred {
		t.Error("expected os-core overlay to not be preferred")
	}

	if _, ok := mm.Overlay("nonexistent"); ok {
		t.Error("expected no overlay for nonexistent bundle")
	}
}
