package swupd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/internal/transport"
)

func writeOsRelease(t *testing.T, prefix, content string) {
	t.Helper()
	dir := filepath.Join(prefix, "usr/lib")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "os-release"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCurrentVersionParsesQuotedValue(t *testing.T) {
	prefix := t.TempDir()
	writeOsRelease(t, prefix, "NAME=\"Clear Linux OS\"\nVERSION_ID=\"29820\"\n")

	v, err := CurrentVersion(prefix)
	if err != nil {
		t.Fatal(err)
	}
	if v != 29820 {
		t.Errorf("CurrentVersion() = %d, want 29820", v)
	}
}

func TestCurrentVersionParsesUnquotedValue(t *testing.T) {
	prefix := t.TempDir()
	writeOsRelease(t, prefix, "VERSION_ID=42\n")

	v, err := CurrentVersion(prefix)
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Errorf("CurrentVersion() = %d, want 42", v)
	}
}

func TestCurrentVersionMissingFileErrors(t *testing.T) {
	if _, err := CurrentVersion(t.TempDir()); err == nil {
		t.Fatal("expected error for missing os-release")
	}
}

func TestCurrentVersionMissingKeyErrors(t *testing.T) {
	prefix := t.TempDir()
	writeOsRelease(t, prefix, "NAME=\"Clear Linux OS\"\n")

	if _, err := CurrentVersion(prefix); err == nil {
		t.Fatal("expected error when VERSION_ID is absent")
	}
}

func TestFetchTargetVersionParsesResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("29830\n"))
	}))
	defer srv.Close()

	cfg := config.Config{VersionURL: srv.URL, Format: "staging"}
	v, err := FetchTargetVersion(context.Background(), transport.New(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if v != 29830 {
		t.Errorf("FetchTargetVersion() = %d, want 29830", v)
	}
}

func TestFetchTargetVersionSurfacesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := config.Config{VersionURL: srv.URL, Format: "staging"}
	if _, err := FetchTargetVersion(context.Background(), transport.New(), cfg); err == nil {
		t.Fatal("expected error for 404 response")
	}
}
