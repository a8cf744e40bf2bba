package swupd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/internal/transport"
)

// realHash writes content to a scratch file with the same open flags
// Transport.Download uses for a fresh download, then returns its actual
// swupd content hash, so tests can set up a File record whose hash the
// downloaded blob will genuinely match.
func realHash(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	hash, err := GetHashForFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

func newTestCache(t *testing.T, content map[string]string) (*Cache, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for hash, body := range content {
			if r.URL.Path == fmt.Sprintf("/10/files/%s.tar", hash) {
				_, _ = w.Write([]byte(body))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	cfg := config.Config{StateDir: t.TempDir(), ContentURL: srv.URL, MaxRetries: 1, RetryDelay: 0}
	return NewCache(cfg, transport.New()), srv.Close
}

func TestDownloadFullfilesDeduplicatesByHash(t *testing.T) {
	body := "blob contents"
	hash := realHash(t, body)

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := config.Config{StateDir: t.TempDir(), ContentURL: srv.URL, MaxRetries: 1}
	cache := NewCache(cfg, transport.New())

	h := InternHash(hash)
	refs := []FileRef{
		{File: &File{Name: "/a", Hash: h, Version: 10}, Bundle: "os-core"},
		{File: &File{Name: "/b", Hash: h, Version: 10}, Bundle: "os-core"},
	}

	if err := cache.DownloadFullfiles(context.Background(), refs, 4); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Errorf("expected exactly 1 fetch for the shared hash, got %d", hits)
	}
	if !cache.Have(h) {
		t.Error("expected hash to be materialized in the staged directory")
	}
}

func TestDownloadFullfilesSkipsZeroHash(t *testing.T) {
	cache, closeSrv := newTestCache(t, nil)
	defer closeSrv()

	refs := []FileRef{{File: &File{Name: "/deleted", Hash: ZeroHash, Version: 10}}}
	if err := cache.DownloadFullfiles(context.Background(), refs, 2); err != nil {
		t.Fatal(err)
	}
}

func TestRevalidateDiscardsCorruptBlob(t *testing.T) {
	cache, closeSrv := newTestCache(t, nil)
	defer closeSrv()

	h := InternHash(realHash(t, "expected"))
	path := filepath.Join(cache.cfg.StagedDir(), h.String())
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("wrong contents"), 0644); err != nil {
		t.Fatal(err)
	}

	refs := []FileRef{{File: &File{Name: "/a", Hash: h}}}
	if err := cache.Revalidate(refs); err != nil {
		t.Fatal(err)
	}
	if cache.Have(h) {
		t.Error("expected corrupt blob to be discarded")
	}
}

func TestRevalidateTolerantOfMissingBlob(t *testing.T) {
	cache, closeSrv := newTestCache(t, nil)
	defer closeSrv()

	refs := []FileRef{{File: &File{Name: "/a", Hash: InternHash(realHash(t, "never staged"))}}}
	if err := cache.Revalidate(refs); err != nil {
		t.Fatal(err)
	}
}

func TestShouldFetchPack(t *testing.T) {
	small := make([]FileRef, 5)
	large := make([]FileRef, 20)
	if ShouldFetchPack(small) {
		t.Error("expected small work list to not trigger pack fetch")
	}
	if !ShouldFetchPack(large) {
		t.Error("expected large work list to trigger pack fetch")
	}
}
