package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	tr := New()
	body, err := tr.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()

	buf := make([]byte, 5)
	if _, err := body.Read(buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Errorf("got %q, want %q", buf, "hello")
	}
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := New()
	_, err := tr.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error")
	}
	statusErr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("got %T, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("file contents"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out")

	tr := New()
	if err := tr.Download(context.Background(), srv.URL, dest, false); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "file contents" {
		t.Errorf("got %q", got)
	}

	if _, err := os.Stat(dest + ".download"); !os.IsNotExist(err) {
		t.Error("expected .download temp file to be renamed away")
	}
}

func TestDownloadResume(t *testing.T) {
	const full = "0123456789"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "" {
			_, _ = w.Write([]byte(full))
			return
		}
		w.Header().Set("Content-Range", "bytes 5-9/10")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(full[5:]))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out")
	if err := os.WriteFile(dest+".download", []byte(full[:5]), 0644); err != nil {
		t.Fatal(err)
	}

	tr := New()
	if err := tr.Download(context.Background(), srv.URL, dest, true); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != full {
		t.Errorf("got %q, want %q", got, full)
	}
}

func TestDownloadRangeNotSupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignores Range and always answers 200.
		_, _ = w.Write([]byte("abcdefghij"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out")
	if err := os.WriteFile(dest+".download", []byte("abcde"), 0644); err != nil {
		t.Fatal(err)
	}

	tr := New()
	err := tr.Download(context.Background(), srv.URL, dest, true)
	if err == nil {
		t.Fatal("expected RangeNotSupportedError")
	}
	if _, ok := err.(*RangeNotSupportedError); !ok {
		t.Fatalf("got %T, want *RangeNotSupportedError", err)
	}
}
