package share

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(0, dir, logger), dir
}

func TestServer_Listing(t *testing.T) {
	s, dir := newTestServer(t)
	os.WriteFile(filepath.Join(dir, "clip_processed.mp4"), []byte("video"), 0644)
	os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644)

	ts := httptest.NewServer(http.HandlerFunc(s.handleRequest))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "clip_processed.mp4") {
		t.Errorf("listing missing file: %s", body)
	}
	if strings.Contains(string(body), ".hidden") {
		t.Errorf("listing includes hidden file: %s", body)
	}
}

func TestServer_ServesFileWithRange(t *testing.T) {
	s, dir := newTestServer(t)
	os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("0123456789"), 0644)

	ts := httptest.NewServer(http.HandlerFunc(s.handleRequest))
	defer ts.Close()

	// Whole file.
	resp, err := http.Get(ts.URL + "/clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "0123456789" {
		t.Fatalf("full GET = %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("Accept-Ranges") != "bytes" {
		t.Error("missing Accept-Ranges header")
	}

	// Partial.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/clip.mp4", nil)
	req.Header.Set("Range", "bytes=2-5")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("range GET status = %d, want 206", resp.StatusCode)
	}
	if string(body) != "2345" {
		t.Errorf("range body = %q, want 2345", body)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestServer_UnsatisfiableRange(t *testing.T) {
	s, dir := newTestServer(t)
	os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("0123456789"), 0644)

	ts := httptest.NewServer(http.HandlerFunc(s.handleRequest))
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/clip.mp4", nil)
	req.Header.Set("Range", "bytes=100-")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("status = %d, want 416", resp.StatusCode)
	}
}

func TestServer_RejectsTraversal(t *testing.T) {
	s, _ := newTestServer(t)

	ts := httptest.NewServer(http.HandlerFunc(s.handleRequest))
	defer ts.Close()

	for _, path := range []string{"/../etc/passwd", "/a/b.mp4", "/.hidden"} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		// Bypass client-side path cleaning.
		req.URL.Path = path
		req.URL.RawPath = path
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestServer_QRCodeRequiresRunning(t *testing.T) {
	s, _ := newTestServer(t)
	if _, err := s.QRCode(""); err == nil {
		t.Error("QRCode() should fail when the server is not running")
	}
	if s.URL() != "" {
		t.Errorf("URL() = %q while stopped, want empty", s.URL())
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true for a stopped server")
	}
}
