// Package share runs the LAN drop server: an HTTP file server over the
// output directory so processed videos can be pulled onto a phone by
// scanning a QR code.
package share

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

var listingTmpl = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>TikOps Drop</title></head>
<body><h3>Processed videos</h3><ul>
{{range .}}<li><a href="/{{.Href}}">{{.Name}}</a> ({{.Size}})</li>
{{else}}<li>No files yet</li>{{end}}
</ul></body></html>`))

type listingEntry struct {
	Name string
	Href string
	Size string
}

// Server serves one flat directory over HTTP on the LAN. Start and Stop
// are safe to call from the tray and the control API concurrently.
type Server struct {
	port   int
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	httpSrv *http.Server
}

func NewServer(port int, dir string, logger *slog.Logger) *Server {
	return &Server{port: port, dir: dir, logger: logger}
}

// Start begins listening. Starting an already running server is an error
// rather than a silent restart.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpSrv != nil {
		return errors.New("share server already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen on share port: %w", err)
	}
	if s.port == 0 {
		s.port = ln.Addr().(*net.TCPAddr).Port
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpSrv = srv

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("share server error", "error", err)
		}
	}()

	s.logger.Info("share server started", "url", s.urlLocked())
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.httpSrv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("share server stopping")
	return srv.Shutdown(ctx)
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpSrv != nil
}

// URL is the address a phone on the same network should open. Empty when
// the server is not running.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv == nil {
		return ""
	}
	return s.urlLocked()
}

func (s *Server) urlLocked() string {
	return fmt.Sprintf("http://%s:%d", LocalIP(), s.port)
}

// QRCode renders the share URL, or a direct file link when fileName is
// set, as a PNG.
func (s *Server) QRCode(fileName string) ([]byte, error) {
	base := s.URL()
	if base == "" {
		return nil, errors.New("share server not running")
	}
	target := base
	if fileName != "" {
		target = base + "/" + url.PathEscape(fileName)
	}
	return qrcode.Encode(target, qrcode.Low, 256)
}

// LocalIP finds the machine's LAN address by opening a UDP socket toward
// a public address; no packet is sent.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path == "/" {
		s.handleListing(w)
		return
	}

	// Flat directory: a path component is always a bare filename. Reject
	// anything that tries to traverse.
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.serveFile(w, r, filepath.Join(s.dir, name))
}

func (s *Server) handleListing(w http.ResponseWriter) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		http.Error(w, "output directory unavailable", http.StatusInternalServerError)
		return
	}

	var files []listingEntry
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, listingEntry{
			Name: e.Name(),
			Href: url.PathEscape(e.Name()),
			Size: formatSize(info.Size()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	listingTmpl.Execute(w, files)
}

// serveFile streams one file with byte-range support so phone video
// players can seek.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	file, err := os.Open(path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	br, err := ParseRange(r.Header.Get("Range"), size)
	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if err != nil {
		// Malformed range: serve the whole file.
		br = nil
	}

	if br == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.Copy(w, file)
		}
		return
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", br.Length()))
	w.Header().Set("Content-Range", br.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := file.Seek(br.Start, io.SeekStart); err != nil {
		return
	}
	io.CopyN(w, file, br.Length())
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
