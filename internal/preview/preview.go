// Package preview implements the Preview Service Worker redesign: an HTTP
// handler that owns a process-local per-project file store, mirrors it into
// a persistent bbolt-backed fallback cache, and serves both an upload
// endpoint and the fetch-interception routes spec.md §4.5 describes.
package preview

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"golang.org/x/net/idna"

	"github.com/esbuild-dev/bundlerd/internal/engine"
	"github.com/esbuild-dev/bundlerd/internal/storage"
)

// file is a single served artifact.
type file struct {
	Contents []byte
	MIME     string
}

// Store is the preview service worker's own state: it never shares the
// worker pool's VFS, per spec.md §5's "owns its own state independently".
type Store struct {
	mu       sync.RWMutex
	projects map[string]map[string]file
	db       storage.Store
	suffix   string
	live     *liveSubscribers
}

// New returns a Store backed by db for the persistent fallback cache. suffix
// is the build-time preview-suffix placeholder; empty disables hostname-based
// routing (rule 1 of spec.md §4.5).
func New(db storage.Store, suffix string) *Store {
	return &Store{
		projects: make(map[string]map[string]file),
		db:       db,
		suffix:   suffix,
		live:     newLiveSubscribers(),
	}
}

func bucketName(projectID string) string {
	return "esbuild-files-" + projectID
}

// mimeFor derives a MIME type from a file extension, per spec.md §4.5's map.
func mimeFor(filePath string) string {
	switch strings.TrimPrefix(path.Ext(filePath), ".") {
	case "js":
		return "application/javascript"
	case "css":
		return "text/css"
	case "html":
		return "text/html"
	case "json", "map":
		return "application/json"
	case "txt":
		return "text/plain"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// uploadRequest mirrors the {type: 'UPLOAD_FILES', payload: {projectId,
// files}} message protocol, adapted to an HTTP request/response exchange
// since there is no worker message channel in this redesign.
type uploadRequest struct {
	ProjectID string            `json:"projectId"`
	Files     map[string]string `json:"files"`
}

type uploadResponse struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId"`
}

// Upload replaces a project's in-memory file set, clears and repopulates its
// persistent cache bucket, and replies UPLOAD_COMPLETE.
func (s *Store) Upload(projectID string, files map[string]string) error {
	entries := make(map[string]file, len(files))
	for p, contents := range files {
		entries[p] = file{Contents: []byte(contents), MIME: mimeFor(p)}
	}

	s.mu.Lock()
	s.projects[projectID] = entries
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	bucket := bucketName(projectID)
	for p, f := range entries {
		rec := storage.Record{Request: p, Data: f.Contents}
		if err := s.db.Put(bucket, rec); err != nil {
			return fmt.Errorf("persist preview file %s/%s: %w", projectID, p, err)
		}
	}
	s.live.notify(projectID)
	return nil
}

// lookup serves from the in-memory map first, falling back to the
// persistent cache and repopulating the in-memory map on a hit, per
// spec.md §4.5 rule 2's "look up the persistent cache, repopulate the
// in-memory map".
func (s *Store) lookup(projectID, filePath string) (file, bool) {
	s.mu.RLock()
	proj, ok := s.projects[projectID]
	if ok {
		f, ok := proj[filePath]
		s.mu.RUnlock()
		if ok {
			return f, true
		}
	} else {
		s.mu.RUnlock()
	}

	if s.db == nil {
		return file{}, false
	}
	rec, err := s.db.Get(bucketName(projectID), filePath)
	if err != nil {
		return file{}, false
	}
	f := file{Contents: rec.Data, MIME: mimeFor(filePath)}

	s.mu.Lock()
	if s.projects[projectID] == nil {
		s.projects[projectID] = make(map[string]file)
	}
	s.projects[projectID][filePath] = f
	s.mu.Unlock()

	return f, true
}

// lookupMemory serves the in-memory map only, per spec.md §4.5 rule 1:
// "serve the in-memory entry or 404". Unlike lookup, a miss here never
// consults the persistent cache — rule 1 has no fallback tier.
func (s *Store) lookupMemory(projectID, filePath string) (file, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.projects[projectID][filePath]
	return f, ok
}

// isolationHeaders is the fixed cross-origin isolation header block spec.md
// §4.5 requires on every served preview artifact.
func isolationHeaders(h http.Header) {
	h.Set("Cross-Origin-Embedder-Policy", "require-corp")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Resource-Policy", "cross-origin")
	h.Set("Content-Security-Policy", "default-src 'self' 'unsafe-inline' 'unsafe-eval' data: blob:")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "SAMEORIGIN")
	h.Set("X-XSS-Protection", "1; mode=block")
}

// projectFromHost extracts a projectId from a hostname ending in the
// configured preview suffix, per rule 1. ok is false when the suffix is
// unset or the host doesn't end with it.
func (s *Store) projectFromHost(host string) (projectID string, ok bool) {
	if s.suffix == "" {
		return "", false
	}
	// ToASCII normalises a punycode or mixed-case Host header before the
	// suffix comparison, so "MyProj.Preview.local" and an IDN project
	// hostname both match the configured suffix consistently.
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if !strings.HasSuffix(host, s.suffix) {
		return "", false
	}
	return strings.TrimSuffix(host, s.suffix), true
}

// serveFile writes f as the HTTP response with the fixed header block.
// Markdown files are rendered to HTML at serve time rather than stored
// pre-rendered, so an uploaded README previews the same way a project's own
// dev server would show it.
func serveFile(w http.ResponseWriter, r *http.Request, filePath string, f file) {
	contents := f.Contents
	mime := f.MIME
	if strings.HasSuffix(filePath, ".md") {
		if html, err := renderMarkdown(f.Contents); err == nil {
			contents = html
			mime = "text/html"
		}
	}

	isolationHeaders(w.Header())
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	if strings.HasSuffix(filePath, ".js") {
		w.Header().Set("X-Esbuild-Suggested-Target", engine.TargetFromUserAgent(r.UserAgent()))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(contents)
}

// ServeUpload handles POST /~upload.
func (s *Store) ServeUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 32*1024*1024)).Decode(&req); err != nil {
		http.Error(w, "invalid upload payload", http.StatusBadRequest)
		return
	}

	if err := s.Upload(req.ProjectID, req.Files); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(uploadResponse{Type: "UPLOAD_COMPLETE", ProjectID: req.ProjectID})
}

// ServeFetch implements the fetch-interception routing rules of spec.md
// §4.5, in order: preview-suffix hostname routing, then /__build/ routing.
func (s *Store) ServeFetch(w http.ResponseWriter, r *http.Request) {
	if projectID, ok := s.projectFromHost(r.Host); ok {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		f, ok := s.lookupMemory(projectID, filePath)
		if !ok {
			http.NotFound(w, r)
			return
		}
		serveFile(w, r, filePath, f)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/__build/") {
		rest := strings.TrimPrefix(r.URL.Path, "/__build/")
		projectID, filePath, _ := strings.Cut(rest, "/")
		if filePath == "" {
			filePath = "index.html"
		}
		f, ok := s.lookup(projectID, filePath)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		serveFile(w, r, filePath, f)
		return
	}

	http.NotFound(w, r)
}
