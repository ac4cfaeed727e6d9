package api

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// handleStatic serves the built web client from disk. Unknown paths fall
// back to the index page so the client's own router can take over.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	// Never fall through to the client for API paths; a typo'd route
	// should 404 as JSON, not as HTML.
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeNotFound(w, "not found")
		return
	}

	if s.staticCfg.Root == "" {
		writeNotFound(w, "not found")
		return
	}

	// path.Clean collapses any ../ segments; the result is always
	// anchored under the static root.
	rel := path.Clean("/" + r.URL.Path)
	file := filepath.Join(s.staticCfg.Root, filepath.FromSlash(rel))

	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		s.serveIndex(w, r)
		return
	}

	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.staticCfg.CacheMaxAge))
	http.ServeFile(w, r, file)
}

// serveIndex serves the client entry page. The index is never cached so
// a redeployed client takes effect on the next load.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(s.staticCfg.Root, s.staticCfg.Index)
	if _, err := os.Stat(index); err != nil {
		writeNotFound(w, "not found")
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}
