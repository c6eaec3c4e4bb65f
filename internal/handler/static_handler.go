package handler

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// StaticHandler serves the single page app bundle. GET and HEAD requests
// are looked up in each root in order. Anything else, whatever the method,
// falls back to index.html of the first root so client-side routes resolve.
type StaticHandler struct {
	roots        []string
	cacheControl string
}

// NewStaticHandler creates a static handler over roots with the given max-age
func NewStaticHandler(maxAge time.Duration, roots ...string) *StaticHandler {
	return &StaticHandler{
		roots:        roots,
		cacheControl: fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds())),
	}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	readOnly := r.Method == http.MethodGet || r.Method == http.MethodHead

	if readOnly && name != "/" {
		for _, root := range h.roots {
			if file, ok := lookup(root, name); ok {
				w.Header().Set("Cache-Control", h.cacheControl)
				http.ServeFile(w, r, file)
				return
			}
		}
	}

	if len(h.roots) == 0 {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	index := filepath.Join(h.roots[0], "index.html")
	if _, err := os.Stat(index); err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	// index.html is the entry point and must always be revalidated
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}

// lookup resolves name inside root, refusing directories and paths that escape root
func lookup(root, name string) (string, bool) {
	file := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(name, "/")))

	rel, err := filepath.Rel(root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}

	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return "", false
	}
	return file, true
}
