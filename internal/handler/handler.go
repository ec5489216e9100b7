// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/authgate/authgate/internal/handler/dto"
)

// indexFile is the page served at /.
const indexFile = "index.html"

// Handler serves the static frontend and the fallback routes.
type Handler struct {
	frontendDir string
}

// New creates a new Handler serving files from frontendDir.
func New(frontendDir string) *Handler {
	return &Handler{frontendDir: frontendDir}
}

// Home serves the frontend index page.
// GET /
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	page, err := os.ReadFile(filepath.Join(h.frontendDir, indexFile))
	if err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("404 Not Found"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// Static serves files under the frontend directory without directory listings.
// Mount with http.StripPrefix.
func (h *Handler) Static() http.Handler {
	return http.FileServer(noListingFS{http.Dir(h.frontendDir)})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not Found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method Not Allowed")
}

// noListingFS hides directories so FileServer never renders an index.
type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the uniform error body.
func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, dto.ErrorResponse{
		Detail: detail,
		Code:   code,
	})
}

// isBodyTooLarge reports whether err came from http.MaxBytesReader.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
