package server

import (
	"crypto/subtle"
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/iedon/sitepack/graph"
	"github.com/iedon/sitepack/manifest"
)

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	report, err := s.svc.Build(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("rebuild")
		writeError(w, buildErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleBuildReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.svc.LastReport()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no successful build yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, ok := s.svc.LastGraph()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no successful build yet")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	target, err := s.svc.ResolvePath(r.URL.Path)
	if err != nil {
		s.serveNotFound(w, r)
		return
	}
	if !s.serveFile(w, r, target, http.StatusOK) {
		s.serveNotFound(w, r)
	}
}

func (s *Server) serveNotFound(w http.ResponseWriter, r *http.Request) {
	if s.serveFile(w, r, s.svc.NotFoundDocumentPath(), http.StatusNotFound) {
		return
	}
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

// serveFile writes target, or its precompressed sibling when the client accepts gzip. It
// returns false when target does not exist.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, target string, status int) bool {
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return false
	}

	contentType := mime.TypeByExtension(filepath.Ext(target))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")

	name := target
	if acceptsGzip(r) {
		if gzInfo, err := os.Stat(target + ".gz"); err == nil && !gzInfo.IsDir() {
			name = target + ".gz"
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Add("Vary", "Accept-Encoding")
		}
	}

	file, err := os.Open(name)
	if err != nil {
		return false
	}
	defer file.Close()

	if status != http.StatusOK {
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			_, _ = file.WriteTo(w)
		}
		return true
	}

	stat, err := file.Stat()
	if err != nil {
		return false
	}
	http.ServeContent(w, r, filepath.Base(target), stat.ModTime(), file)
	return true
}

func (s *Server) authorize(r *http.Request) bool {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.RebuildSecret)) == 1
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(coding, "gzip") {
			return true
		}
	}
	return false
}

func buildErrorStatus(err error) int {
	switch {
	case errors.Is(err, manifest.ErrNoPages),
		errors.Is(err, manifest.ErrInvalidName),
		errors.Is(err, graph.ErrDuplicatePage),
		errors.Is(err, graph.ErrReservedName):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
