package site

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ResolvePath maps a request path to a file inside the output directory. Directory routes
// resolve to their index.html, and extensionless routes fall back to "<route>/index.html".
// The returned file may not exist.
func (s *Service) ResolvePath(requestPath string) (string, error) {
	root := s.cfg.OutputPath()
	route := sanitizeRoute(requestPath)
	rel := strings.TrimPrefix(route, "/")
	if rel == "" {
		return filepath.Join(root, "index.html"), nil
	}

	target := filepath.Join(root, filepath.FromSlash(rel))
	if !withinDir(root, target) {
		return "", ErrOutsideOutput
	}

	info, err := os.Stat(target)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(target, "index.html"), nil
	case err == nil:
		return target, nil
	case path.Ext(rel) == "":
		return filepath.Join(target, "index.html"), nil
	default:
		return target, nil
	}
}

// NotFoundDocumentPath returns the static 404 page path.
func (s *Service) NotFoundDocumentPath() string {
	return filepath.Join(s.cfg.OutputPath(), notFoundOutput)
}

func sanitizeRoute(input string) string {
	route := strings.TrimSpace(input)
	if route == "" {
		return "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	cleaned := path.Clean(route)
	if cleaned == "." {
		cleaned = "/"
	}
	return cleaned
}

func withinDir(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
