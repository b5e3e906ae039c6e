package templatex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iedon/sitepack/manifest"
)

// PartialPrefix marks template files that are registered as shared partials.
const PartialPrefix = "_"

// Engine renders page templates against a shared set of partials and helpers.
type Engine struct {
	base     *template.Template
	partials []string
}

// PageData is the context every page template receives.
type PageData struct {
	Name        string
	Title       string
	PageTitle   string
	Description string
	SiteName    string
	BaseURL     string
	Mode        string
	BuildID     string
	ActivePath  string
	// Page is nil for the index and 404 pages.
	Page     *manifest.Page
	Pages    []manifest.Page
	Manifest *manifest.Manifest
	Scripts  []string
	Styles   []string
	Module   bool
	Content  template.HTML
	Sections []TOCEntry
	Params   map[string]any
	Meta     Meta
}

// Meta holds SEO-oriented metadata for the rendered page.
type Meta struct {
	Description   string
	Canonical     string
	OpenGraphType string
	OpenGraphSite string
}

// TOCEntry models a single heading for in-page navigation.
type TOCEntry struct {
	ID    string
	Text  string
	Level int
}

// Load collects partials from dirs. Every file with the given extension whose name starts
// with "_" is registered under its base name without prefix and extension, so
// src/components/_nav.html becomes {{template "nav" .}}. Missing dirs are skipped.
func Load(dirs []string, ext string, customFuncs template.FuncMap) (*Engine, error) {
	ext = "." + strings.TrimPrefix(ext, ".")

	funcs := template.FuncMap{
		"safeHTML": func(v any) template.HTML {
			switch value := v.(type) {
			case template.HTML:
				return value
			case string:
				return template.HTML(value) //nolint:gosec
			default:
				return ""
			}
		},
		"baseHref": BaseHref,
		"pageURL": func(base, name string) string {
			return BaseHref(base) + strings.Trim(name, "/") + "/"
		},
		"marshal": marshal,
		"default": func(fallback, value any) any {
			if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
				return fallback
			}
			if value == nil {
				return fallback
			}
			return value
		},
	}
	maps.Copy(funcs, customFuncs)

	files := make(map[string]string)
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isPartial(d.Name(), ext) {
				return nil
			}
			name := partialName(d.Name())
			if prev, ok := files[name]; ok && prev != p {
				return fmt.Errorf("partial %q defined by both %s and %s", name, prev, p)
			}
			files[name] = p
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan partials in %s: %w", dir, err)
		}
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	base := template.New("root").Funcs(funcs)
	for _, name := range names {
		src, err := os.ReadFile(files[name])
		if err != nil {
			return nil, fmt.Errorf("read partial %s: %w", files[name], err)
		}
		if _, err := base.New(name).Parse(string(src)); err != nil {
			return nil, fmt.Errorf("parse partial %s: %w", files[name], err)
		}
	}

	return &Engine{base: base, partials: names}, nil
}

// Partials lists the registered partial names.
func (e *Engine) Partials() []string {
	return append([]string(nil), e.partials...)
}

// Render executes the page template at templatePath with data.
func (e *Engine) Render(w io.Writer, templatePath string, data *PageData) error {
	if e.base == nil {
		return fmt.Errorf("template engine not initialized")
	}
	src, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	tpl, err := e.base.Clone()
	if err != nil {
		return fmt.Errorf("clone templates: %w", err)
	}
	name := path.Base(filepath.ToSlash(templatePath))
	page, err := tpl.New(name).Parse(string(src))
	if err != nil {
		return fmt.Errorf("parse template %s: %w", templatePath, err)
	}
	if data != nil && strings.TrimSpace(data.PageTitle) == "" {
		data.PageTitle = data.Title
	}
	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("execute template %s: %w", templatePath, err)
	}
	return nil
}

// RenderBytes is Render into a fresh buffer.
func (e *Engine) RenderBytes(templatePath string, data *PageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Render(&buf, templatePath, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isPartial(fileName, ext string) bool {
	return strings.HasPrefix(fileName, PartialPrefix) && strings.EqualFold(filepath.Ext(fileName), ext)
}

func partialName(fileName string) string {
	return strings.TrimPrefix(strings.TrimSuffix(fileName, filepath.Ext(fileName)), PartialPrefix)
}

// BaseHref reduces a base URL to its path, always with leading and trailing slash.
func BaseHref(base string) string {
	base = strings.TrimSpace(base)
	if i := strings.Index(base, "://"); i >= 0 {
		rest := base[i+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			base = rest[slash:]
		} else {
			base = ""
		}
	}
	if base == "" || base == "/" {
		return "/"
	}
	return "/" + strings.Trim(base, "/") + "/"
}

func marshal(value any) (template.JS, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return template.JS(data), nil //nolint:gosec
}
