// Package graph turns a page manifest into the build graph: one script entry per page and one
// HTML output directive per page, plus the fixed index page.
package graph

import (
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/iedon/sitepack/manifest"
)

var (
	// ErrDuplicatePage reports two manifest pages sharing a name.
	ErrDuplicatePage = errors.New("duplicate page name")
	// ErrReservedName reports a page named like the fixed index entry.
	ErrReservedName = errors.New("page name is reserved")
)

// Kind selects which per-page file PathFor derives.
type Kind int

const (
	// Script is the page's entry script.
	Script Kind = iota
	// Template is the page's HTML template.
	Template
	// Content is the page's optional markdown body.
	Content
)

func (k Kind) String() string {
	switch k {
	case Script:
		return "script"
	case Template:
		return "template"
	case Content:
		return "content"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Layout is the on-disk convention the graph is derived against. Paths are slash separated
// and relative to the project root.
type Layout struct {
	ViewsRoot     string
	ScriptExt     string
	TemplateExt   string
	ContentExt    string
	IndexName     string
	IndexScript   string
	IndexTemplate string
}

// DefaultLayout mirrors the src/views + src/theme project structure.
func DefaultLayout() Layout {
	return Layout{
		ViewsRoot:     "src/views",
		ScriptExt:     "js",
		TemplateExt:   "html",
		ContentExt:    "md",
		IndexName:     "index",
		IndexScript:   "src/theme/views/index.js",
		IndexTemplate: "src/theme/views/index.html",
	}
}

// PathFor derives {views-root}/{name}/{name}.{ext} for the requested kind.
func PathFor(layout Layout, name string, kind Kind) string {
	var ext string
	switch kind {
	case Script:
		ext = layout.ScriptExt
	case Template:
		ext = layout.TemplateExt
	case Content:
		ext = layout.ContentExt
	}
	return path.Join(layout.ViewsRoot, name, name+"."+ext)
}

// OutputFor is the HTML file a page renders into.
func OutputFor(name string) string {
	return path.Join(name, "index.html")
}

// EntryMap maps an entry name to its script path.
type EntryMap map[string]string

// Entry is a single named bundler input.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Directive renders one template into one HTML file.
type Directive struct {
	Name           string             `json:"name"`
	TemplatePath   string             `json:"template"`
	OutputFilename string             `json:"filename"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Chunks         []string           `json:"chunks"`
	Context        *manifest.Manifest `json:"-"`
	Page           *manifest.Page     `json:"-"`
}

// IsIndex reports whether the directive is the fixed root page.
func (d Directive) IsIndex() bool {
	return d.Page == nil
}

// Graph is the merged build configuration for one build invocation.
type Graph struct {
	Entries    EntryMap           `json:"entries"`
	Index      Entry              `json:"index"`
	Directives []Directive        `json:"directives"`
	Manifest   *manifest.Manifest `json:"-"`
}

// Build derives the graph for m. It performs no I/O; missing files surface later when the
// bundler or template engine reads them.
func Build(m *manifest.Manifest, layout Layout) (*Graph, error) {
	if m == nil {
		m = &manifest.Manifest{}
	}

	g := &Graph{
		Entries:    make(EntryMap, len(m.Pages)),
		Index:      Entry{Name: layout.IndexName, Path: path.Clean(layout.IndexScript)},
		Directives: make([]Directive, 0, len(m.Pages)+1),
		Manifest:   m,
	}

	g.Directives = append(g.Directives, Directive{
		Name:           layout.IndexName,
		TemplatePath:   path.Clean(layout.IndexTemplate),
		OutputFilename: "index.html",
		Title:          "index",
		Description:    "index",
		Chunks:         []string{layout.IndexName},
		Context:        m,
	})

	for i := range m.Pages {
		p := &m.Pages[i]
		if p.Name == layout.IndexName {
			return nil, fmt.Errorf("%w: %q", ErrReservedName, p.Name)
		}
		if _, ok := g.Entries[p.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePage, p.Name)
		}

		g.Entries[p.Name] = PathFor(layout, p.Name, Script)
		g.Directives = append(g.Directives, Directive{
			Name:           p.Name,
			TemplatePath:   PathFor(layout, p.Name, Template),
			OutputFilename: OutputFor(p.Name),
			Title:          pageTitle(p),
			Description:    p.Description,
			Chunks:         []string{p.Name},
			Context:        m,
			Page:           p,
		})
	}

	return g, nil
}

// EntryPoints merges the index entry with the page entries, sorted by name.
func (g *Graph) EntryPoints() []Entry {
	entries := make([]Entry, 0, len(g.Entries)+1)
	entries = append(entries, g.Index)
	for name, script := range g.Entries {
		entries = append(entries, Entry{Name: name, Path: script})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Directive returns the directive for the named page or the index.
func (g *Graph) Directive(name string) (Directive, bool) {
	for _, d := range g.Directives {
		if d.Name == name {
			return d, true
		}
	}
	return Directive{}, false
}

func pageTitle(p *manifest.Page) string {
	if p.Title != "" {
		return p.Title
	}
	return p.Name + " page"
}
