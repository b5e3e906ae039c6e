package site

import (
	"errors"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/iedon/sitepack/bundler"
	"github.com/iedon/sitepack/graph"
	"github.com/iedon/sitepack/renderer"
	"github.com/iedon/sitepack/templatex"
)

const (
	notFoundOutput  = "404.html"
	notFoundTitle   = "404 - Not found"
	searchIndexFile = "search-index.json"
)

func (s *Service) renderDirective(engine *templatex.Engine, d graph.Directive, bundle *bundler.Result, buildID string) (renderedPage, error) {
	pg := renderedPage{
		Directive:   d,
		OutputPath:  d.OutputFilename,
		Route:       routeFor(d.OutputFilename),
		Title:       d.Title,
		Description: d.Description,
	}

	for _, chunk := range d.Chunks {
		assets, ok := bundle.Assets(chunk)
		if !ok {
			return pg, fmt.Errorf("no bundle output for entry %q", chunk)
		}
		pg.Scripts = append(pg.Scripts, assets.Scripts...)
		pg.Styles = append(pg.Styles, assets.Styles...)
	}

	data := s.pageData(d, pg, buildID)
	if d.Page != nil {
		data.Params = mergeParams(d.Page.Params, nil)
	}

	if !d.IsIndex() {
		content, err := s.renderContent(graph.PathFor(s.cfg.Layout(), d.Name, graph.Content))
		if err != nil {
			return pg, err
		}
		if content != nil {
			data.Content = template.HTML(content.HTML) //nolint:gosec
			data.Params = mergeParams(data.Params, content.Meta)
			for _, h := range content.Headings {
				data.Sections = append(data.Sections, templatex.TOCEntry{ID: h.ID, Text: h.Text, Level: h.Level})
			}
			pg.PlainText = content.PlainText
			if pg.Description == "" {
				pg.Description = metaDescription(content.PlainText, d.Title)
				data.Meta.Description = pg.Description
			}
		}
	}

	html, err := s.renderHTML(engine, d.TemplatePath, data)
	if err != nil {
		return pg, err
	}
	pg.HTML = html
	return pg, nil
}

func (s *Service) renderContent(relPath string) (*renderer.Content, error) {
	src, err := os.ReadFile(s.cfg.Abs(relPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	content, err := s.renderer.Render(src)
	if err != nil {
		return nil, fmt.Errorf("render content %s: %w", relPath, err)
	}
	return content, nil
}

func (s *Service) renderHTML(engine *templatex.Engine, templatePath string, data *templatex.PageData) ([]byte, error) {
	html, err := engine.RenderBytes(s.cfg.Abs(templatePath), data)
	if err != nil {
		return nil, err
	}
	if !*s.cfg.Minify {
		return html, nil
	}
	minified, err := s.renderer.MinifyHTML(html)
	if err != nil {
		return nil, fmt.Errorf("minify: %w", err)
	}
	return minified, nil
}

func (s *Service) pageData(d graph.Directive, pg renderedPage, buildID string) *templatex.PageData {
	ogType := "article"
	if d.IsIndex() {
		ogType = "website"
	}
	return &templatex.PageData{
		Name:        d.Name,
		Title:       d.Title,
		PageTitle:   s.pageTitle(d.Title),
		Description: d.Description,
		SiteName:    s.cfg.SiteName,
		BaseURL:     s.cfg.BaseURL,
		Mode:        s.cfg.Mode,
		BuildID:     buildID,
		ActivePath:  pg.Route,
		Page:        d.Page,
		Pages:       d.Context.Pages,
		Manifest:    d.Context,
		Scripts:     pg.Scripts,
		Styles:      pg.Styles,
		Module:      s.cfg.Splitting,
		Meta:        s.buildMeta(d.Description, d.Title, pg.Route, ogType),
	}
}

// writeNotFoundPage pre-renders the themed 404 page when the theme provides one, using the
// index entry's assets.
func (s *Service) writeNotFoundPage(engine *templatex.Engine, g *graph.Graph, bundle *bundler.Result, buildID, baseDir string) error {
	if _, err := os.Stat(s.cfg.Abs(s.cfg.NotFoundTemplate)); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	d := graph.Directive{
		Name:           "404",
		TemplatePath:   s.cfg.NotFoundTemplate,
		OutputFilename: notFoundOutput,
		Title:          notFoundTitle,
		Description:    "The page you are looking for could not be found.",
		Chunks:         []string{g.Index.Name},
		Context:        g.Manifest,
	}
	pg := renderedPage{Directive: d, OutputPath: notFoundOutput, Title: d.Title}
	if assets, ok := bundle.Assets(g.Index.Name); ok {
		pg.Scripts = assets.Scripts
		pg.Styles = assets.Styles
	}

	data := s.pageData(d, pg, buildID)
	data.ActivePath = ""
	data.Meta.Canonical = ""

	html, err := s.renderHTML(engine, d.TemplatePath, data)
	if err != nil {
		return fmt.Errorf("404 page: %w", err)
	}
	return os.WriteFile(filepath.Join(baseDir, notFoundOutput), html, 0o644)
}

func (s *Service) buildMeta(summary, fallback, route, ogType string) templatex.Meta {
	description := metaDescription(summary, fallback)
	if description == "" {
		description = s.cfg.SiteName
	}
	return templatex.Meta{
		Description:   description,
		Canonical:     absoluteURL(s.cfg.BaseURL, route),
		OpenGraphType: ogType,
		OpenGraphSite: s.cfg.SiteName,
	}
}

func (s *Service) pageTitle(raw string) string {
	title := strings.TrimSpace(raw)
	site := strings.TrimSpace(s.cfg.SiteName)
	if title == "" {
		return site
	}
	if site == "" {
		return title
	}
	return fmt.Sprintf("%s - %s", title, site)
}

// routeFor maps an output file to the URL path it is served under.
func routeFor(output string) string {
	dir := path.Dir(output)
	if path.Base(output) != "index.html" {
		return "/" + output
	}
	if dir == "." {
		return "/"
	}
	return "/" + dir + "/"
}

// absoluteURL joins a base URL and a route; it returns "" unless base has a scheme.
func absoluteURL(base, route string) string {
	base = strings.TrimSpace(base)
	if !strings.Contains(base, "://") {
		return ""
	}
	return strings.TrimRight(base, "/") + route
}

func mergeParams(base, extra map[string]any) map[string]any {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(extra))
	for key, value := range extra {
		out[key] = value
	}
	for key, value := range base {
		out[key] = value
	}
	return out
}
