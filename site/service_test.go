package site

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iedon/sitepack/config"
	"github.com/iedon/sitepack/graph"
	"github.com/stretchr/testify/require"
)

const testLayout = `<!doctype html><html><head><title>{{.PageTitle}}</title>{{range .Styles}}<link rel="stylesheet" href="{{.}}">{{end}}</head>` +
	`<body><nav>{{range .Pages}}<a href="{{pageURL $.BaseURL .Name}}">{{.Name}}</a>{{end}}</nav>{{block "content" .}}{{end}}` +
	`{{range .Scripts}}<script src="{{.}}"></script>{{end}}</body></html>`

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	target := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(body), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/helpers/pages.json", `{"pages": [
		{"name": "about", "title": "About us", "description": "Who we are"},
		{"name": "contact"}
	]}`)
	writeFile(t, root, "src/layouts/_layout.html", testLayout)
	writeFile(t, root, "src/theme/views/index.js", "import './index.css';\nconsole.log('index');\n")
	writeFile(t, root, "src/theme/views/index.css", "body { margin: 0; }\n")
	writeFile(t, root, "src/theme/views/index.html", `{{define "content"}}<main>home</main>{{end}}{{template "layout" .}}`)
	writeFile(t, root, "src/views/about/about.js", "console.log('about');\n")
	writeFile(t, root, "src/views/about/about.html", `{{define "content"}}<main>{{.Content}}<p>{{index .Params "hero"}}</p></main>{{end}}{{template "layout" .}}`)
	writeFile(t, root, "src/views/about/about.md", "---\nhero: Welcome aboard\n---\n# Our story\n\nWe build static sites.\n")
	writeFile(t, root, "src/views/contact/contact.js", "console.log('contact');\n")
	writeFile(t, root, "src/views/contact/contact.html", `{{define "content"}}<main>{{.Title}}</main>{{end}}{{template "layout" .}}`)
	writeFile(t, root, "src/assets/robots.txt", "User-agent: *\n")
	return root
}

func newTestService(t *testing.T, root string, mutate func(cfg *config.Config)) *Service {
	t.Helper()
	cfg := &config.Config{Root: root}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Finalize())
	return NewService(cfg)
}

func TestBuildRendersEveryDirective(t *testing.T) {
	root := newProject(t)
	svc := newTestService(t, root, nil)

	report, err := svc.Build(context.Background())
	require.NoError(t, err)

	dist := filepath.Join(root, "dist")
	for _, rel := range []string{
		"index.html",
		"about/index.html",
		"contact/index.html",
		"js/index.js",
		"js/about.js",
		"js/contact.js",
		"css/index.css",
		"assets/robots.txt",
		searchIndexFile,
		reportFile,
	} {
		require.FileExists(t, filepath.Join(dist, filepath.FromSlash(rel)))
		require.Contains(t, report.Files, rel)
	}
	require.NoFileExists(t, filepath.Join(dist, sitemapFile))
	require.NoFileExists(t, filepath.Join(dist, notFoundOutput))

	require.Equal(t, graph.EntryMap{
		"about":   "src/views/about/about.js",
		"contact": "src/views/contact/contact.js",
	}, report.Entries)
	require.Len(t, report.Pages, 3)
	require.Equal(t, "index", report.Pages[0].Name)
	require.Equal(t, "about/index.html", report.Pages[1].Output)
	require.Equal(t, "contact page", report.Pages[2].Title)

	index := readFile(t, filepath.Join(dist, "index.html"))
	require.Contains(t, index, `<link rel="stylesheet" href="/css/index.css">`)
	require.Contains(t, index, `<script src="/js/index.js"></script>`)
	require.Contains(t, index, `<a href="/about/">about</a><a href="/contact/">contact</a>`)

	about := readFile(t, filepath.Join(dist, "about", "index.html"))
	require.Contains(t, about, "<title>About us - sitepack</title>")
	require.Contains(t, about, "Our story</h1>")
	require.Contains(t, about, "<p>Welcome aboard</p>")
	require.Contains(t, about, `<script src="/js/about.js"></script>`)
	require.NotContains(t, about, "/js/contact.js")
	require.NotContains(t, about, "/js/index.js")

	contact := readFile(t, filepath.Join(dist, "contact", "index.html"))
	require.Contains(t, contact, "<main>contact page</main>")

	var onDisk Report
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dist, reportFile))), &onDisk))
	require.Equal(t, report.ID, onDisk.ID)

	last, ok := svc.LastReport()
	require.True(t, ok)
	require.Same(t, report, last)
	g, ok := svc.LastGraph()
	require.True(t, ok)
	require.Len(t, g.Directives, 3)
}

func TestBuildFailureKeepsPreviousOutput(t *testing.T) {
	root := newProject(t)
	svc := newTestService(t, root, nil)

	first, err := svc.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "src", "views", "contact", "contact.html")))
	_, err = svc.Build(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
	require.ErrorContains(t, err, "page contact")

	require.FileExists(t, filepath.Join(root, "dist", "contact", "index.html"))
	last, ok := svc.LastReport()
	require.True(t, ok)
	require.Equal(t, first.ID, last.ID)

	matches, err := filepath.Glob(filepath.Join(root, ".__build-*"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestBuildFailsOnBrokenScript(t *testing.T) {
	root := newProject(t)
	writeFile(t, root, "src/views/about/about.js", "import './missing.js';\n")
	svc := newTestService(t, root, nil)

	_, err := svc.Build(context.Background())
	require.ErrorContains(t, err, "bundle")
	require.NoDirExists(t, filepath.Join(root, "dist"))
}

func TestBuildRejectsDuplicatePages(t *testing.T) {
	root := newProject(t)
	writeFile(t, root, "src/helpers/pages.json", `{"pages": [{"name": "about"}, {"name": "about"}]}`)
	svc := newTestService(t, root, nil)

	_, err := svc.Build(context.Background())
	require.ErrorIs(t, err, graph.ErrDuplicatePage)
}

func TestBuildWithBaseURLWritesSitemapAndNotFound(t *testing.T) {
	root := newProject(t)
	writeFile(t, root, "src/theme/views/404.html", `{{define "content"}}<main>{{.Title}}</main>{{end}}{{template "layout" .}}`)
	svc := newTestService(t, root, func(cfg *config.Config) {
		cfg.BaseURL = "https://example.org/docs/"
		cfg.SiteName = "Docs"
	})

	report, err := svc.Build(context.Background())
	require.NoError(t, err)
	require.Contains(t, report.Files, sitemapFile)

	dist := filepath.Join(root, "dist")
	sitemap := readFile(t, filepath.Join(dist, sitemapFile))
	require.Contains(t, sitemap, "<loc>https://example.org/docs/</loc>")
	require.Contains(t, sitemap, "<loc>https://example.org/docs/about/</loc>")
	require.Contains(t, sitemap, "<loc>https://example.org/docs/contact/</loc>")
	require.NotContains(t, sitemap, notFoundOutput)

	notFound := readFile(t, filepath.Join(dist, notFoundOutput))
	require.Contains(t, notFound, "<main>"+notFoundTitle+"</main>")
	require.Contains(t, notFound, `<script src="/docs/js/index.js"></script>`)

	about := readFile(t, filepath.Join(dist, "about", "index.html"))
	require.Contains(t, about, `<script src="/docs/js/about.js"></script>`)
	require.Contains(t, about, `<a href="/docs/contact/">`)
}

func TestBuildProductionMinifies(t *testing.T) {
	root := newProject(t)
	svc := newTestService(t, root, func(cfg *config.Config) {
		cfg.Mode = config.ModeProduction
	})

	report, err := svc.Build(context.Background())
	require.NoError(t, err)
	require.NotContains(t, report.Files, "js/about.js.map")

	index := readFile(t, filepath.Join(root, "dist", "index.html"))
	require.False(t, strings.Contains(index, "<!doctype html><html><head>"), "expected minified markup")
	require.Contains(t, index, "home")
}

func TestGraphDoesNotWrite(t *testing.T) {
	root := newProject(t)
	svc := newTestService(t, root, nil)

	g, err := svc.Graph()
	require.NoError(t, err)
	require.Equal(t, "index", g.Directives[0].Name)
	require.NoDirExists(t, filepath.Join(root, "dist"))

	_, ok := svc.LastGraph()
	require.False(t, ok)
}

func TestBuildEmitsReferencedAssets(t *testing.T) {
	root := newProject(t)
	png := "\x89PNG\r\n\x1a\nhero"
	writeFile(t, root, "src/assets/bg.png", "\x89PNG\r\n\x1a\nbg")
	writeFile(t, root, "src/assets/hero.png", png)
	writeFile(t, root, "src/theme/fonts/brand.woff2", "wOF2font")
	writeFile(t, root, "src/theme/views/index.css",
		"body { background: url(/assets/bg.png); }\n"+
			"@font-face { font-family: brand; src: url(../fonts/brand.woff2) format(\"woff2\"); }\n")
	writeFile(t, root, "src/views/about/about.js", "import hero from '../../assets/hero.png';\ndocument.body.dataset.hero = hero;\n")
	svc := newTestService(t, root, nil)

	report, err := svc.Build(context.Background())
	require.NoError(t, err)

	dist := filepath.Join(root, "dist")
	require.FileExists(t, filepath.Join(dist, "assets", "bg.png"))
	require.FileExists(t, filepath.Join(dist, "theme", "fonts", "brand.woff2"))
	require.Equal(t, png, readFile(t, filepath.Join(dist, "assets", "hero.png")))

	count := 0
	for _, file := range report.Files {
		if file == "assets/hero.png" {
			count++
		}
	}
	require.Equal(t, 1, count)
	require.Contains(t, report.Files, "theme/fonts/brand.woff2")

	css := readFile(t, filepath.Join(dist, "css", "index.css"))
	require.Contains(t, css, "/assets/bg.png")
	require.Contains(t, css, "/theme/fonts/brand.woff2")
	require.NotContains(t, css, "../fonts/brand.woff2")

	script := readFile(t, filepath.Join(dist, "js", "about.js"))
	require.Contains(t, script, `"/assets/hero.png"`)
}

func TestBuildAssetURLsFollowBaseURL(t *testing.T) {
	root := newProject(t)
	writeFile(t, root, "src/assets/hero.png", "\x89PNG\r\n\x1a\nhero")
	writeFile(t, root, "src/theme/views/index.css", "body { background: url(/docs/assets/hero.png); }\n")
	writeFile(t, root, "src/views/about/about.js", "import hero from '../../assets/hero.png';\ndocument.body.dataset.hero = hero;\n")
	svc := newTestService(t, root, func(cfg *config.Config) {
		cfg.BaseURL = "https://example.org/docs/"
	})

	_, err := svc.Build(context.Background())
	require.NoError(t, err)

	dist := filepath.Join(root, "dist")
	require.Contains(t, readFile(t, filepath.Join(dist, "js", "about.js")), `"/docs/assets/hero.png"`)
	require.Contains(t, readFile(t, filepath.Join(dist, "css", "index.css")), "/docs/assets/hero.png")
}

func TestSearchIndexUsesContentDescription(t *testing.T) {
	root := newProject(t)
	writeFile(t, root, "src/views/contact/contact.md", "Reach us by mail.\n")
	svc := newTestService(t, root, nil)

	_, err := svc.Build(context.Background())
	require.NoError(t, err)

	var index searchIndex
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(root, "dist", searchIndexFile))), &index))
	require.Len(t, index.Docs, 3)
	require.Equal(t, "/contact/", index.Docs[2].URL)
	require.Equal(t, "Reach us by mail.", index.Docs[2].Description)
	require.Equal(t, "Who we are", index.Docs[1].Description)
}
