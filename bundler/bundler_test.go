package bundler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/iedon/sitepack/graph"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	target := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(body), 0o644))
}

func TestBuildEmitsScriptsAndStyles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/views/about/about.js", "import './about.css';\nconsole.log('about');\n")
	writeFile(t, root, "src/views/about/about.css", "body { color: red; }\n")
	writeFile(t, root, "src/views/contact/contact.js", "console.log('contact');\n")
	outDir := filepath.Join(root, "out")

	cfg := DefaultConfig(root)
	cfg.SourceMap = false
	b := New(cfg)

	result, err := b.Build(context.Background(), []graph.Entry{
		{Name: "about", Path: "src/views/about/about.js"},
		{Name: "contact", Path: "./src/views/contact/contact.js"},
	}, outDir)
	require.NoError(t, err)

	require.Contains(t, result.Files, "js/about.js")
	require.Contains(t, result.Files, "css/about.css")
	require.Contains(t, result.Files, "js/contact.js")
	require.FileExists(t, filepath.Join(outDir, "js", "about.js"))
	require.FileExists(t, filepath.Join(outDir, "css", "about.css"))

	about, ok := result.Assets("about")
	require.True(t, ok)
	require.Equal(t, []string{"/js/about.js"}, about.Scripts)
	require.Equal(t, []string{"/css/about.css"}, about.Styles)
	require.False(t, about.Module)

	contact, ok := result.Assets("contact")
	require.True(t, ok)
	require.Equal(t, []string{"/js/contact.js"}, contact.Scripts)
	require.Empty(t, contact.Styles)

	_, ok = result.Assets("missing")
	require.False(t, ok)
}

func TestBuildReportsMissingEntry(t *testing.T) {
	root := t.TempDir()
	b := New(DefaultConfig(root))

	_, err := b.Build(context.Background(), []graph.Entry{
		{Name: "ghost", Path: "src/views/ghost/ghost.js"},
	}, filepath.Join(root, "out"))
	require.ErrorIs(t, err, ErrBuildFailed)
}

func TestBuildRequiresEntries(t *testing.T) {
	b := New(DefaultConfig(t.TempDir()))
	_, err := b.Build(context.Background(), nil, t.TempDir())
	require.Error(t, err)
}

func TestBuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New(DefaultConfig(t.TempDir()))
	_, err := b.Build(ctx, []graph.Entry{{Name: "a", Path: "a.js"}}, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestRelocate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "js/about.js", expected: "js/about.js"},
		{input: "js/about.css", expected: "css/about.css"},
		{input: "js/about.css.map", expected: "css/about.css.map"},
		{input: "js/chunks/shared.css", expected: "js/chunks/shared.css"},
		{input: "assets/logo.png", expected: "assets/logo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.expected, relocate(tt.input))
		})
	}
}

func TestURLPrefix(t *testing.T) {
	b := New(Config{PublicPath: "/docs"})
	require.Equal(t, "/docs/js/a.js", b.url("js/a.js"))

	b = New(Config{})
	require.Equal(t, "/js/a.js", b.url("js/a.js"))
}

func TestBuildEmitsImagesAndFonts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/views/about/about.js", "import './about.css';\nimport font from './brand.woff2';\nconsole.log(font);\n")
	writeFile(t, root, "src/views/about/about.css", "header { background: url(./hero.png); }\nfooter { background: url(/assets/bg.png); }\n")
	writeFile(t, root, "src/views/about/hero.png", "\x89PNG\r\n\x1a\nhero")
	writeFile(t, root, "src/views/about/brand.woff2", "wOF2font")
	outDir := filepath.Join(root, "out")

	cfg := DefaultConfig(root)
	cfg.SourceMap = false
	cfg.PublicPath = "/site/"

	result, err := New(cfg).Build(context.Background(), []graph.Entry{
		{Name: "about", Path: "src/views/about/about.js"},
	}, outDir)
	require.NoError(t, err)

	require.Contains(t, result.Files, "views/about/hero.png")
	require.Contains(t, result.Files, "views/about/brand.woff2")
	require.FileExists(t, filepath.Join(outDir, "views", "about", "hero.png"))
	require.FileExists(t, filepath.Join(outDir, "views", "about", "brand.woff2"))

	css, err := os.ReadFile(filepath.Join(outDir, "css", "about.css"))
	require.NoError(t, err)
	require.Contains(t, string(css), "/site/views/about/hero.png")
	require.Contains(t, string(css), "/assets/bg.png")
	require.NotContains(t, string(css), "/site/assets/bg.png")

	script, err := os.ReadFile(filepath.Join(outDir, "js", "about.js"))
	require.NoError(t, err)
	require.Contains(t, string(script), `"/site/views/about/brand.woff2"`)

	about, ok := result.Assets("about")
	require.True(t, ok)
	require.Equal(t, []string{"/site/js/about.js"}, about.Scripts)
	require.Equal(t, []string{"/site/css/about.css"}, about.Styles)
}
