package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/iedon/sitepack/graph"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config encapsulates build and dev-server options. Source paths are slash separated and
// relative to Root.
type Config struct {
	Root             string   `json:"root"`
	Manifest         string   `json:"manifest"`
	SourceDir        string   `json:"sourceDir"`
	ViewsRoot        string   `json:"viewsRoot"`
	ScriptExt        string   `json:"scriptExt"`
	TemplateExt      string   `json:"templateExt"`
	ContentExt       string   `json:"contentExt"`
	IndexName        string   `json:"indexName"`
	IndexScript      string   `json:"indexScript"`
	IndexTemplate    string   `json:"indexTemplate"`
	NotFoundTemplate string   `json:"notFoundTemplate"`
	PartialDirs      []string `json:"partialDirs"`
	AssetsDir        string   `json:"assetsDir"`
	AssetsOutput     string   `json:"assetsOutput"`
	OutputDir        string   `json:"outputDir"`
	Listen           string   `json:"listen"`
	BaseURL          string   `json:"baseUrl"`
	SiteName         string   `json:"siteName"`
	Mode             string   `json:"mode"`
	Minify           *bool    `json:"minify"`
	SourceMap        *bool    `json:"sourceMap"`
	Splitting        bool     `json:"splitting"`
	Precompress      bool     `json:"precompress"`
	LogLevel         string   `json:"logLevel"`
	WatchIntervalSec int      `json:"watchIntervalSec"`
	RebuildSecret    string   `json:"rebuildSecret"`

	WatchInterval time.Duration `json:"-"`
}

// Load reads configuration from disk and applies defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	file, err := os.Open(filepath.Clean(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(bytes, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.Finalize()
	return cfg
}

// Finalize applies defaults and validates. Call it again after overriding fields.
func (c *Config) Finalize() error {
	c.applyDefaults()
	return c.validate()
}

func (c *Config) applyDefaults() {
	c.Root = strings.TrimSpace(c.Root)
	if c.Root == "" {
		c.Root = "."
	}
	c.Manifest = defaultPath(c.Manifest, "src/helpers/pages.json")
	c.SourceDir = defaultPath(c.SourceDir, "src")
	c.ViewsRoot = defaultPath(c.ViewsRoot, "src/views")
	c.ScriptExt = defaultExt(c.ScriptExt, "js")
	c.TemplateExt = defaultExt(c.TemplateExt, "html")
	c.ContentExt = defaultExt(c.ContentExt, "md")
	c.IndexName = strings.TrimSpace(c.IndexName)
	if c.IndexName == "" {
		c.IndexName = "index"
	}
	c.IndexScript = defaultPath(c.IndexScript, "src/theme/views/index."+c.ScriptExt)
	c.IndexTemplate = defaultPath(c.IndexTemplate, "src/theme/views/index."+c.TemplateExt)
	c.NotFoundTemplate = defaultPath(c.NotFoundTemplate, "src/theme/views/404."+c.TemplateExt)
	if len(c.PartialDirs) == 0 {
		c.PartialDirs = []string{"src/components", "src/layouts", "src/theme", "src/views"}
	}
	for i, dir := range c.PartialDirs {
		c.PartialDirs[i] = cleanSlash(dir)
	}
	c.AssetsDir = defaultPath(c.AssetsDir, "src/assets")
	c.AssetsOutput = defaultPath(c.AssetsOutput, "assets")
	if strings.TrimSpace(c.OutputDir) == "" {
		c.OutputDir = "dist"
	}
	if c.Listen == "" {
		c.Listen = "localhost:3000"
	}
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.SiteName = strings.TrimSpace(c.SiteName)
	if c.SiteName == "" {
		c.SiteName = "sitepack"
	}
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = ModeDevelopment
	}
	if c.Minify == nil {
		c.Minify = boolPtr(c.Mode == ModeProduction)
	}
	if c.SourceMap == nil {
		c.SourceMap = boolPtr(c.Mode == ModeDevelopment)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.WatchIntervalSec <= 0 {
		c.WatchIntervalSec = 1
	}
	c.WatchInterval = time.Duration(c.WatchIntervalSec) * time.Second
	c.RebuildSecret = strings.TrimSpace(c.RebuildSecret)
}

func (c *Config) validate() error {
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if n := len(c.RebuildSecret); n > 0 && (n < 8 || n > 128) {
		return fmt.Errorf("rebuild secret must be between 8 and 128 characters")
	}
	for _, p := range []string{c.Manifest, c.ViewsRoot, c.IndexScript, c.IndexTemplate, c.AssetsDir} {
		if escapesRoot(p) {
			return fmt.Errorf("path %q escapes the project root", p)
		}
	}
	return nil
}

// Layout derives the graph path convention from the configuration.
func (c *Config) Layout() graph.Layout {
	return graph.Layout{
		ViewsRoot:     c.ViewsRoot,
		ScriptExt:     c.ScriptExt,
		TemplateExt:   c.TemplateExt,
		ContentExt:    c.ContentExt,
		IndexName:     c.IndexName,
		IndexScript:   c.IndexScript,
		IndexTemplate: c.IndexTemplate,
	}
}

// Abs resolves a project-relative slash path against Root.
func (c *Config) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// OutputPath resolves the output directory against Root unless it is absolute.
func (c *Config) OutputPath() string {
	return c.Abs(c.OutputDir)
}

// Production reports whether the build targets production.
func (c *Config) Production() bool {
	return c.Mode == ModeProduction
}

func defaultPath(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	return cleanSlash(value)
}

func defaultExt(value, fallback string) string {
	value = strings.TrimPrefix(strings.TrimSpace(value), ".")
	if value == "" {
		return fallback
	}
	return value
}

func cleanSlash(p string) string {
	cleaned := path.Clean(strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"))
	for strings.HasPrefix(cleaned, "./") {
		cleaned = strings.TrimPrefix(cleaned, "./")
	}
	return cleaned
}

func escapesRoot(p string) bool {
	return p == ".." || strings.HasPrefix(p, "../")
}

func boolPtr(v bool) *bool {
	return &v
}
