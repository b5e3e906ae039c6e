package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/iedon/sitepack/bundler"
	"github.com/iedon/sitepack/config"
	"github.com/iedon/sitepack/fsutil"
	"github.com/iedon/sitepack/graph"
	"github.com/iedon/sitepack/manifest"
	"github.com/iedon/sitepack/renderer"
	"github.com/iedon/sitepack/templatex"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const reportFile = "build.json"

// Service turns the page manifest into a finished output directory.
type Service struct {
	cfg      *config.Config
	renderer *renderer.Renderer
	bundler  *bundler.Bundler
	state    *buildState
	mu       sync.Mutex
}

// NewService constructs a Service instance.
func NewService(cfg *config.Config) *Service {
	bcfg := bundler.DefaultConfig(cfg.Root)
	bcfg.SourceDir = cfg.SourceDir
	bcfg.PublicPath = templatex.BaseHref(cfg.BaseURL)
	bcfg.Minify = *cfg.Minify
	bcfg.SourceMap = *cfg.SourceMap
	bcfg.Splitting = cfg.Splitting
	bcfg.Production = cfg.Production()

	return &Service{
		cfg:      cfg,
		renderer: renderer.New(),
		bundler:  bundler.New(bcfg),
		state:    newBuildState(),
	}
}

// Graph loads the manifest and derives the build graph without touching the output.
func (s *Service) Graph() (*graph.Graph, error) {
	m, err := manifest.Load(s.cfg.Abs(s.cfg.Manifest))
	if err != nil {
		return nil, err
	}
	return graph.Build(m, s.cfg.Layout())
}

// Build renders the whole site into a temporary directory and swaps it into place. On
// failure the previous output directory is left untouched.
func (s *Service) Build(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := zerolog.Ctx(ctx)
	started := time.Now()

	g, err := s.Graph()
	if err != nil {
		return nil, err
	}

	partialDirs := make([]string, 0, len(s.cfg.PartialDirs))
	for _, dir := range s.cfg.PartialDirs {
		partialDirs = append(partialDirs, s.cfg.Abs(dir))
	}
	engine, err := templatex.Load(partialDirs, s.cfg.TemplateExt, nil)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	finalDir := s.cfg.OutputPath()
	parent := filepath.Dir(finalDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("ensure output parent: %w", err)
	}

	tempDir, err := os.MkdirTemp(parent, ".__build-")
	if err != nil {
		return nil, fmt.Errorf("create temp output dir: %w", err)
	}
	if err := os.Chmod(tempDir, 0o755); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, fmt.Errorf("chmod temp output dir: %w", err)
	}
	cleanTemp := true
	defer func() {
		if cleanTemp {
			_ = os.RemoveAll(tempDir)
		}
	}()

	report := &Report{
		ID:        ulid.Make().String(),
		Mode:      s.cfg.Mode,
		StartedAt: started.UTC(),
		Entries:   g.Entries,
	}
	log.Info().Str("build", report.ID).Int("pages", len(g.Manifest.Pages)).Msg("building site")

	bundle, err := s.bundler.Build(ctx, g.EntryPoints(), tempDir)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	report.Warnings = bundle.Warnings()

	copied, err := fsutil.CopyTree(s.cfg.Abs(s.cfg.AssetsDir), filepath.Join(tempDir, filepath.FromSlash(s.cfg.AssetsOutput)))
	if err != nil {
		return nil, fmt.Errorf("copy assets: %w", err)
	}
	log.Debug().Int("files", len(copied)).Msg("copied assets")

	pages := make([]renderedPage, 0, len(g.Directives))
	for _, d := range g.Directives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pg, err := s.renderDirective(engine, d, bundle, report.ID)
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", d.Name, err)
		}
		if err := fsutil.WriteFile(filepath.Join(tempDir, filepath.FromSlash(pg.OutputPath)), pg.HTML); err != nil {
			return nil, fmt.Errorf("write %s: %w", pg.OutputPath, err)
		}
		log.Debug().Str("page", d.Name).Str("output", pg.OutputPath).Msg("rendered page")
		pages = append(pages, pg)
		report.Pages = append(report.Pages, pg.report())
	}

	if err := s.writeNotFoundPage(engine, g, bundle, report.ID, tempDir); err != nil {
		return nil, err
	}
	if err := s.writeSitemap(tempDir, pages, report.StartedAt.Format("2006-01-02")); err != nil {
		return nil, err
	}

	indexJSON, err := buildSearchIndex(pages)
	if err != nil {
		return nil, fmt.Errorf("build search index: %w", err)
	}
	if err := fsutil.WriteFile(filepath.Join(tempDir, searchIndexFile), indexJSON); err != nil {
		return nil, fmt.Errorf("write search index: %w", err)
	}

	if s.cfg.Precompress {
		if _, err := fsutil.Precompress(tempDir); err != nil {
			return nil, fmt.Errorf("precompress: %w", err)
		}
	}

	files, err := listFiles(tempDir)
	if err != nil {
		return nil, err
	}
	report.Files = append(files, reportFile)
	sort.Strings(report.Files)
	report.Duration = time.Since(started).Round(time.Millisecond).String()

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := fsutil.WriteFile(filepath.Join(tempDir, reportFile), reportJSON); err != nil {
		return nil, fmt.Errorf("write build report: %w", err)
	}

	if err := swapDir(tempDir, finalDir); err != nil {
		return nil, err
	}
	cleanTemp = false

	s.state.Update(report, g)
	log.Info().Str("build", report.ID).Str("output", finalDir).Str("duration", report.Duration).Msg("site built")
	return report, nil
}

// LastReport returns the report of the latest successful build.
func (s *Service) LastReport() (*Report, bool) {
	return s.state.Report()
}

// LastGraph returns the graph of the latest successful build.
func (s *Service) LastGraph() (*graph.Graph, bool) {
	return s.state.Graph()
}

// OutputDir returns the directory served to clients.
func (s *Service) OutputDir() string {
	return s.cfg.OutputPath()
}

// SourceRoots lists the directories whose changes require a rebuild.
func (s *Service) SourceRoots() []string {
	return []string{s.cfg.Abs(s.cfg.SourceDir), s.cfg.Abs(s.cfg.Manifest)}
}

func swapDir(tempDir, finalDir string) error {
	backupDir := finalDir + ".old"
	if err := os.RemoveAll(backupDir); err != nil {
		return fmt.Errorf("clean backup dir: %w", err)
	}
	if err := os.Rename(finalDir, backupDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("rotate old output: %w", err)
	}
	if err := os.Rename(tempDir, finalDir); err != nil {
		_ = os.Rename(backupDir, finalDir)
		return fmt.Errorf("activate new output: %w", err)
	}
	_ = os.RemoveAll(backupDir)
	return nil
}

func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}
