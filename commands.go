package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/iedon/sitepack/config"
	"github.com/iedon/sitepack/fsutil"
	"github.com/iedon/sitepack/logger"
	"github.com/iedon/sitepack/server"
	"github.com/iedon/sitepack/site"
	"github.com/rs/zerolog"
)

// Globals carries flags shared by every command.
type Globals struct {
	Config string
	Debug  bool
}

// BuildCmd runs a single build.
type BuildCmd struct {
	Production bool   `help:"Build in production mode (minified, no source maps)."`
	Output     string `help:"Override the output directory." type:"path"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := loadConfig(globals, func(cfg *config.Config) {
		if c.Production {
			productionMode(cfg)
		}
		if c.Output != "" {
			cfg.OutputDir = c.Output
		}
	})
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.LogLevel, globals.Debug)
	ctx = log.WithContext(ctx)

	report, err := site.NewService(cfg).Build(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("output", cfg.OutputPath()).Int("pages", len(report.Pages)).Int("files", len(report.Files)).Msg("build completed")
	return nil
}

// ServeCmd builds once and serves the output, optionally rebuilding on source changes.
type ServeCmd struct {
	Listen     string `help:"Override the listen address."`
	Watch      bool   `help:"Rebuild when sources change."`
	Production bool   `help:"Serve a production build."`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := loadConfig(globals, func(cfg *config.Config) {
		if c.Production {
			productionMode(cfg)
		}
		if c.Listen != "" {
			cfg.Listen = c.Listen
		}
	})
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.LogLevel, globals.Debug || !cfg.Production())
	ctx = log.WithContext(ctx)
	log.Info().Str("version", SERVER_SIGNATURE).Str("mode", cfg.Mode).Bool("watch", c.Watch).Msg("starting")

	svc := site.NewService(cfg)
	if c.Watch {
		go watchLoop(ctx, svc, cfg.WatchInterval)
	}

	srv := server.New(cfg, svc, log, SERVER_SIGNATURE)
	return srv.Start(ctx)
}

// GraphCmd prints the build graph without building.
type GraphCmd struct{}

func (c *GraphCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := loadConfig(globals, nil)
	if err != nil {
		return err
	}
	g, err := site.NewService(cfg).Graph()
	if err != nil {
		return err
	}
	return writeGraph(os.Stdout, g)
}

func writeGraph(w io.Writer, g any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}

func loadConfig(globals *Globals, override func(cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(globals.Config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if globals.Debug {
		cfg.LogLevel = "debug"
	}
	if override == nil {
		return cfg, nil
	}
	override(cfg)
	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func productionMode(cfg *config.Config) {
	cfg.Mode = config.ModeProduction
	cfg.Minify = nil
	cfg.SourceMap = nil
}

type rebuilder interface {
	Build(ctx context.Context) (*site.Report, error)
	SourceRoots() []string
}

// watchLoop polls the source fingerprint and rebuilds when it changes.
func watchLoop(ctx context.Context, svc rebuilder, interval time.Duration) {
	if interval <= 0 {
		return
	}
	log := zerolog.Ctx(ctx)

	last, err := fsutil.Fingerprint(svc.SourceRoots()...)
	if err != nil {
		log.Warn().Err(err).Msg("watch")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current, err := fsutil.Fingerprint(svc.SourceRoots()...)
			if err != nil {
				log.Warn().Err(err).Msg("watch")
				continue
			}
			if current == last {
				continue
			}
			last = current
			log.Info().Msg("sources changed, rebuilding")
			if _, err := svc.Build(ctx); err != nil {
				log.Error().Err(err).Msg("rebuild")
			}
		}
	}
}
