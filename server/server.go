package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/iedon/sitepack/config"
	"github.com/iedon/sitepack/graph"
	"github.com/iedon/sitepack/site"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
)

// Site is the part of the site service the dev server depends on.
type Site interface {
	Build(ctx context.Context) (*site.Report, error)
	LastReport() (*site.Report, bool)
	LastGraph() (*graph.Graph, bool)
	ResolvePath(requestPath string) (string, error)
	NotFoundDocumentPath() string
}

// Server serves the built output and exposes build control endpoints.
type Server struct {
	cfg          *config.Config
	svc          Site
	logger       zerolog.Logger
	router       chi.Router
	serverHeader string
}

// New constructs a server instance.
func New(cfg *config.Config, svc Site, logger zerolog.Logger, serverHeader string) *Server {
	srv := &Server{cfg: cfg, svc: svc, logger: logger, serverHeader: strings.TrimSpace(serverHeader)}
	srv.routes()
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start builds the site once, then serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if _, err := s.svc.Build(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("initial build failed")
	}

	listener, err := s.listen(s.cfg.Listen)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return s.logger.WithContext(context.Background())
		},
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
		close(shutdownDone)
	}()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("serving site")
	serveErr := server.Serve(listener)
	if errors.Is(serveErr, http.ErrServerClosed) {
		<-shutdownDone
		return nil
	}
	return serveErr
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withServerHeader)
	r.Use(s.logRequests)
	r.Use(func(next http.Handler) http.Handler {
		return gzhttp.GzipHandler(next)
	})

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RebuildSecret != "" {
			r.Post("/rebuild", s.handleRebuild)
		}
		r.Get("/build", s.handleBuildReport)
		r.Get("/graph", s.handleGraph)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
	})
	r.Get("/*", s.handleStatic)
	r.Head("/*", s.handleStatic)

	s.router = r
}

func (s *Server) listen(address string) (net.Listener, error) {
	if after, ok := strings.CutPrefix(address, "unix:"); ok {
		_ = os.Remove(after)
		return net.Listen("unix", after)
	}
	return net.Listen("tcp", address)
}

func (s *Server) withServerHeader(next http.Handler) http.Handler {
	if s.serverHeader == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverHeader)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(s.logger.WithContext(r.Context())))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http")
	})
}
