// Package api is the relay's HTTP surface (spec.md §6): the federation
// endpoints (inbox, actor, discovery), the operator-facing index page and
// healthz, and the bearer-token admin API. It owns no relay state itself;
// every handler reads and writes through pkg/repo and pkg/jobs.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cuemby/relay/pkg/health"
	"github.com/cuemby/relay/pkg/jobs"
	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Identity is the relay's own actor identity, needed to answer GET /actor,
// WebFinger, and NodeInfo without round-tripping through the resolver.
type Identity struct {
	ActorIRI     string
	InboxIRI     string
	PublicKeyID  string
	PublicKeyPEM string
}

// Config configures a Server.
type Config struct {
	Hostname string
	HTTPS    bool
	Identity Identity
	APIToken string

	Repo   *repo.Repo
	Jobs   *jobs.Engine
	Health *health.Registry

	// Inbox mounts at POST /inbox; built by pkg/inbox and handed in so
	// this package stays ignorant of signature verification and dedup.
	Inbox http.Handler

	LocalBlurb           string
	FooterBlurb          string
	SourceRepo           string
	RepositoryCommitBase string
	Version              string

	StartedAt time.Time
}

// Server is the relay's HTTP entry point.
type Server struct {
	cfg    Config
	router *chi.Mux
	logger zerolog.Logger
}

// New builds a Server and its route table from cfg.
func New(cfg Config) *Server {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	s := &Server{
		cfg:    cfg,
		logger: log.WithComponent("httpapi"),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root http.Handler, useful for tests and for
// embedding behind an additional reverse proxy.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealthz)

	r.Post("/inbox", s.cfg.Inbox.ServeHTTP)
	r.Get("/actor", s.handleActor)
	r.Get("/media/{uuid}", s.handleMedia)

	r.Get("/nodeinfo/2.0", s.handleNodeInfo20)
	r.Get("/.well-known/nodeinfo", s.handleNodeInfoDiscovery)
	r.Get("/.well-known/webfinger", s.handleWebFinger)

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(s.requireBearerToken)
		r.Get("/blocks", s.handleListBlocks)
		r.Post("/blocks", s.handleMutateBlocks)
		r.Get("/allows", s.handleListAllows)
		r.Post("/allows", s.handleMutateAllows)
		r.Get("/listeners", s.handleListListeners)
		r.Post("/listeners", s.handleMutateListeners)
	})

	return r
}

// Start runs the HTTP server on addr until ctx is cancelled, then shuts
// down gracefully. Mirrors the teacher's http.Server construction
// (bounded Read/Write/Idle timeouts) with a context-driven shutdown in
// place of a bare blocking ListenAndServe.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.logger.Error().Err(err).Msg("http server shutdown")
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
