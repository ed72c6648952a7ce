// Package worker serves the design conversation over HTTP for voice and UI
// front ends.
package worker

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/designpartner/internal/config"
	"github.com/thebtf/designpartner/internal/export"
	"github.com/thebtf/designpartner/internal/orchestrator"
	"github.com/thebtf/designpartner/internal/session"
	"github.com/thebtf/designpartner/internal/worker/docs"
	"github.com/thebtf/designpartner/internal/worker/sse"
)

const (
	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout = 15 * time.Second
	// ReadHeaderTimeout guards against slow clients.
	ReadHeaderTimeout = 10 * time.Second
)

// Options wires a Service to its collaborators.
type Options struct {
	Version      string
	Config       *config.Config
	Sessions     *session.Manager
	Orchestrator *orchestrator.Orchestrator
	Exporter     *export.Exporter
	Curriculum   orchestrator.Curriculum
	Broadcaster  *sse.Broadcaster
	Metrics      *Metrics
}

// Service is the HTTP worker.
type Service struct {
	version        string
	config         *config.Config
	sessions       *session.Manager
	orchestrator   *orchestrator.Orchestrator
	exporter       *export.Exporter
	curriculum     orchestrator.Curriculum
	sseBroadcaster *sse.Broadcaster
	metrics        *Metrics
	router         *chi.Mux

	ready     atomic.Bool
	startTime time.Time
}

// NewService builds the worker and subscribes the SSE stream to session
// lifecycle events.
func NewService(opts Options) *Service {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = sse.NewBroadcaster()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(opts.Broadcaster)
	}

	s := &Service{
		version:        opts.Version,
		config:         opts.Config,
		sessions:       opts.Sessions,
		orchestrator:   opts.Orchestrator,
		exporter:       opts.Exporter,
		curriculum:     opts.Curriculum,
		sseBroadcaster: opts.Broadcaster,
		metrics:        opts.Metrics,
		router:         chi.NewRouter(),
		startTime:      time.Now(),
	}

	b := s.sseBroadcaster
	s.sessions.SetOnSessionSaved(b.Publish)
	s.sessions.SetOnSessionCreated(func(id string) {
		b.Broadcast(sse.Event{Type: sse.EventSessionCreated, SessionID: id})
	})
	s.sessions.SetOnSessionDeleted(func(id string) {
		b.Broadcast(sse.Event{Type: sse.EventSessionDeleted, SessionID: id})
	})

	if s.version != "" {
		docs.SwaggerInfo.Version = s.version
	}

	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)
	if len(s.config.CORSOrigins) > 0 {
		r.Use(cors(s.config.CORSOrigins))
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		r.Get("/api/events", s.sseBroadcaster.HandleSSE)
		r.Get("/api/curriculum", s.handleCurriculum)

		r.Route("/api/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/begin", s.handleBegin)
				r.Post("/turns", s.handleTurn)
				r.Post("/flush", s.handleFlush)
				r.Post("/coverage/{topic}/reset", s.handleResetTopic)
				r.Get("/documents/{version}", s.handleDocumentVersion)
				r.Get("/export", s.handleExport)
			})
		})
	})
}

// requireReady rejects API calls until the service is serving.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "service not ready")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func cors(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimSuffix(o, "/")] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Add("Vary", "Origin")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Addr returns the configured listen address.
func (s *Service) Addr() string {
	return net.JoinHostPort(s.config.WorkerHost, strconv.Itoa(s.config.WorkerPort))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
	srv.RegisterOnShutdown(s.sseBroadcaster.CloseAll)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.ready.Store(true)
		log.Info().Str("addr", ln.Addr().String()).Str("version", s.version).Msg("Worker listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.ready.Store(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info().Msg("Worker stopped")
		return nil
	})
	return g.Wait()
}
