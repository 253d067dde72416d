// Package api serves the mailmerge HTTP interface: list validation, draft
// generation, personalization and sending.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/mailmerge/internal/metrics"
	"github.com/dmitrymomot/mailmerge/pkg/binder"
	"github.com/dmitrymomot/mailmerge/pkg/dispatch"
	"github.com/dmitrymomot/mailmerge/pkg/draft"
	"github.com/dmitrymomot/mailmerge/pkg/logger"
	"github.com/dmitrymomot/mailmerge/pkg/personalize"
)

const (
	defaultMaxUploadSize   = 10 << 20 // 10MB
	defaultShutdownTimeout = 30 * time.Second
)

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	tracker         *dispatch.Tracker
	generator       draft.Generator
	engine          *binder.Engine
	metrics         *metrics.Metrics
	gatherer        prometheus.Gatherer
	logger          *slog.Logger
	checks          Checks
	popts           []personalize.Option
	maxUploadSize   int64
	checkTimeout    time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithTracker sets the tracker used by /send-emails.
func WithTracker(t *dispatch.Tracker) Option {
	return func(s *Server) { s.tracker = t }
}

// WithGenerator enables /generate-email.
func WithGenerator(g draft.Generator) Option {
	return func(s *Server) { s.generator = g }
}

// WithEngine sets the template engine used by /personalize-emails.
func WithEngine(e *binder.Engine) Option {
	return func(s *Server) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithPersonalizeOptions passes options to personalize.Personalize.
func WithPersonalizeOptions(opts ...personalize.Option) Option {
	return func(s *Server) { s.popts = append(s.popts, opts...) }
}

// WithMetrics records request metrics and serves gatherer at /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithChecks sets the readiness checks served at /readyz.
func WithChecks(c Checks) Option {
	return func(s *Server) { s.checks = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxUploadSize limits request bodies.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadSize = n
		}
	}
}

// WithTimeouts sets the server read and write timeouts. Zero disables one.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		engine:          binder.NewEngine(),
		logger:          logger.NewNope(),
		maxUploadSize:   defaultMaxUploadSize,
		checkTimeout:    defaultCheckTimeout,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.instrument)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.liveness)
	r.Get("/readyz", s.readiness)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.limitBody)
		r.Post("/validate-csv", s.validateCSV)
		r.Post("/generate-email", s.generateEmail)
		r.Post("/personalize-emails", s.personalizeEmails)
		r.Post("/send-emails", s.sendEmails)
	})

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown completed with errors", slog.String("error", err.Error()))
		return err
	}

	s.logger.Info("shutdown completed")
	return nil
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
