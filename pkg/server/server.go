// Package server exposes the shelf tracker over HTTP: every POST /v1/run
// request streams its body through a fresh tracker and returns the answers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/shelfrank/pkg/command"
	"github.com/Sumatoshi-tech/shelfrank/pkg/engine"
	"github.com/Sumatoshi-tech/shelfrank/pkg/observability"
	"github.com/Sumatoshi-tech/shelfrank/pkg/render"
)

// Routes.
const (
	RunPath     = "/v1/run"
	HealthPath  = "/healthz"
	ReadyPath   = "/readyz"
	MetricsPath = "/metrics"

	runOperation           = "http.run"
	tracerName             = "shelfrank/server"
	defaultShutdownTimeout = 5 * time.Second
	defaultMaxBodyBytes    = 8 << 20
)

// ErrShuttingDown is reported by the readiness check while draining.
var ErrShuttingDown = errors.New("server is shutting down")

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps the request body; larger bodies get 413.
	MaxBodyBytes int64

	// MaxLineBytes and MaxCommands bound each command stream. Zero means
	// the command package defaults.
	MaxLineBytes int
	MaxCommands  int64
}

// Deps holds the collaborators shared by all requests.
type Deps struct {
	Runner *engine.Runner
	Logger *slog.Logger
	Tracer trace.Tracer

	// Metrics records RED metrics for /v1/run. Nil disables them.
	Metrics *observability.REDMetrics

	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler
}

// Server is the shelfrank HTTP server.
type Server struct {
	cfg      Config
	deps     Deps
	draining atomic.Bool
}

// ErrorResponse is the body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Line  int    `json:"line,omitempty"`
}

// New creates a Server. Missing dependencies fall back to no-op defaults.
func New(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}

	if deps.Runner == nil {
		deps.Runner = engine.NewRunner(engine.Config{Logger: deps.Logger, Tracer: deps.Tracer})
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	return &Server{cfg: cfg, deps: deps}
}

// Handler returns the routed, traced HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle(RunPath, observability.REDMiddleware(s.deps.Metrics, runOperation, http.HandlerFunc(s.handleRun)))
	mux.Handle(HealthPath, observability.HealthHandler())
	mux.Handle(ReadyPath, observability.ReadyHandler(s.readyCheck))

	if s.deps.MetricsHandler != nil {
		mux.Handle(MetricsPath, s.deps.MetricsHandler)
	}

	return observability.HTTPMiddleware(s.deps.Tracer, mux)
}

func (s *Server) readyCheck(context.Context) error {
	if s.draining.Load() {
		return ErrShuttingDown
	}

	return nil
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled, then marks
// the server unready and shuts down gracefully within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- srv.Serve(listener)
	}()

	s.deps.Logger.InfoContext(ctx, "server listening", "addr", listener.Addr().String())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.draining.Store(true)
	s.deps.Logger.InfoContext(ctx, "server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	return nil
}

func (s *Server) handleRun(rw http.ResponseWriter, hr *http.Request) {
	if hr.Method != http.MethodPost {
		rw.Header().Set("Allow", http.MethodPost)
		writeJSON(hr.Context(), rw, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})

		return
	}

	body := http.MaxBytesReader(rw, hr.Body, s.cfg.MaxBodyBytes)

	answers, stats, err := s.run(hr.Context(), body, requestFormat(hr))
	if err != nil {
		status, resp := s.errorResponse(err)
		s.deps.Logger.DebugContext(hr.Context(), "run rejected", "status", status, "error", err)
		writeJSON(hr.Context(), rw, status, resp)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, render.Result{Answers: answers, Stats: &stats})
}

func (s *Server) run(ctx context.Context, body io.Reader, format string) ([]int64, engine.Stats, error) {
	src, err := command.NewSource(body, format,
		command.WithMaxCommands(s.cfg.MaxCommands),
		command.WithMaxLineSize(s.cfg.MaxLineBytes),
	)
	if err != nil {
		return nil, engine.Stats{}, err
	}

	return s.deps.Runner.Collect(ctx, src)
}

func (s *Server) errorResponse(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		resp.Error = fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)

		return http.StatusRequestEntityTooLarge, resp
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, resp
	}

	if line, ok := command.LineOf(err); ok {
		resp.Line = line
	}

	return http.StatusUnprocessableEntity, resp
}

// requestFormat picks the JSON script decoder for JSON bodies and the text
// protocol otherwise.
func requestFormat(hr *http.Request) string {
	mediaType, _, err := mime.ParseMediaType(hr.Header.Get("Content-Type"))
	if err == nil && mediaType == "application/json" {
		return command.FormatJSON
	}

	return command.FormatText
}

func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, value any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	err := json.NewEncoder(rw).Encode(value)
	if err != nil {
		slog.Default().ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}
