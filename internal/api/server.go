// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api is the thin HTTP request/response layer: JSON framing,
// routing, the admin config endpoint, the healthcheck, and request
// logging. It validates shape and dispatches to the mode gate; it does
// not know about filter coalescing or upstream reconciliation.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	flerrors "github.com/crypto-pepe/firewall-executor/internal/errors"
	"github.com/crypto-pepe/firewall-executor/internal/executor"
	"github.com/crypto-pepe/firewall-executor/internal/logging"
	"github.com/crypto-pepe/firewall-executor/internal/modegate"
)

// ServerConfig holds the HTTP listener's resource limits.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
}

// DefaultServerConfig returns the listener limits used unless overridden.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
		MaxBodyBytes:      1 << 20,
	}
}

// Server handles the four control-plane HTTP endpoints.
type Server struct {
	gate    *modegate.Gate
	logging *logging.Handle
	logger  zerolog.Logger
	cfg     *ServerConfig
	healthy atomic.Bool

	mux *http.ServeMux
}

// ServerOptions holds the Server's dependencies.
type ServerOptions struct {
	Gate    *modegate.Gate
	Logging *logging.Handle
	Config  *ServerConfig
}

// NewServer wires the four endpoints onto a fresh mux.
func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultServerConfig()
	}

	s := &Server{
		gate:    opts.Gate,
		logging: opts.Logging,
		logger:  opts.Logging.Logger(),
		cfg:     cfg,
	}
	s.healthy.Store(true)
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthcheck", s.handleHealthcheck)
	mux.HandleFunc("POST /api/config", s.handleConfig)
	mux.HandleFunc("POST /api/bans", s.maxBody(s.handleBan))
	mux.HandleFunc("DELETE /api/bans", s.maxBody(s.handleUnban))
	mux.Handle("GET /metrics", promhttp.Handler())

	s.mux = mux
}

// Handler returns the full middleware chain: access log wraps the mux.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.mux)
}

// Start runs the HTTP server on addr until ctx is cancelled or it errors.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("api server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		event := s.logger.Info()
		if wrapped.statusCode >= 500 {
			event = s.logger.Error()
		} else if wrapped.statusCode >= 400 {
			event = s.logger.Warn()
		}
		event.Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", duration.Round(time.Millisecond)).
			Msg("request")
	})
}

// maxBody rejects a declared Content-Length above cfg.MaxBodyBytes with
// Overflow. A body without a declared length is cut off at that size by
// http.MaxBytesReader, and the handler reports the resulting decode error
// as BadRequest.
func (s *Server) maxBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > s.cfg.MaxBodyBytes {
			writeError(w, flerrors.New(flerrors.KindOverflow, "request body too large"))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		next(w, r)
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("hijack not supported")
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if !s.healthy.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type configRequest struct {
	DryRun   *bool   `json:"dry_run,omitempty"`
	LogLevel *string `json:"log_level,omitempty"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, flerrors.Wrap(err, flerrors.KindBadRequest, "malformed config body"))
		return
	}

	if req.LogLevel != nil {
		if err := s.logging.SetLevel(*req.LogLevel); err != nil {
			writeError(w, flerrors.Wrapf(err, flerrors.KindWrongLogLevel, "invalid log level %q", *req.LogLevel))
			return
		}
	}
	if req.DryRun != nil {
		s.gate.SetDryRun(*req.DryRun)
	}

	w.WriteHeader(http.StatusOK)
}

type targetJSON struct {
	IP        string  `json:"ip,omitempty"`
	UserAgent *string `json:"user_agent"`
}

type blockRequestJSON struct {
	Target targetJSON `json:"target"`
	Reason string     `json:"reason"`
	TTL    uint64     `json:"ttl"`
}

type unblockRequestJSON struct {
	Target targetJSON `json:"target"`
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	analyzerID := strings.TrimSpace(r.Header.Get("X-Analyzer-Id"))
	if analyzerID == "" {
		writeError(w, flerrors.New(flerrors.KindBadRequest, "empty analyzer-id"))
		return
	}

	var body blockRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, flerrors.Wrap(err, flerrors.KindBadRequest, "malformed ban body"))
		return
	}

	req := executor.BlockRequest{
		Target:     executor.Target{IP: body.Target.IP, UserAgent: body.Target.UserAgent},
		Reason:     body.Reason,
		TTLSeconds: body.TTL,
	}

	if err := s.gate.Ban(r.Context(), req, analyzerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	var body unblockRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, flerrors.Wrap(err, flerrors.KindBadRequest, "malformed unban body"))
		return
	}

	req := executor.UnblockRequest{
		Target: executor.Target{IP: body.Target.IP, UserAgent: body.Target.UserAgent},
	}

	if err := s.gate.Unban(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorDetails struct {
	Target string `json:"target,omitempty"`
	TTL    string `json:"ttl,omitempty"`
}

type errorResponse struct {
	Code    int           `json:"code"`
	Reason  string        `json:"reason"`
	Details *errorDetails `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := flerrors.GetKind(err)
	status := kind.HTTPStatus()

	body := errorResponse{
		Code:   status,
		Reason: err.Error(),
	}
	if attrs := flerrors.GetAttributes(err); len(attrs) > 0 {
		details := &errorDetails{}
		if v, ok := attrs["target"].(string); ok {
			details.Target = v
		}
		if v, ok := attrs["ttl"].(string); ok {
			details.TTL = v
		}
		body.Details = details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
