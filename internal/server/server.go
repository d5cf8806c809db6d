/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the read-only status surface over HTTP: health,
// the controller snapshot, buffered logs, recent play history and
// Prometheus metrics. Show control stays on the TCP command socket;
// nothing served here mutates playback.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/showctl/cueplay/internal/config"
	"github.com/showctl/cueplay/internal/controller"
	"github.com/showctl/cueplay/internal/history"
	"github.com/showctl/cueplay/internal/logbuffer"
	"github.com/showctl/cueplay/internal/telemetry"
	"github.com/showctl/cueplay/internal/version"
)

// Server bundles the HTTP status listener and its dependencies.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	controller *controller.Controller
	history    *history.Service
	logBuffer  *logbuffer.Buffer
}

// New constructs the status server. The history service may be nil when
// recording is disabled; its route is simply not registered then.
func New(cfg *config.Config, ctrl *controller.Controller, hist *history.Service, logBuf *logbuffer.Buffer, logger zerolog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("cueplay-status"))
	router.Use(telemetry.MetricsMiddleware)

	srv := &Server{
		cfg:        cfg,
		logger:     logger,
		router:     router,
		controller: ctrl,
		history:    hist,
		logBuffer:  logBuf,
	}

	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:    cfg.StatusBind,
		Handler: srv.router,
		// Every route returns a small JSON or text document, so unlike a
		// streaming server full read and write deadlines are safe here.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": version.Version,
			"commit":  version.Commit,
		})
	})

	// Ready once the show-control socket is bound and accepting commands.
	s.router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		st := s.controller.Status()
		if st.ListenAddr == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ready": true, "command_addr": st.ListenAddr})
	})

	s.router.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.controller.Status())
	})

	s.router.Get("/logs", s.handleLogs)

	if s.history != nil {
		s.router.Get("/history", s.handleHistory)
	}

	s.router.Handle("/metrics", telemetry.Handler())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logBuffer == nil {
		http.Error(w, "log buffer disabled", http.StatusNotFound)
		return
	}

	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Limit:      100,
		Descending: true,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		params.Limit = limit
	}

	entries := s.logBuffer.Query(params)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query play history")
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// HTTPServer exposes the underlying net/http server for serve and shutdown.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
