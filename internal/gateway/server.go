// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package gateway exposes the HTTP/JSON transport over the auth service and
// membership coordinator. It is a thin layer: requests are decoded into
// service calls and results encoded back; all invariants live below it.
package gateway

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/auth"
	"github.com/cardroom/cardroom/internal/game"
	"github.com/cardroom/cardroom/internal/observability"
)

// Server serves the Cardroom HTTP API.
type Server struct {
	addr        string
	authSvc     *auth.Service
	coordinator *game.Coordinator
	directory   game.Directory
	metrics     *observability.Metrics

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a new API server. metrics may be nil when the
// observability endpoint is disabled.
func NewServer(addr string, authSvc *auth.Service, coordinator *game.Coordinator, directory game.Directory, metrics *observability.Metrics) (*Server, error) {
	if authSvc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if coordinator == nil {
		return nil, oops.Errorf("membership coordinator is required")
	}
	if directory == nil {
		return nil, oops.Errorf("game directory is required")
	}
	return &Server{
		addr:        addr,
		authSvc:     authSvc,
		coordinator: coordinator,
		directory:   directory,
		metrics:     metrics,
	}, nil
}

// Router assembles the API routes. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.countRequests)

	api := r.PathPrefix("/api").Subrouter()

	// Public routes
	api.HandleFunc("/users", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleLogin).Methods(http.MethodPost)

	// Session-scoped routes
	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireSession)
	authed.HandleFunc("/session", s.handleLogout).Methods(http.MethodDelete)
	authed.HandleFunc("/users/me", s.handleMe).Methods(http.MethodGet)
	authed.HandleFunc("/users/me/game", s.handleMembership).Methods(http.MethodPatch)
	authed.HandleFunc("/games", s.handleListGames).Methods(http.MethodGet)
	authed.HandleFunc("/games", s.handleCreateGame).Methods(http.MethodPost)
	authed.HandleFunc("/games/{id}", s.handleGetGame).Methods(http.MethodGet)
	authed.HandleFunc("/games/{id}", s.handleStartGame).Methods(http.MethodPatch)

	return r
}

// Start begins serving the API. It returns an error channel that receives
// any server failure after startup; the channel is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// statusRecorder captures the response status for the request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
