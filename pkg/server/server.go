// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sync"
	"syscall"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/cmts-monitor/pkg/history"
	"github.com/NVIDIA/cmts-monitor/pkg/snapshot"
)

// SnapshotSource provides the recent view served by the snapshot endpoints.
type SnapshotSource interface {
	LoadRecent(ctx context.Context) (*snapshot.History, error)
}

// HistorySource streams archived captures, newest first.
type HistorySource interface {
	UpTo(ctx context.Context, kind history.Kind, days int) (iter.Seq[*history.Batch], error)
}

// Option configures a Server.
type Option func(*Server)

// WithConfig replaces the server configuration.
func WithConfig(cfg *Config) Option {
	return func(s *Server) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithName sets the server name.
func WithName(name string) Option {
	return func(s *Server) {
		s.config.Name = name
	}
}

// WithVersion sets the server version.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.config.Version = version
	}
}

// WithHandler registers an additional handler behind the middleware chain.
func WithHandler(path string, handler http.HandlerFunc) Option {
	return func(s *Server) {
		if s.config.Handlers == nil {
			s.config.Handlers = make(map[string]http.HandlerFunc)
		}
		s.config.Handlers[path] = handler
	}
}

// WithSource sets the recent view source.
func WithSource(src SnapshotSource) Option {
	return func(s *Server) {
		s.source = src
	}
}

// WithHistory sets the archive source for the history stream.
func WithHistory(src HistorySource) Option {
	return func(s *Server) {
		s.history = src
	}
}

// WithLiveFile enables live push: the latest snapshot is broadcast to
// /v1/live subscribers whenever path is rewritten.
func WithLiveFile(path string) Option {
	return func(s *Server) {
		s.livePath = filepath.Clean(path)
	}
}

// Server represents the HTTP server
type Server struct {
	config      *Config
	httpServer  *http.Server
	rateLimiter *rate.Limiter
	upgrader    websocket.Upgrader

	source   SnapshotSource
	history  HistorySource
	livePath string
	hub      *hub

	// baseCtx parents every request context. Shutdown cancels it so that
	// hijacked websocket connections are released.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu    sync.RWMutex
	ready bool
}

// New creates a new server instance
func New(opts ...Option) *Server {
	s := &Server{
		config: NewConfig(),
		hub:    newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.rateLimiter = rate.NewLimiter(s.config.RateLimit, s.config.RateLimitBurst)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	s.httpServer = &http.Server{
		Addr:              s.config.addr(),
		Handler:           s.setupRoutes(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return s.baseCtx
		},
	}

	return s
}

// Handler returns the routed handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// checkOrigin applies Config.AllowedOrigins to websocket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.config.AllowedOrigins) == 0 {
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
	return slices.Contains(s.config.AllowedOrigins, "*") ||
		slices.Contains(s.config.AllowedOrigins, origin)
}

// setReady marks the server as ready to serve traffic
func (s *Server) setReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or the server fails.
// The live watcher and the systemd watchdog run alongside the listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var watcher *liveWatcher
	if s.livePath != "" {
		w, err := newLiveWatcher(s.livePath)
		if err != nil {
			_ = ln.Close()
			return err
		}
		watcher = w
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.setReady(true)
	notifyReady()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if watcher != nil {
		g.Go(func() error {
			return watcher.run(gctx, s.reloadLive)
		})
	}

	g.Go(func() error {
		return runWatchdog(gctx, s.isReady)
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown(context.Background())
	})

	slog.Info("server started",
		"name", s.config.Name,
		"version", s.config.Version,
		"address", ln.Addr().String(),
		"live", s.livePath)

	return g.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.setReady(false)
	notifyStopping()
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down server", "timeout", s.config.ShutdownTimeout)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// Run starts the server with graceful shutdown on SIGINT or SIGTERM.
func Run(ctx context.Context, opts ...Option) error {
	s := New(opts...)

	slog.Info("server config",
		"address", s.httpServer.Addr,
		"rateLimit", float64(s.config.RateLimit),
		"rateLimitBurst", s.config.RateLimitBurst,
		"readTimeout", s.config.ReadTimeout,
		"writeTimeout", s.config.WriteTimeout,
		"idleTimeout", s.config.IdleTimeout,
		"shutdownTimeout", s.config.ShutdownTimeout,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
