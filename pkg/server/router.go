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
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NVIDIA/cmts-monitor/pkg/serializer"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Default handler
	mux.HandleFunc("/", s.handleDefault)

	// System endpoints (no rate limiting)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	// API endpoints with middleware
	mux.HandleFunc("/v1/snapshots/recent", s.withMiddleware(s.handleRecent))
	mux.HandleFunc("/v1/snapshots/latest", s.withMiddleware(s.handleLatest))
	mux.HandleFunc("/v1/history", s.withMiddleware(s.handleHistory))
	mux.HandleFunc("/v1/live", s.withMiddleware(s.handleLive))

	for path, h := range s.config.Handlers {
		mux.HandleFunc(path, s.withMiddleware(h))
	}

	return mux
}

func (s *Server) routes() []string {
	routes := []string{
		"GET /v1/snapshots/recent",
		"GET /v1/snapshots/latest",
		"GET /v1/history (websocket)",
		"GET /v1/live (websocket)",
		"GET /health",
		"GET /ready",
		"GET /metrics",
	}
	for path := range s.config.Handlers {
		routes = append(routes, path)
	}
	slices.Sort(routes)
	return routes
}

func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	slog.Debug("handling default route",
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
	)

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	resp := struct {
		Name      string   `json:"name"`
		Version   string   `json:"version"`
		Ready     bool     `json:"ready"`
		Timestamp string   `json:"timestamp"`
		Routes    []string `json:"routes"`
	}{
		Name:      s.config.Name,
		Version:   s.config.Version,
		Ready:     s.isReady(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Routes:    s.routes(),
	}

	serializer.RespondJSON(w, http.StatusOK, resp)
}
