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
	"log/slog"
	"net/http"
	"time"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/serializer"
)

// HealthResponse reports liveness or readiness. Readiness also describes
// the recent view the snapshot endpoints serve.
type HealthResponse struct {
	Status    string    `json:"status" yaml:"status"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Reason    string    `json:"reason,omitempty" yaml:"reason,omitempty"`

	Captures      int   `json:"captures,omitempty" yaml:"captures,omitempty"`
	LatestCapture int64 `json:"latestCapture,omitempty" yaml:"latestCapture,omitempty"`
	LiveClients   int   `json:"liveClients,omitempty" yaml:"liveClients,omitempty"`
}

// handleHealth handles GET /health. It never touches the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	serializer.RespondJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleReady handles GET /ready. The server is ready once it is serving
// and, when a snapshot source is configured, the recent view can be read.
// An empty view is ready: the first ingest has not run yet.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{Timestamp: time.Now()}
	if !s.isReady() {
		resp.Status = "not_ready"
		resp.Reason = "service is initializing"
		serializer.RespondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	if s.source != nil {
		ctx, cancel := context.WithTimeout(r.Context(), defaults.ReadyCheckTimeout)
		defer cancel()

		h, err := s.source.LoadRecent(ctx)
		if err != nil {
			slog.Warn("readiness check failed", "requestID", requestID(r), "error", err)
			resp.Status = "not_ready"
			resp.Reason = "recent view unreadable"
			serializer.RespondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Captures = h.Len()
		if latest := h.Latest(); latest != nil {
			resp.LatestCapture = latest.CaptureTime
		}
	}

	resp.Status = "ready"
	resp.LiveClients = s.hub.len()
	serializer.RespondJSON(w, http.StatusOK, resp)
}
