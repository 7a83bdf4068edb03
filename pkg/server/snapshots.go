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
	"strconv"

	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/serializer"
	"github.com/NVIDIA/cmts-monitor/pkg/snapshot"
)

// handleRecent handles GET /v1/snapshots/recent. The optional since query
// parameter drops captures older than the given epoch seconds.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	h, ok := s.loadRecent(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, errors.ErrCodeInvalidRequest,
				"since must be epoch seconds", false, map[string]any{"since": raw})
			return
		}
		h = h.Since(since)
	}

	s.respond(w, r, h)
}

// handleLatest handles GET /v1/snapshots/latest.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	h, ok := s.loadRecent(w, r)
	if !ok {
		return
	}

	latest := h.Latest()
	if latest == nil {
		WriteError(w, r, http.StatusNotFound, errors.ErrCodeNotFound,
			"no snapshots captured yet", false, nil)
		return
	}

	s.respond(w, r, snapshot.NewHistory(latest))
}

func (s *Server) loadRecent(w http.ResponseWriter, r *http.Request) (*snapshot.History, bool) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		WriteError(w, r, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed,
			"Method not allowed", false, map[string]any{"method": r.Method})
		return nil, false
	}
	if s.source == nil {
		WriteError(w, r, http.StatusServiceUnavailable, errors.ErrCodeUnavailable,
			"snapshot store is not configured", false, nil)
		return nil, false
	}

	h, err := s.source.LoadRecent(r.Context())
	if err != nil {
		slog.Error("failed to load recent view", "requestID", requestID(r), "error", err)
		WriteErrorFromErr(w, r, err, "failed to load recent view")
		return nil, false
	}
	return h, true
}

// respond writes h in the format named by the format query parameter,
// JSON by default.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, h *snapshot.History) {
	format := serializer.FormatJSON
	if raw := r.URL.Query().Get("format"); raw != "" {
		format = serializer.Format(raw)
		if format.IsUnknown() {
			WriteError(w, r, http.StatusBadRequest, errors.ErrCodeInvalidRequest,
				"unsupported format", false, map[string]any{
					"format":    raw,
					"supported": serializer.SupportedFormats(),
				})
			return
		}
	}

	serializer.Respond(w, http.StatusOK, format, h)
}
