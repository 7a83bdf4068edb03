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
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/history"
)

// terminatorID marks the final frame of a history stream.
const terminatorID = -1

// HistoryRequest is the first message a client sends on /v1/history.
type HistoryRequest struct {
	Days int    `json:"days"`
	Kind string `json:"kind,omitempty"`
}

// HistoryFrame is one message of a history stream.
type HistoryFrame struct {
	ID    int    `json:"id"`
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// handleHistory handles GET /v1/history. After the client's request
// message, captures younger than the requested number of days are streamed
// newest first, one frame per archive member, followed by a terminator
// frame with id -1.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		WriteError(w, r, http.StatusServiceUnavailable, errors.ErrCodeUnavailable,
			"history is not configured", false, nil)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("history upgrade failed", "requestID", requestID(r), "error", err)
		return
	}
	defer conn.Close()

	streamConnections.WithLabelValues("history").Inc()
	defer streamConnections.WithLabelValues("history").Dec()

	id := requestID(r)

	var req HistoryRequest
	_ = conn.SetReadDeadline(time.Now().Add(defaults.StreamPongWait))
	if err := conn.ReadJSON(&req); err != nil {
		slog.Debug("history request read failed", "requestID", id, "error", err)
		finishHistory(conn, "invalid history request: "+err.Error())
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	kind, err := history.ParseKind(req.Kind)
	if err != nil {
		finishHistory(conn, err.Error())
		return
	}
	if req.Days < 1 || req.Days > defaults.HistoryMaxDays {
		finishHistory(conn, errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"days out of range", map[string]any{"days": req.Days, "max": defaults.HistoryMaxDays}).Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go drain(conn, cancel)

	start := time.Now()
	seq, err := s.history.UpTo(ctx, kind, req.Days)
	if err != nil {
		slog.Warn("history scan failed", "requestID", id, "error", err)
		finishHistory(conn, err.Error())
		return
	}

	sent := 0
	for b := range seq {
		if err := writeJSONFrame(conn, HistoryFrame{ID: sent, Data: b.Data}); err != nil {
			slog.Debug("history write failed", "requestID", id, "frame", sent, "error", err)
			return
		}
		streamFrames.WithLabelValues("history").Inc()
		sent++
	}
	if ctx.Err() != nil {
		slog.Debug("history stream canceled", "requestID", id, "frames", sent)
		return
	}

	finishHistory(conn, "")

	slog.Info("history streamed",
		"requestID", id,
		"kind", kind,
		"days", req.Days,
		"frames", sent,
		"duration", time.Since(start).String())
}

// finishHistory sends the terminator frame, carrying msg when non-empty,
// and closes the stream.
func finishHistory(conn *websocket.Conn, msg string) {
	if err := writeJSONFrame(conn, HistoryFrame{ID: terminatorID, Data: []any{}, Error: msg}); err != nil {
		return
	}
	streamFrames.WithLabelValues("history").Inc()
	closeStream(conn, websocket.CloseNormalClosure, "")
}

func writeJSONFrame(conn *websocket.Conn, frame HistoryFrame) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return writeFrame(conn, websocket.TextMessage, b)
}
