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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/snapshot"
)

// hub fans live payloads out to websocket subscribers. Each subscriber
// holds at most one pending payload; a newer payload replaces it.
type hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan []byte]struct{})}
}

func (h *hub) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// broadcast delivers payload to every subscriber without blocking.
func (h *hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- payload:
		default:
		}
	}
}

// liveWatcher reports rewrites of one file. The parent directory is
// watched so atomic rename-over writes are seen.
type liveWatcher struct {
	path     string
	fw       *fsnotify.Watcher
	debounce time.Duration
}

func newLiveWatcher(path string) (*liveWatcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create live directory %s: %w", dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &liveWatcher{
		path:     filepath.Clean(path),
		fw:       fw,
		debounce: defaults.LiveDebounce,
	}, nil
}

// run calls reload once per burst of writes to the watched file until ctx
// is done.
func (w *liveWatcher) run(ctx context.Context, reload func(context.Context)) error {
	defer w.fw.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("live watcher error", "path", w.path, "error", err)
		case <-fire:
			fire = nil
			reload(ctx)
		}
	}
}

// latestPayload encodes the newest snapshot of the recent view in the
// store layout. It reports false when the view is empty.
func (s *Server) latestPayload(ctx context.Context) ([]byte, bool, error) {
	if s.source == nil {
		return nil, false, fmt.Errorf("no snapshot source configured")
	}
	h, err := s.source.LoadRecent(ctx)
	if err != nil {
		return nil, false, err
	}
	latest := h.Latest()
	if latest == nil {
		return nil, false, nil
	}
	b, err := json.Marshal(snapshot.NewHistory(latest))
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode latest snapshot: %w", err)
	}
	return b, true, nil
}

// reloadLive broadcasts the latest snapshot to live subscribers.
func (s *Server) reloadLive(ctx context.Context) {
	payload, ok, err := s.latestPayload(ctx)
	if err != nil {
		liveUpdates.WithLabelValues("error").Inc()
		slog.Warn("live reload failed", "path", s.livePath, "error", err)
		return
	}
	if !ok {
		liveUpdates.WithLabelValues("empty").Inc()
		return
	}
	liveUpdates.WithLabelValues("ok").Inc()
	slog.Debug("live update", "subscribers", s.hub.len(), "bytes", len(payload))
	s.hub.broadcast(payload)
}

// handleLive handles GET /v1/live. The latest snapshot is sent on connect
// and again after every rewrite of the recent view.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("live upgrade failed", "requestID", requestID(r), "error", err)
		return
	}
	defer conn.Close()

	streamConnections.WithLabelValues("live").Inc()
	defer streamConnections.WithLabelValues("live").Dec()

	sub := s.hub.subscribe()
	defer s.hub.unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(defaults.StreamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(defaults.StreamPongWait))
	})
	go drain(conn, cancel)

	if payload, ok, err := s.latestPayload(ctx); err != nil {
		slog.Warn("failed to load latest snapshot", "requestID", requestID(r), "error", err)
	} else if ok {
		if err := writeFrame(conn, websocket.TextMessage, payload); err != nil {
			return
		}
		streamFrames.WithLabelValues("live").Inc()
	}

	ticker := time.NewTicker(defaults.StreamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeStream(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case payload := <-sub:
			if err := writeFrame(conn, websocket.TextMessage, payload); err != nil {
				slog.Debug("live write failed", "requestID", requestID(r), "error", err)
				return
			}
			streamFrames.WithLabelValues("live").Inc()
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(defaults.StreamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// drain reads and discards client messages so control frames are
// processed, and calls cancel once the connection fails or closes.
func drain(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, messageType int, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(defaults.StreamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, payload)
}

func closeStream(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(defaults.StreamWriteTimeout))
}
