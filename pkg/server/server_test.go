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
	"io"
	"iter"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/history"
	"github.com/NVIDIA/cmts-monitor/pkg/record"
	"github.com/NVIDIA/cmts-monitor/pkg/snapshot"
	"github.com/NVIDIA/cmts-monitor/pkg/store"
)

func capture(t *testing.T, ts int64) *snapshot.Snapshot {
	t.Helper()
	rs := record.NewRecordSet("MAC Address", "Room", "MAC", "Online", "Us Bytes", "Ds Bytes")
	require.NoError(t, rs.Append(record.Record{
		"MAC Address": record.Str("0011.2233.4455"),
		"Room":        record.Int(101),
		"MAC":         record.Str("online"),
		"Online":      record.Str("2d03h"),
		"Us Bytes":    record.Int(1024),
		"Ds Bytes":    record.Int(2048),
	}))
	return snapshot.Assemble(rs, nil, ts)
}

type staticSource struct {
	h   *snapshot.History
	err error
}

func (s staticSource) LoadRecent(context.Context) (*snapshot.History, error) {
	return s.h, s.err
}

type failingHistory struct{}

func (failingHistory) UpTo(context.Context, history.Kind, int) (iter.Seq[*history.Batch], error) {
	return nil, errors.New(errors.ErrCodeArchiveRead, "archive directory unavailable")
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(base, path string) string {
	return "ws" + strings.TrimPrefix(base, "http") + path
}

type frame struct {
	ID    int             `json:"id"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func readFrames(t *testing.T, conn *websocket.Conn) []frame {
	t.Helper()
	var out []frame
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		out = append(out, f)
		if f.ID == terminatorID {
			return out
		}
	}
}

func TestNew(t *testing.T) {
	s := New(WithName("test"), WithVersion("1.2.3"))
	require.NotNil(t, s)
	assert.Equal(t, "test", s.config.Name)
	assert.Equal(t, "1.2.3", s.config.Version)
	assert.NotNil(t, s.rateLimiter)
	assert.NotNil(t, s.httpServer)
	assert.False(t, s.isReady())
}

func TestWithConfig(t *testing.T) {
	cfg := NewConfig()
	cfg.Port = 9999
	cfg.Name = "custom"

	s := New(WithConfig(cfg))
	assert.Equal(t, ":9999", s.httpServer.Addr)
	assert.Equal(t, "custom", s.config.Name)

	s = New(WithConfig(nil))
	assert.NotNil(t, s.config)
}

func TestWithHandler(t *testing.T) {
	ts := newTestServer(t, WithHandler("/custom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	resp, err := http.Get(ts.URL + "/custom")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
}

func TestReadyEndpoint(t *testing.T) {
	s := New()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.setReady(true)
	resp, err = http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyEndpoint_RecentView(t *testing.T) {
	tests := []struct {
		name       string
		source     SnapshotSource
		wantStatus int
		want       HealthResponse
	}{
		{
			name:       "populated view",
			source:     staticSource{h: snapshot.NewHistory(capture(t, 100), capture(t, 300))},
			wantStatus: http.StatusOK,
			want:       HealthResponse{Status: "ready", Captures: 2, LatestCapture: 300},
		},
		{
			name:       "empty view",
			source:     staticSource{h: snapshot.NewHistory()},
			wantStatus: http.StatusOK,
			want:       HealthResponse{Status: "ready"},
		},
		{
			name:       "unreadable view",
			source:     staticSource{err: errors.New(errors.ErrCodeInternal, "decode failed")},
			wantStatus: http.StatusServiceUnavailable,
			want:       HealthResponse{Status: "not_ready", Reason: "recent view unreadable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(WithSource(tt.source))
			s.setReady(true)
			ts := httptest.NewServer(s.Handler())
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/ready")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var got HealthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			got.Timestamp = time.Time{}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultRootHandler(t *testing.T) {
	ts := newTestServer(t, WithName("cmtsmon"), WithVersion("v0.1.0"))

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Name    string   `json:"name"`
		Version string   `json:"version"`
		Routes  []string `json:"routes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "cmtsmon", body.Name)
	assert.Equal(t, "v0.1.0", body.Version)
	assert.Contains(t, body.Routes, "GET /v1/snapshots/recent")

	resp, err = http.Get(ts.URL + "/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, WithSource(staticSource{h: snapshot.NewHistory()}))

	resp, err := http.Get(ts.URL + "/v1/snapshots/recent")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, readAll(t, resp), "cmtsmon_http_requests_total")
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRecentEndpoint(t *testing.T) {
	h := snapshot.NewHistory(capture(t, 100), capture(t, 200), capture(t, 300))
	ts := newTestServer(t, WithSource(staticSource{h: h}))

	tests := []struct {
		name   string
		query  string
		status int
		keys   []string
	}{
		{name: "all", query: "", status: http.StatusOK, keys: []string{"100", "200", "300"}},
		{name: "since", query: "?since=200", status: http.StatusOK, keys: []string{"200", "300"}},
		{name: "bad since", query: "?since=yesterday", status: http.StatusBadRequest},
		{name: "bad format", query: "?format=xml", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/v1/snapshots/recent" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				var e ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
				assert.Equal(t, string(errors.ErrCodeInvalidRequest), e.Code)
				return
			}

			var body map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			var keys []string
			for k := range body {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.keys, keys)
		})
	}
}

func TestRecentEndpoint_Formats(t *testing.T) {
	ts := newTestServer(t, WithSource(staticSource{h: snapshot.NewHistory(capture(t, 100))}))

	resp, err := http.Get(ts.URL + "/v1/snapshots/recent?format=yaml")
	require.NoError(t, err)
	body := readAll(t, resp)
	resp.Body.Close()
	assert.Equal(t, "application/x-yaml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "\"100\":")

	resp, err = http.Get(ts.URL + "/v1/snapshots/recent?format=table")
	require.NoError(t, err)
	body = readAll(t, resp)
	resp.Body.Close()
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.Contains(t, body, "CAPTURE TIME")
	assert.Contains(t, body, "100")
}

func TestRecentEndpoint_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, WithSource(staticSource{h: snapshot.NewHistory()}))

	resp, err := http.Post(ts.URL+"/v1/snapshots/recent", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRecentEndpoint_SourceErrors(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/snapshots/recent")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ts = newTestServer(t, WithSource(staticSource{
		err: errors.New(errors.ErrCodeInternal, "decode failed"),
	}))
	resp, err = http.Get(ts.URL + "/v1/snapshots/recent")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestLatestEndpoint(t *testing.T) {
	ts := newTestServer(t, WithSource(staticSource{h: snapshot.NewHistory(capture(t, 100), capture(t, 300))}))

	resp, err := http.Get(ts.URL + "/v1/snapshots/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body, 1)
	assert.Contains(t, body, "300")
}

func TestLatestEndpoint_Empty(t *testing.T) {
	ts := newTestServer(t, WithSource(staticSource{h: snapshot.NewHistory()}))

	resp, err := http.Get(ts.URL + "/v1/snapshots/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var e ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, string(errors.ErrCodeNotFound), e.Code)
}

func TestRateLimiting(t *testing.T) {
	cfg := NewConfig()
	cfg.RateLimit = 1
	cfg.RateLimitBurst = 1
	ts := newTestServer(t, WithConfig(cfg), WithSource(staticSource{h: snapshot.NewHistory()}))

	resp, err := http.Get(ts.URL + "/v1/snapshots/recent")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/snapshots/recent")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestHistoryStream(t *testing.T) {
	now := time.Unix(1700000000, 0)
	hour := int64(time.Hour / time.Second)
	dir := t.TempDir()

	for _, group := range [][]int64{
		{now.Unix() - 72*hour},
		{now.Unix() - 2*hour, now.Unix() - hour},
	} {
		var snaps []*snapshot.Snapshot
		for _, ts := range group {
			snaps = append(snaps, capture(t, ts))
		}
		_, err := store.WriteArchive(context.Background(), dir, snapshot.NewHistory(snaps...))
		require.NoError(t, err)
	}

	reader := history.NewReader(dir, history.WithClock(func() time.Time { return now }))
	ts := newTestServer(t, WithHistory(reader))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/v1/history"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(HistoryRequest{Days: 2, Kind: "usage"}))
	frames := readFrames(t, conn)

	require.Len(t, frames, 3)
	for i, f := range frames[:2] {
		assert.Equal(t, i, f.ID)
		assert.Empty(t, f.Error)
	}

	// newest capture first
	var first, second map[string]map[string][]int64
	require.NoError(t, json.Unmarshal(frames[0].Data, &first))
	require.NoError(t, json.Unmarshal(frames[1].Data, &second))
	key := strconv.FormatInt(now.Unix()-hour, 10)
	require.Contains(t, first, key)
	assert.Equal(t, []int64{1024}, first[key]["Us Bytes"])
	assert.Equal(t, []int64{2048}, first[key]["Ds Bytes"])
	assert.Contains(t, second, strconv.FormatInt(now.Unix()-2*hour, 10))

	last := frames[2]
	assert.Equal(t, terminatorID, last.ID)
	assert.JSONEq(t, `[]`, string(last.Data))
	assert.Empty(t, last.Error)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestHistoryStream_InvalidRequests(t *testing.T) {
	ts := newTestServer(t, WithHistory(history.NewReader(t.TempDir())))

	tests := []struct {
		name string
		send func(*websocket.Conn) error
		want string
	}{
		{
			name: "days out of range",
			send: func(c *websocket.Conn) error { return c.WriteJSON(HistoryRequest{Days: 0}) },
			want: "days out of range",
		},
		{
			name: "unknown kind",
			send: func(c *websocket.Conn) error { return c.WriteJSON(HistoryRequest{Days: 1, Kind: "power"}) },
			want: "unknown history kind",
		},
		{
			name: "malformed",
			send: func(c *websocket.Conn) error { return c.WriteMessage(websocket.TextMessage, []byte("{")) },
			want: "invalid history request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/v1/history"), nil)
			require.NoError(t, err)
			defer conn.Close()

			require.NoError(t, tt.send(conn))
			frames := readFrames(t, conn)
			require.Len(t, frames, 1)
			assert.Contains(t, frames[0].Error, tt.want)
		})
	}
}

func TestHistoryStream_SourceError(t *testing.T) {
	ts := newTestServer(t, WithHistory(failingHistory{}))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/v1/history"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(HistoryRequest{Days: 7}))
	frames := readFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Contains(t, frames[0].Error, "archive directory unavailable")
}

func TestHistoryStream_NotConfigured(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLivePush(t *testing.T) {
	dir := t.TempDir()
	recent := filepath.Join(dir, "df.json")
	st := store.NewFileStore(recent, filepath.Join(dir, "backup.json"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := snapshot.NewHistory(capture(t, 100))
	require.NoError(t, st.Save(ctx, first, first))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := New(WithSource(st), WithLiveFile(recent))

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/v1/live", nil)
	require.NoError(t, err)
	defer conn.Close()

	readLatest := func() map[string]json.RawMessage {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, b, err := conn.ReadMessage()
		require.NoError(t, err)
		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(b, &body))
		return body
	}

	body := readLatest()
	assert.Len(t, body, 1)
	assert.Contains(t, body, "100")

	second := snapshot.NewHistory(capture(t, 100), capture(t, 200))
	require.NoError(t, st.Save(ctx, second, second))

	body = readLatest()
	assert.Len(t, body, 1)
	assert.Contains(t, body, "200")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestGracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/ready")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.False(t, s.isReady())
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin", origin: "", want: true},
		{name: "same origin", origin: "http://example.com", want: true},
		{name: "cross origin", origin: "http://other.com", want: false},
		{name: "listed", allowed: []string{"http://other.com"}, origin: "http://other.com", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://any.com", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.AllowedOrigins = tt.allowed
			s := New(WithConfig(cfg))

			r := httptest.NewRequest(http.MethodGet, "http://example.com/v1/live", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, s.checkOrigin(r))
		})
	}
}

func TestHubBroadcast_KeepsNewest(t *testing.T) {
	h := newHub()
	sub := h.subscribe()
	assert.Equal(t, 1, h.len())

	h.broadcast([]byte("a"))
	h.broadcast([]byte("b"))
	assert.Equal(t, []byte("b"), <-sub)

	h.unsubscribe(sub)
	assert.Equal(t, 0, h.len())
	h.broadcast([]byte("c"))
	assert.Empty(t, sub)
}
