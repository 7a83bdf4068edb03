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

// Package server delivers captured CMTS snapshots over HTTP and websockets.
//
// # Architecture
//
// The server wraps net/http with the following components:
//
//   - Rate limiting using token bucket algorithm (golang.org/x/time/rate)
//   - Request ID tracking for distributed tracing
//   - Panic recovery for resilience
//   - RED metrics exposed on /metrics
//   - Graceful shutdown under an errgroup, with systemd readiness and
//     watchdog notifications when run as a notify unit
//   - Live push driven by fsnotify on the recent view file
//
// # Usage
//
//	st := store.NewFileStore(recentPath, backupPath)
//	err := server.Run(ctx,
//	    server.WithVersion(version),
//	    server.WithSource(st),
//	    server.WithHistory(history.NewReader(archiveDir)),
//	    server.WithLiveFile(recentPath),
//	)
//
// # API Endpoints
//
// GET /v1/snapshots/recent - Recent view in the store layout
//
//	Query parameters:
//	  - since: epoch seconds, drop older captures
//	  - format: json (default), yaml, table
//
// GET /v1/snapshots/latest - Newest capture only, same layout
//
// GET /v1/history - Websocket history stream
//
//	The client sends {"days":N,"kind":"usage"|"uptime"}. The server replies
//	with {"id":i,"data":{...}} frames, newest first, and ends with
//	{"id":-1,"data":[]}. A failed request ends with the same terminator
//	carrying an "error" field.
//
// GET /v1/live - Websocket live push
//
//	The latest capture is sent on connect and whenever the recent view
//	file is rewritten.
//
// GET /health, GET /ready - Liveness and readiness probes
//
// # Error Handling
//
// All HTTP errors return a consistent JSON structure:
//
//	{
//	  "code": "NOT_FOUND",
//	  "message": "no snapshots captured yet",
//	  "requestId": "550e8400-e29b-41d4-a716-446655440000",
//	  "timestamp": "2025-12-22T12:00:00Z",
//	  "retryable": false
//	}
package server
