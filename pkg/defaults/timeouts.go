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

package defaults

import "time"

// Ingest timeouts for one ingestion run.
const (
	// IngestTimeout bounds a complete run: load, parse, append, persist and publish.
	IngestTimeout = 2 * time.Minute

	// SinkTimeout bounds a single publication sink.
	SinkTimeout = 30 * time.Second
)

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	// Websocket handlers hijack the connection and are not bound by it.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second

	// ReadyCheckTimeout bounds the recent view read behind /ready.
	ReadyCheckTimeout = 2 * time.Second
)

// Stream timeouts for websocket delivery.
const (
	// StreamWriteTimeout is the deadline for writing one websocket frame.
	StreamWriteTimeout = 10 * time.Second

	// StreamPongWait is how long a live connection may stay silent.
	StreamPongWait = 60 * time.Second

	// StreamPingInterval must be shorter than StreamPongWait.
	StreamPingInterval = 50 * time.Second

	// LiveDebounce coalesces bursts of file events from one store write.
	LiveDebounce = 250 * time.Millisecond
)

// Kubernetes timeouts for K8s API operations.
const (
	// ConfigMapWriteTimeout is the timeout for writing to ConfigMaps.
	ConfigMapWriteTimeout = 30 * time.Second
)

// OCI timeouts for registry operations.
const (
	// OCIPushTimeout bounds one archive push.
	OCIPushTimeout = 5 * time.Minute
)
