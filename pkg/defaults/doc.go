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

// Package defaults provides centralized configuration constants for cmtsmon.
//
// This package defines timeout values, retention windows, file names and
// other defaults used across the codebase.
//
// # Timeout Categories
//
//   - Ingest timeouts: for one end-to-end ingestion run and its sinks
//   - Server timeouts: for HTTP server configuration
//   - Stream timeouts: for websocket delivery of history and live updates
//   - Kubernetes timeouts: for ConfigMap publication
//
// # Usage
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.IngestTimeout)
//	defer cancel()
package defaults
