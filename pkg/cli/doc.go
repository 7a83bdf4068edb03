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

// Package cli implements the cmtsmon command line.
//
// # Commands
//
// ingest - Parse a CMTS dump and append the snapshot:
//
//	cmtsmon ingest --dump output.txt [--publish cm://monitoring/cmts-recent]
//
// Extracts the configured show command sections, joins them on MAC address,
// coerces numeric columns and appends the snapshot to the recent and backup
// views. A run summary is written to --output.
//
// serve - Start the delivery server:
//
//	cmtsmon serve --port 8001
//
// Serves the recent view, the websocket history stream and live updates.
//
// history - Read archived captures:
//
//	cmtsmon history --days 7 --kind uptime --format json
//
// archive - Pack the backup view:
//
//	cmtsmon archive --rotate [--push oci://ghcr.io/example/cmts-archive]
//
// # Global Flags
//
//	--config, -c      YAML configuration file (CMTSMON_CONFIG)
//	--log-level       Log level: debug, info, warn, error (LOG_LEVEL)
//	--data-dir        Data directory (CMTSMON_DATA_DIR)
//	--archive-dir     Archive directory (CMTSMON_ARCHIVE_DIR)
//	--recent-window   Captures kept in the recent view (CMTSMON_RECENT_WINDOW)
//
// # Output Formats
//
// Reports are written as YAML (default), JSON or a table.
//
// # Exit Codes
//
//	0  Success
//	1  General error (invalid arguments, execution failure)
//	2  Context canceled or timeout
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/NVIDIA/cmts-monitor/pkg/cli.version=1.0.0'"
package cli
