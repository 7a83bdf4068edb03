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

// Package config holds the explicit configuration of an ingestion pipeline.
//
// A Config is built from Default, optionally merged with a YAML file by
// Load, then adjusted by ApplyEnv and command-line flags. It is passed by
// value into every entry point; nothing in the module reads a process-wide
// data directory.
//
// # Environment Variables
//
//   - CMTSMON_DATA_DIR: directory holding the recent and backup views
//   - CMTSMON_ARCHIVE_DIR: directory holding *.tar.gz capture archives
//   - CMTSMON_RECENT_WINDOW: number of captures in the recent view
//
// # Sections
//
// Each section names the command label that introduces it, how its output
// ends, and the table spec used to build it. The primary section drives the
// device enumeration; subordinates are folded onto it in declared order.
//
//	primary:
//	  label: show running-config | include desc
//	  end: prompt
//	  name: rooms
//	  fields:
//	    - {name: MAC Address, index: 2}
//	    - {name: Room, index: -1, type: int, trimQuotes: true}
//	  key: MAC Address
package config
