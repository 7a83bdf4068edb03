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

// Store and pipeline defaults.
const (
	// RecentWindow is the number of captures kept in the recent view.
	RecentWindow = 50

	// Sentinel replaces numeric values that cannot be parsed.
	Sentinel int64 = -1

	// RecentFileName is the recent view file inside the data directory.
	RecentFileName = "df.json"

	// BackupFileName is the backup view file inside the data directory.
	BackupFileName = "backup.json"

	// DumpFileName is the dump read when no input is given.
	DumpFileName = "output.txt"

	// ArchiveExtension is the suffix of archive files in the archive directory.
	ArchiveExtension = ".tar.gz"

	// UsageKey is the store key holding the usage statistics table.
	UsageKey = "Usage"

	// ServerPort is the default HTTP port of the delivery server.
	ServerPort = 8001

	// HistoryMaxDays bounds a single history request.
	HistoryMaxDays = 366
)
