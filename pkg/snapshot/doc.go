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

// Package snapshot assembles reconciled device records into timestamped
// snapshots and maintains the capture history.
//
// A Snapshot pairs the device record set with the auxiliary usage table and
// a capture time in epoch seconds supplied by the caller. Snapshots are never
// modified after Assemble.
//
// A History maps capture times to snapshots. Append never mutates its input:
// it returns the new backup view (every capture) and the recent view (the
// last RecentWindow captures by key), which is always recomputed from the
// backup. Persisting either view is left to the caller. Callers must
// serialize Append calls on the same history.
//
// # Store Layout
//
// Both views marshal to the same JSON document, keyed by capture time, with
// device columns stored as arrays aligned across devices and the usage table
// nested under "Usage":
//
//	{
//	  "1700000000": {
//	    "MAC Address": ["0011.2233.4455", "0011.2233.6677"],
//	    "Room": [101, 102],
//	    "CPE IP Address": [["192.168.0.10"], []],
//	    "Usage": {"Interface": ["C1/0/U0"], "Util": [12]}
//	  }
//	}
//
// Columns keep their declared order and capture times are sorted numerically.
package snapshot
