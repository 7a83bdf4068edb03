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

// Package store persists capture history to the local filesystem.
//
// FileStore keeps the two views of the history as JSON documents in the
// data directory: the backup view holding every capture and the recent view
// holding the last captures. Files are replaced atomically so readers such
// as the delivery server never observe a partial write.
//
// Archive packs captures into numbered tar.gz files, one JSON member per
// capture, for the history reader:
//
//	archive/
//	  1.tar.gz   1700000000.json, 1700000300.json, ...
//	  2.tar.gz   ...
//
// Numbers grow with age of creation so a natural descending sort of the
// file names yields the newest archive first.
package store
