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

// Package history reads archived captures newest first.
//
// A Reader scans the archive directory on every call: *.tar.gz files are
// ordered by a natural (numeric-aware) descending sort of their names, and
// each member is decoded as a capture document and projected onto the
// columns of one Kind. Within an archive, members are yielded by descending
// capture time whatever their order in the tar stream. Archives hold
// disjoint, increasing capture ranges (see store.ArchiveNew), so the whole
// scan is newest first. Members that cannot be read are logged and skipped;
// the scan always continues with the next member or file.
//
// UpTo bounds a scan by age. Iteration stops at the first batch whose newest
// capture is at least the given number of days old:
//
//	r := history.NewReader("/var/lib/cmtsmon/archive")
//	seq, err := r.UpTo(ctx, history.KindUsage, 7)
//	if err != nil {
//		return err
//	}
//	for batch := range seq {
//		// batch.Data maps capture time to column arrays
//	}
//
// Sequences hold no state between calls and can be ranged over again.
package history
