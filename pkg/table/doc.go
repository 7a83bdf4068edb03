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

// Package table turns extracted sections into column-selected string tables.
//
// A Spec declares which header row to read, which continuation rows to drop,
// which columns to keep (and in what order), how to rename them, and which
// column is the join key. Wrapped column titles are positional and cannot be
// told apart from data by content, so they are always dropped by position:
//
//	spec := table.Spec{
//		Name:     "modems",
//		DropRows: []int{1},
//		Columns: []table.Column{
//			{Name: "MAC Address"},
//			{Name: "Number", Type: table.TypeInt},
//		},
//		Key: "MAC Address",
//	}
//	t, err := table.Build(sec, spec)
//
// Values stay strings. Columns carry a type tag that the coercion layer
// consumes later; key values are lower-cased and trimmed.
//
// Sections without a header row, such as the running-config description
// listing, declare positional Fields instead of Columns. Each line is split
// on whitespace and fields are picked by index, negative indexes counting
// from the end of the line.
package table
