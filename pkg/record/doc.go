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

// Package record reconciles per-device tables into one record per device.
//
// Values are a closed set of kinds: int, float, string, list and null.
// Scalar[T] keeps the compile-time constraint on scalar types while Value
// lets a record hold mixed column types at runtime. All values marshal to
// plain JSON and YAML scalars, arrays and null.
//
// Reconcile performs a left outer join of subordinate tables onto a primary
// table. Every primary row appears exactly once, in primary order. A
// subordinate with repeated keys (several CPE addresses under one modem) is
// grouped by key first and its non-key columns become ordered lists. Keys
// absent from a subordinate leave null placeholders, or empty lists for
// subordinates declared with CardinalityMany, so every record carries the
// full union of columns.
package record
