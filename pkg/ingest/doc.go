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

// Package ingest runs one ingestion of a CMTS text dump.
//
// A run extracts every configured section, builds and reconciles the device
// tables, coerces numeric columns, assembles a snapshot stamped with the
// current time and appends it to the store. The resulting recent view is
// then published to any configured sinks.
//
//	ing := ingest.New(cfg,
//	    ingest.WithSinks(serializer.NewConfigMapWriter("monitoring", "cmts-recent", serializer.FormatJSON)),
//	)
//	res, err := ing.Run(ctx, d)
//
// Section, column and capture-time errors abort the run before anything is
// written. Sink failures are logged and counted but do not fail a run whose
// snapshot was already persisted.
package ingest
