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

// Package header provides the envelope shared by cmtsmon report documents.
//
// Ingest, archive and history commands emit reports that start with a
// Kubernetes-style header:
//
//	kind: IngestResult
//	apiVersion: cmtsmon.nvidia.com/v1alpha1
//	metadata:
//	  timestamp: "2025-06-01T12:00:00Z"
//	  version: v0.3.0
//
// Report types embed Header inline:
//
//	type Result struct {
//	    header.Header `json:",inline" yaml:",inline"`
//	    Devices int   `json:"devices" yaml:"devices"`
//	}
//
// Snapshot documents themselves are never wrapped; their layout is fixed by
// the store format.
package header
