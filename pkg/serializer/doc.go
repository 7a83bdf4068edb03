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

// Package serializer writes cmtsmon documents as JSON, YAML or text tables.
//
// Destinations are files, stdout or Kubernetes ConfigMaps:
//
//	w := serializer.NewFileWriterOrStdout(serializer.FormatJSON, "cm://monitoring/cmts-recent")
//	if c, ok := w.(serializer.Closer); ok {
//	    defer c.Close()
//	}
//	if err := w.Serialize(ctx, snap); err != nil {
//	    return err
//	}
//
// Documents implementing Tabular render as real columns in the table format;
// anything else is flattened into FIELD/VALUE pairs.
//
// For HTTP responses:
//
//	serializer.RespondJSON(w, http.StatusOK, data)
package serializer
