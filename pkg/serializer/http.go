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

package serializer

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
)

// ContentType returns the media type of a document in format f.
func ContentType(f Format) string {
	switch normalizeFormat(f) {
	case FormatYAML:
		return "application/x-yaml"
	case FormatTable:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// RespondJSON writes data as compact JSON with the given status code.
func RespondJSON(w http.ResponseWriter, statusCode int, data any) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("json encoding failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	write(w, statusCode, FormatJSON, buf.Bytes())
}

// Respond writes data in format f. JSON bodies are compact; YAML and table
// bodies match the file writers. The body is encoded before any header is
// written, so a failed encoding yields a plain 500 instead of a truncated
// document.
func Respond(w http.ResponseWriter, statusCode int, f Format, data any) {
	if normalizeFormat(f) == FormatJSON {
		RespondJSON(w, statusCode, data)
		return
	}
	body, err := Marshal(f, data)
	if err != nil {
		slog.Error("response encoding failed", "format", f, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	write(w, statusCode, f, body)
}

func write(w http.ResponseWriter, statusCode int, f Format, body []byte) {
	w.Header().Set("Content-Type", ContentType(f))
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Warn("response write failed", "format", f, "error", err)
	}
}
