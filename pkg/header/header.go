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

package header

import (
	"time"
)

// APIVersion is the schema version stamped on every cmtsmon report.
const APIVersion = "cmtsmon.nvidia.com/v1alpha1"

// Kind identifies the type of a cmtsmon report document.
type Kind string

// Report kinds.
const (
	KindIngestResult  Kind = "IngestResult"
	KindArchiveResult Kind = "ArchiveResult"
	KindHistoryResult Kind = "HistoryResult"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the Kind is one of the recognized kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindIngestResult, KindArchiveResult, KindHistoryResult:
		return true
	default:
		return false
	}
}

// Option is a functional option for configuring Header instances.
type Option func(*Header)

// WithMetadata adds a metadata key-value pair to the Header.
func WithMetadata(key, value string) Option {
	return func(h *Header) {
		if h.Metadata == nil {
			h.Metadata = make(map[string]string)
		}
		h.Metadata[key] = value
	}
}

// WithKind sets the Kind field of the Header.
func WithKind(kind Kind) Option {
	return func(h *Header) {
		h.Kind = kind
	}
}

// WithAPIVersion sets the APIVersion field of the Header.
func WithAPIVersion(version string) Option {
	return func(h *Header) {
		h.APIVersion = version
	}
}

// WithTimestamp records t as the report timestamp.
func WithTimestamp(t time.Time) Option {
	return WithMetadata("timestamp", t.UTC().Format(time.RFC3339))
}

// New creates a new Header with the provided options applied on top of the
// default APIVersion.
func New(opts ...Option) *Header {
	h := &Header{
		APIVersion: APIVersion,
		Metadata:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Header carries the kind, schema version and free-form metadata of a report.
type Header struct {
	Kind Kind `json:"kind,omitempty" yaml:"kind,omitempty"`

	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// GetKind returns the Kind field of the Header.
func (h Header) GetKind() Kind {
	return h.Kind
}

// GetMetadata returns the Metadata map of the Header.
func (h Header) GetMetadata() map[string]string {
	return h.Metadata
}

// Init resets the Header to kind with a fresh timestamp and, when non-empty,
// the producing tool version.
func (h *Header) Init(kind Kind, version string) {
	h.Kind = kind
	h.APIVersion = APIVersion
	h.Metadata = map[string]string{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if version != "" {
		h.Metadata["version"] = version
	}
}
