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

package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/errors"
)

// History maps capture times to snapshots.
// The zero value is an empty history.
type History struct {
	entries map[int64]*Snapshot
}

// NewHistory creates a history holding the given snapshots. A later
// snapshot replaces an earlier one with the same capture time.
func NewHistory(snaps ...*Snapshot) *History {
	h := &History{entries: make(map[int64]*Snapshot, len(snaps))}
	for _, s := range snaps {
		if s != nil {
			h.entries[s.CaptureTime] = s
		}
	}
	return h
}

// Len returns the number of captures.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Keys returns the capture times in ascending order.
func (h *History) Keys() []int64 {
	if h == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(h.entries))
}

// Get returns the snapshot captured at t.
func (h *History) Get(t int64) (*Snapshot, bool) {
	if h == nil {
		return nil, false
	}
	s, ok := h.entries[t]
	return s, ok
}

// Latest returns the snapshot with the highest capture time, or nil.
func (h *History) Latest() *Snapshot {
	keys := h.Keys()
	if len(keys) == 0 {
		return nil
	}
	return h.entries[keys[len(keys)-1]]
}

// Recent returns the last n captures by key. It never modifies h.
func (h *History) Recent(n int) *History {
	keys := h.Keys()
	if n < 0 {
		n = 0
	}
	if len(keys) > n {
		keys = keys[len(keys)-n:]
	}
	out := &History{entries: make(map[int64]*Snapshot, len(keys))}
	for _, k := range keys {
		out.entries[k] = h.entries[k]
	}
	return out
}

// Since returns the captures at or after t.
func (h *History) Since(t int64) *History {
	out := &History{entries: make(map[int64]*Snapshot)}
	for _, k := range h.Keys() {
		if k >= t {
			out.entries[k] = h.entries[k]
		}
	}
	return out
}

// AppendOption configures Append.
type AppendOption func(*appendOptions)

type appendOptions struct {
	overwrite bool
	window    int
}

// WithOverwrite replaces an existing capture with the same time instead of
// failing.
func WithOverwrite() AppendOption {
	return func(o *appendOptions) {
		o.overwrite = true
	}
}

// WithWindow sets the size of the recent view.
func WithWindow(n int) AppendOption {
	return func(o *appendOptions) {
		if n > 0 {
			o.window = n
		}
	}
}

// Append adds s to a copy of store and returns the recent and backup views.
// Reusing a capture time fails with ErrCodeDuplicateCaptureTime unless
// WithOverwrite is given.
func Append(store *History, s *Snapshot, opts ...AppendOption) (recent, backup *History, err error) {
	o := &appendOptions{window: defaults.RecentWindow}
	for _, opt := range opts {
		opt(o)
	}

	if s == nil {
		return nil, nil, errors.New(errors.ErrCodeInvalidRequest, "snapshot cannot be nil")
	}

	if _, exists := store.Get(s.CaptureTime); exists && !o.overwrite {
		return nil, nil, errors.NewWithContext(errors.ErrCodeDuplicateCaptureTime,
			"a snapshot already exists for this capture time",
			map[string]any{"captureTime": s.CaptureTime})
	}

	backup = &History{entries: make(map[int64]*Snapshot, store.Len()+1)}
	if store != nil {
		maps.Copy(backup.entries, store.entries)
	}
	backup.entries[s.CaptureTime] = s

	return backup.Recent(o.window), backup, nil
}

// MarshalJSON encodes the history keyed by capture time in ascending order.
func (h *History) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range h.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		body, err := json.Marshal(h.entries[k])
		if err != nil {
			return nil, fmt.Errorf("failed to encode capture %d: %w", k, err)
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.FormatInt(k, 10))
		buf.WriteString(`":`)
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a history document in the store layout.
func (h *History) UnmarshalJSON(data []byte) error {
	keys, raw, err := decodeObject(data)
	if err != nil {
		return err
	}
	entries := make(map[int64]*Snapshot, len(keys))
	for _, k := range keys {
		t, err := ParseCaptureTime(k)
		if err != nil {
			return err
		}
		s := &Snapshot{}
		if err := json.Unmarshal(raw[k], s); err != nil {
			return fmt.Errorf("invalid capture %s: %w", k, err)
		}
		s.CaptureTime = t
		entries[t] = s
	}
	h.entries = entries
	return nil
}

// ParseCaptureTime parses a store key into epoch seconds. Fractional keys
// written by older writers are truncated.
func ParseCaptureTime(key string) (int64, error) {
	if t, err := strconv.ParseInt(key, 10, 64); err == nil {
		return t, nil
	}
	f, err := strconv.ParseFloat(key, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid capture time %q", key)
	}
	return int64(f), nil
}

// MarshalYAML encodes the history as a mapping keyed by capture time in
// ascending order.
func (h *History) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range h.Keys() {
		body, err := h.entries[k].MarshalYAML()
		if err != nil {
			return nil, fmt.Errorf("failed to encode capture %d: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: strconv.FormatInt(k, 10)},
			body.(*yaml.Node))
	}
	return node, nil
}

// TableHeader returns the columns of the capture summary table.
func (h *History) TableHeader() []string {
	return []string{"CAPTURE TIME", "DEVICES", "PORTS"}
}

// TableRows summarizes each capture in ascending order.
func (h *History) TableRows() [][]string {
	keys := h.Keys()
	rows := make([][]string, len(keys))
	for i, k := range keys {
		s := h.entries[k]
		rows[i] = []string{
			strconv.FormatInt(k, 10),
			strconv.Itoa(s.Devices.Len()),
			strconv.Itoa(s.Usage.Len()),
		}
	}
	return rows
}
