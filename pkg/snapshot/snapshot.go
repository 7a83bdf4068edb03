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
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/record"
	"github.com/NVIDIA/cmts-monitor/pkg/table"
)

// Snapshot is the reconciled state of all devices at one capture time.
type Snapshot struct {
	CaptureTime int64
	Devices     *record.RecordSet
	Usage       *record.RecordSet
}

// Assemble creates a snapshot from copies of devices and usage.
func Assemble(devices, usage *record.RecordSet, captureTime int64) *Snapshot {
	s := &Snapshot{
		CaptureTime: captureTime,
		Devices:     devices.Clone(),
		Usage:       usage.Clone(),
	}
	if s.Devices == nil {
		s.Devices = record.NewRecordSet()
	}
	if s.Usage == nil {
		s.Usage = record.NewRecordSet()
	}

	slog.Debug("snapshot assembled",
		"captureTime", captureTime,
		"devices", s.Devices.Len(),
		"ports", s.Usage.Len())

	return s
}

// MarshalJSON encodes the snapshot body in the store layout. The capture
// time is the key of the enclosing history object and is not included.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeColumns(&buf, s.Devices); err != nil {
		return nil, err
	}
	if len(s.Devices.Columns) > 0 {
		buf.WriteByte(',')
	}
	key, _ := json.Marshal(defaults.UsageKey)
	buf.Write(key)
	buf.WriteByte(':')
	buf.WriteByte('{')
	if err := writeColumns(&buf, s.Usage); err != nil {
		return nil, err
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a snapshot body. The capture time is left untouched.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	keys, raw, err := decodeObject(data)
	if err != nil {
		return err
	}

	devices := record.NewRecordSet()
	usage := record.NewRecordSet()
	var devCols, usageCols []string
	var devVals, usageVals [][]record.Value

	for _, k := range keys {
		if k == defaults.UsageKey {
			ukeys, uraw, err := decodeObject(raw[k])
			if err != nil {
				return fmt.Errorf("invalid %s table: %w", defaults.UsageKey, err)
			}
			for _, uk := range ukeys {
				vals, err := decodeColumn(uraw[uk])
				if err != nil {
					return fmt.Errorf("invalid usage column %q: %w", uk, err)
				}
				usageCols = append(usageCols, uk)
				usageVals = append(usageVals, vals)
			}
			continue
		}
		vals, err := decodeColumn(raw[k])
		if err != nil {
			return fmt.Errorf("invalid column %q: %w", k, err)
		}
		devCols = append(devCols, k)
		devVals = append(devVals, vals)
	}

	if err := fillColumns(devices, devCols, devVals); err != nil {
		return err
	}
	if err := fillColumns(usage, usageCols, usageVals); err != nil {
		return fmt.Errorf("invalid %s table: %w", defaults.UsageKey, err)
	}

	s.Devices = devices
	s.Usage = usage
	return nil
}

// MarshalYAML encodes the snapshot as an ordered mapping.
func (s *Snapshot) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	if err := appendYAMLColumns(node, s.Devices); err != nil {
		return nil, err
	}
	usage := &yaml.Node{Kind: yaml.MappingNode}
	if err := appendYAMLColumns(usage, s.Usage); err != nil {
		return nil, err
	}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: defaults.UsageKey}, usage)
	return node, nil
}

func appendYAMLColumns(node *yaml.Node, rs *record.RecordSet) error {
	for _, c := range rs.Columns {
		var v yaml.Node
		if err := v.Encode(rs.Column(c)); err != nil {
			return fmt.Errorf("failed to encode column %q: %w", c, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: c}, &v)
	}
	return nil
}

func writeColumns(buf *bytes.Buffer, rs *record.RecordSet) error {
	for i, c := range rs.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return err
		}
		vals, err := json.Marshal(rs.Column(c))
		if err != nil {
			return fmt.Errorf("failed to encode column %q: %w", c, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(vals)
	}
	return nil
}

// decodeObject reads a JSON object and returns its keys in document order.
func decodeObject(data []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected JSON object")
	}

	var keys []string
	raw := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		k, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key")
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("invalid value for %q: %w", k, err)
		}
		if _, dup := raw[k]; !dup {
			keys = append(keys, k)
		}
		raw[k] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, raw, nil
}

func decodeColumn(data []byte) ([]record.Value, error) {
	v, err := record.DecodeValue(data)
	if err != nil {
		return nil, err
	}
	l, ok := v.(record.List)
	if !ok {
		return nil, fmt.Errorf("expected array, got %s", v.Kind())
	}
	return l, nil
}

func fillColumns(rs *record.RecordSet, cols []string, vals [][]record.Value) error {
	rs.Columns = cols
	n := 0
	for i, c := range cols {
		if i == 0 {
			n = len(vals[i])
		} else if len(vals[i]) != n {
			return fmt.Errorf("column %q has %d values, want %d", c, len(vals[i]), n)
		}
		rs.Types[c] = inferType(vals[i])
	}
	for row := 0; row < n; row++ {
		r := make(record.Record, len(cols))
		for i, c := range cols {
			r[c] = vals[i][row]
		}
		rs.Records = append(rs.Records, r)
	}
	return nil
}

// inferType derives a column type from the first non-null scalar.
func inferType(vals []record.Value) table.ColumnType {
	for _, v := range vals {
		if l, ok := v.(record.List); ok {
			if len(l) == 0 {
				continue
			}
			v = l[0]
		}
		switch v.Kind() {
		case record.KindInt:
			return table.TypeInt
		case record.KindFloat:
			return table.TypeFloat
		case record.KindString:
			return table.TypeString
		}
	}
	return table.TypeString
}

// TableHeader returns the device columns.
func (s *Snapshot) TableHeader() []string {
	return s.Devices.TableHeader()
}

// TableRows returns one rendered row per device.
func (s *Snapshot) TableRows() [][]string {
	return s.Devices.TableRows()
}
