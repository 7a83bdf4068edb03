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

package table

import (
	"fmt"
	"slices"
	"strings"

	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/section"
)

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
)

// IsValid reports whether t is a known type. The empty type means string.
func (t ColumnType) IsValid() bool {
	switch t {
	case "", TypeString, TypeInt, TypeFloat:
		return true
	}
	return false
}

// Column declares one selected column.
type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type,omitempty" yaml:"type,omitempty"`
}

// Field declares one positional field of a header-less section.
type Field struct {
	Name       string     `json:"name" yaml:"name"`
	Index      int        `json:"index" yaml:"index"`
	Type       ColumnType `json:"type,omitempty" yaml:"type,omitempty"`
	TrimQuotes bool       `json:"trimQuotes,omitempty" yaml:"trimQuotes,omitempty"`
}

// Spec describes how to build a table from a section.
type Spec struct {
	Name      string            `json:"name" yaml:"name"`
	HeaderRow int               `json:"headerRow,omitempty" yaml:"headerRow,omitempty"`
	DropRows  []int             `json:"dropRows,omitempty" yaml:"dropRows,omitempty"`
	Columns   []Column          `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rename    map[string]string `json:"rename,omitempty" yaml:"rename,omitempty"`
	Fields    []Field           `json:"fields,omitempty" yaml:"fields,omitempty"`
	Key       string            `json:"key,omitempty" yaml:"key,omitempty"`
}

// Validate checks the spec for configuration errors that do not depend on
// the data.
func (s Spec) Validate() error {
	if s.Name == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "table name is required")
	}
	if len(s.Columns) == 0 && len(s.Fields) == 0 {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"table declares neither columns nor fields", map[string]any{"table": s.Name})
	}
	if len(s.Columns) > 0 && len(s.Fields) > 0 {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"table cannot declare both columns and fields", map[string]any{"table": s.Name})
	}
	if s.HeaderRow < 0 {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"header row cannot be negative", map[string]any{"table": s.Name})
	}
	for _, d := range s.DropRows {
		if d < 1 {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest,
				"drop rows are positions after the header and start at 1",
				map[string]any{"table": s.Name, "row": d})
		}
	}

	out := s.Output()
	seen := make(map[string]struct{}, len(out))
	for _, c := range out {
		if !c.Type.IsValid() {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("unknown column type %q", c.Type),
				map[string]any{"table": s.Name, "column": c.Name})
		}
		if _, ok := seen[c.Name]; ok {
			return errors.NewWithContext(errors.ErrCodeColumnConflict,
				"table declares the same output column twice",
				map[string]any{"table": s.Name, "column": c.Name})
		}
		seen[c.Name] = struct{}{}
	}

	if s.Key != "" {
		if _, ok := seen[s.Key]; !ok {
			return errors.NewWithContext(errors.ErrCodeColumnMissing,
				"join key is not an output column",
				map[string]any{"table": s.Name, "column": s.Key})
		}
	}
	return nil
}

// Output returns the output columns after renaming, in declared order.
func (s Spec) Output() []Column {
	if len(s.Fields) > 0 {
		out := make([]Column, 0, len(s.Fields))
		for _, f := range s.Fields {
			out = append(out, Column{Name: s.renamed(f.Name), Type: f.Type})
		}
		return out
	}
	out := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		out = append(out, Column{Name: s.renamed(c.Name), Type: c.Type})
	}
	return out
}

func (s Spec) renamed(name string) string {
	if to, ok := s.Rename[name]; ok && to != "" {
		return to
	}
	return name
}

// Table is a named, column-selected set of string rows.
type Table struct {
	Name    string     `json:"name" yaml:"name"`
	Key     string     `json:"key,omitempty" yaml:"key,omitempty"`
	Columns []Column   `json:"columns" yaml:"columns"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of a column or -1.
func (t *Table) Index(name string) int {
	return slices.IndexFunc(t.Columns, func(c Column) bool { return c.Name == name })
}

// Value returns the value of a column in row i, or "" for an unknown column.
func (t *Table) Value(i int, name string) string {
	return t.Cell(i, t.Index(name))
}

// Cell returns the cell at row i and column j, or "" when the row is short
// or j is out of range.
func (t *Table) Cell(i, j int) string {
	if j < 0 || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}

// KeyOf returns the join key value of row i.
func (t *Table) KeyOf(i int) string {
	return t.Value(i, t.Key)
}

// ColumnValues returns all values of one column.
func (t *Table) ColumnValues(name string) []string {
	idx := t.Index(name)
	if idx < 0 {
		return nil
	}
	vals := make([]string, len(t.Rows))
	for i := range t.Rows {
		vals[i] = t.Cell(i, idx)
	}
	return vals
}

// ColumnsOfType returns the names of the columns declared with type ct.
func (t *Table) ColumnsOfType(ct ColumnType) []string {
	var names []string
	for _, c := range t.Columns {
		if c.Type == ct || (ct == TypeString && c.Type == "") {
			names = append(names, c.Name)
		}
	}
	return names
}

// Build creates a table from a section according to spec.
func Build(sec *section.Section, spec Spec) (*Table, error) {
	if sec == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "section cannot be nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(spec.Fields) > 0 {
		return buildFromFields(sec, spec), nil
	}
	return buildFromHeader(sec, spec)
}

func buildFromHeader(sec *section.Section, spec Spec) (*Table, error) {
	if spec.HeaderRow >= sec.Len() {
		return nil, errors.NewWithContext(errors.ErrCodeColumnMissing,
			"section has no header row",
			map[string]any{"table": spec.Name, "section": sec.Label, "headerRow": spec.HeaderRow})
	}

	// first occurrence of a header name wins; empty cells are layout artifacts
	header := make(map[string]int)
	for i, h := range sec.Rows[spec.HeaderRow] {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		if _, ok := header[name]; !ok {
			header[name] = i
		}
	}

	positions := make([]int, len(spec.Columns))
	for i, c := range spec.Columns {
		pos, ok := header[c.Name]
		if !ok {
			return nil, errors.NewWithContext(errors.ErrCodeColumnMissing,
				"declared column is absent from the header",
				map[string]any{"table": spec.Name, "section": sec.Label, "column": c.Name})
		}
		positions[i] = pos
	}

	t := newTable(spec)
	for i := spec.HeaderRow + 1; i < sec.Len(); i++ {
		if slices.Contains(spec.DropRows, i-spec.HeaderRow) {
			continue
		}
		row := sec.Rows[i]
		values := make([]string, len(positions))
		for j, pos := range positions {
			if pos < len(row) {
				values[j] = strings.TrimSpace(row[pos])
			}
		}
		t.appendRow(values)
	}
	return t, nil
}

func buildFromFields(sec *section.Section, spec Spec) *Table {
	t := newTable(spec)
	for _, line := range sec.Lines {
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		values := make([]string, len(spec.Fields))
		for j, f := range spec.Fields {
			idx := f.Index
			if idx < 0 {
				idx += len(tokens)
			}
			if idx < 0 || idx >= len(tokens) {
				continue
			}
			v := tokens[idx]
			if f.TrimQuotes {
				v = strings.Trim(v, `"'`)
			}
			values[j] = v
		}
		t.appendRow(values)
	}
	return t
}

func newTable(spec Spec) *Table {
	return &Table{
		Name:    spec.Name,
		Key:     spec.Key,
		Columns: spec.Output(),
		Rows:    make([][]string, 0),
	}
}

func (t *Table) appendRow(values []string) {
	if k := t.Index(t.Key); k >= 0 {
		values[k] = NormalizeKey(values[k])
	}
	t.Rows = append(t.Rows, values)
}

// NormalizeKey returns the canonical form of a join key value.
func NormalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
