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

package record

import (
	"fmt"
	"maps"
	"slices"

	"github.com/NVIDIA/cmts-monitor/pkg/table"
)

// Record is one reconciled row: column name to value.
type Record map[string]Value

// RecordSet is an ordered set of records sharing the same columns.
type RecordSet struct {
	// Columns lists the column names in output order.
	Columns []string
	// Types holds the declared type of each column.
	Types map[string]table.ColumnType
	// Records holds one record per device in primary order.
	Records []Record
}

// NewRecordSet creates an empty set with the given columns.
func NewRecordSet(columns ...string) *RecordSet {
	return &RecordSet{
		Columns: slices.Clone(columns),
		Types:   make(map[string]table.ColumnType, len(columns)),
		Records: make([]Record, 0),
	}
}

// FromTable converts a table into a record set of string values.
func FromTable(t *table.Table) *RecordSet {
	rs := NewRecordSet(t.Names()...)
	for _, c := range t.Columns {
		rs.Types[c.Name] = c.Type
	}
	for i := range t.Rows {
		r := make(Record, len(rs.Columns))
		for j, name := range rs.Columns {
			r[name] = Str(t.Cell(i, j))
		}
		rs.Records = append(rs.Records, r)
	}
	return rs
}

// Len returns the number of records.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Has reports whether the set declares a column.
func (rs *RecordSet) Has(column string) bool {
	return slices.Contains(rs.Columns, column)
}

// Get returns the value of column in record i, or Null.
func (rs *RecordSet) Get(i int, column string) Value {
	if v, ok := rs.Records[i][column]; ok && v != nil {
		return v
	}
	return Null
}

// Column returns the values of one column across all records.
func (rs *RecordSet) Column(column string) []Value {
	vals := make([]Value, len(rs.Records))
	for i := range rs.Records {
		vals[i] = rs.Get(i, column)
	}
	return vals
}

// ColumnsOfType returns the column names declared with type ct, in order.
func (rs *RecordSet) ColumnsOfType(ct table.ColumnType) []string {
	var names []string
	for _, c := range rs.Columns {
		if rs.Types[c] == ct {
			names = append(names, c)
		}
	}
	return names
}

// Append adds a record. Columns missing from r are stored as Null and
// columns unknown to the set are rejected.
func (rs *RecordSet) Append(r Record) error {
	for k := range r {
		if !rs.Has(k) {
			return fmt.Errorf("record column %q is not declared", k)
		}
	}
	out := make(Record, len(rs.Columns))
	for _, c := range rs.Columns {
		if v, ok := r[c]; ok && v != nil {
			out[c] = v
		} else {
			out[c] = Null
		}
	}
	rs.Records = append(rs.Records, out)
	return nil
}

// Clone returns a copy that shares no maps or slices with rs. Values are
// immutable except lists, which are copied.
func (rs *RecordSet) Clone() *RecordSet {
	if rs == nil {
		return nil
	}
	out := &RecordSet{
		Columns: slices.Clone(rs.Columns),
		Types:   maps.Clone(rs.Types),
		Records: make([]Record, len(rs.Records)),
	}
	if out.Types == nil {
		out.Types = make(map[string]table.ColumnType)
	}
	for i, r := range rs.Records {
		cp := make(Record, len(r))
		for k, v := range r {
			if l, ok := v.(List); ok {
				v = slices.Clone(l)
			}
			cp[k] = v
		}
		out.Records[i] = cp
	}
	return out
}

// TableHeader returns the column names for text rendering.
func (rs *RecordSet) TableHeader() []string {
	if rs == nil {
		return nil
	}
	return slices.Clone(rs.Columns)
}

// TableRows renders every record as strings in column order.
func (rs *RecordSet) TableRows() [][]string {
	if rs == nil {
		return nil
	}
	rows := make([][]string, len(rs.Records))
	for i := range rs.Records {
		row := make([]string, len(rs.Columns))
		for j, c := range rs.Columns {
			row[j] = rs.Get(i, c).String()
		}
		rows[i] = row
	}
	return rows
}
