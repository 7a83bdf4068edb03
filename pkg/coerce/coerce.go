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

// Package coerce converts string record values into declared numeric types.
//
// Coerce is total: a value that cannot be parsed (for example a literal
// "N/A"), a null placeholder, or a non-finite float is replaced by the
// sentinel so one malformed device never aborts a run. Lists are coerced
// element by element. The Report counts substitutions per column.
package coerce

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/record"
	"github.com/NVIDIA/cmts-monitor/pkg/table"
)

// Option configures coercion.
type Option func(*coercer)

// WithSentinel sets the value substituted for unparsable numbers.
func WithSentinel(v int64) Option {
	return func(c *coercer) {
		c.sentinel = v
	}
}

type coercer struct {
	sentinel int64
	report   Report
}

// Report summarizes sentinel substitutions.
type Report struct {
	// Substitutions counts replaced values per column.
	Substitutions map[string]int `json:"substitutions" yaml:"substitutions"`
}

// Total returns the number of substituted values across all columns.
func (r Report) Total() int {
	n := 0
	for _, c := range r.Substitutions {
		n += c
	}
	return n
}

// Coerce returns a copy of rs with intColumns parsed as integers and
// floatColumns as floats. A column named in both lists is treated as an
// integer. Columns absent from rs are ignored.
func Coerce(rs *record.RecordSet, intColumns, floatColumns []string, opts ...Option) (*record.RecordSet, Report) {
	c := &coercer{
		sentinel: defaults.Sentinel,
		report:   Report{Substitutions: make(map[string]int)},
	}
	for _, opt := range opts {
		opt(c)
	}

	if rs == nil {
		return record.NewRecordSet(), c.report
	}

	out := rs.Clone()
	for _, col := range intColumns {
		if !out.Has(col) {
			continue
		}
		out.Types[col] = table.TypeInt
		c.column(out, col, c.toInt)
	}
	for _, col := range floatColumns {
		if !out.Has(col) || slices.Contains(intColumns, col) {
			continue
		}
		out.Types[col] = table.TypeFloat
		c.column(out, col, c.toFloat)
	}
	return out, c.report
}

// FromTypes coerces every column whose declared type is int or float.
func FromTypes(rs *record.RecordSet, opts ...Option) (*record.RecordSet, Report) {
	if rs == nil {
		return Coerce(nil, nil, nil, opts...)
	}
	return Coerce(rs, rs.ColumnsOfType(table.TypeInt), rs.ColumnsOfType(table.TypeFloat), opts...)
}

func (c *coercer) column(rs *record.RecordSet, col string, conv func(record.Value) (record.Value, bool)) {
	for _, r := range rs.Records {
		r[col] = c.value(col, r[col], conv)
	}
}

func (c *coercer) value(col string, v record.Value, conv func(record.Value) (record.Value, bool)) record.Value {
	if l, ok := v.(record.List); ok {
		out := make(record.List, len(l))
		for i, e := range l {
			out[i] = c.value(col, e, conv)
		}
		return out
	}
	nv, ok := conv(v)
	if !ok {
		c.report.Substitutions[col]++
	}
	return nv
}

func (c *coercer) toInt(v record.Value) (record.Value, bool) {
	if record.IsNull(v) {
		return record.Int(c.sentinel), false
	}
	switch x := v.Any().(type) {
	case int64:
		return v, true
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) && x == math.Trunc(x) &&
			x >= math.MinInt64 && x < math.MaxInt64 {
			return record.Int(int64(x)), true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return record.Int(i), true
		}
	}
	return record.Int(c.sentinel), false
}

func (c *coercer) toFloat(v record.Value) (record.Value, bool) {
	if record.IsNull(v) {
		return record.Float(float64(c.sentinel)), false
	}
	var f float64
	switch x := v.Any().(type) {
	case int64:
		return record.Float(float64(x)), true
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return record.Float(float64(c.sentinel)), false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return record.Float(float64(c.sentinel)), false
	}
	return record.Float(f), true
}
