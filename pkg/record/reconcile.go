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
	"log/slog"

	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/table"
)

// Cardinality declares how a subordinate table relates to the primary.
type Cardinality string

const (
	// CardinalityAuto aggregates a subordinate only when its keys repeat.
	CardinalityAuto Cardinality = "auto"
	// CardinalityMany always aggregates into lists, even for unique keys.
	CardinalityMany Cardinality = "many"
)

// Join is one subordinate table folded onto the primary.
type Join struct {
	Table       *table.Table
	Cardinality Cardinality
}

// group is a subordinate table reduced to one entry per key.
type group struct {
	columns    []string
	aggregated bool
	rows       map[string]Record
}

// Reconcile left-joins subordinates onto primary by key, in declared order.
func Reconcile(primary *table.Table, subordinates []Join, key string) (*RecordSet, error) {
	if primary == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "primary table cannot be nil")
	}
	keyIdx := primary.Index(key)
	if keyIdx < 0 {
		return nil, errors.NewWithContext(errors.ErrCodeColumnMissing,
			"join key is absent from the primary table",
			map[string]any{"table": primary.Name, "column": key})
	}

	rs := FromTable(primary)
	owner := make(map[string]string, len(rs.Columns))
	for _, c := range rs.Columns {
		owner[c] = primary.Name
	}

	groups := make([]*group, 0, len(subordinates))
	for _, j := range subordinates {
		if j.Table == nil {
			return nil, errors.New(errors.ErrCodeInvalidRequest, "subordinate table cannot be nil")
		}
		g, err := groupByKey(j, key)
		if err != nil {
			return nil, err
		}
		for _, c := range g.columns {
			if prev, ok := owner[c]; ok {
				return nil, errors.NewWithContext(errors.ErrCodeColumnConflict,
					"output column is declared by more than one table",
					map[string]any{"column": c, "table": j.Table.Name, "previous": prev})
			}
			owner[c] = j.Table.Name
			rs.Columns = append(rs.Columns, c)
			rs.Types[c] = j.Table.Columns[j.Table.Index(c)].Type
		}
		groups = append(groups, g)
	}

	for i, r := range rs.Records {
		k := primary.Cell(i, keyIdx)
		for _, g := range groups {
			g.fill(r, k)
		}
	}

	slog.Debug("records reconciled",
		"primary", primary.Name,
		"subordinates", len(subordinates),
		"records", rs.Len(),
		"columns", len(rs.Columns))

	return rs, nil
}

func groupByKey(j Join, key string) (*group, error) {
	t := j.Table
	keyIdx := t.Index(key)
	if keyIdx < 0 {
		return nil, errors.NewWithContext(errors.ErrCodeColumnMissing,
			"join key is absent from a subordinate table",
			map[string]any{"table": t.Name, "column": key})
	}

	g := &group{
		aggregated: j.Cardinality == CardinalityMany,
		rows:       make(map[string]Record, t.Len()),
	}
	for i, c := range t.Columns {
		if i != keyIdx {
			g.columns = append(g.columns, c.Name)
		}
	}

	if !g.aggregated {
		seen := make(map[string]struct{}, t.Len())
		for n := range t.Rows {
			k := t.Cell(n, keyIdx)
			if _, dup := seen[k]; dup {
				g.aggregated = true
				break
			}
			seen[k] = struct{}{}
		}
	}

	for n := range t.Rows {
		k := t.Cell(n, keyIdx)
		r, ok := g.rows[k]
		if !ok {
			r = make(Record, len(g.columns))
			g.rows[k] = r
		}
		for i, c := range t.Columns {
			if i == keyIdx {
				continue
			}
			if g.aggregated {
				l, _ := r[c.Name].(List)
				r[c.Name] = append(l, Str(t.Cell(n, i)))
			} else {
				r[c.Name] = Str(t.Cell(n, i))
			}
		}
	}

	if g.aggregated {
		slog.Debug("subordinate aggregated by key", "table", t.Name, "rows", t.Len(), "keys", len(g.rows))
	}
	return g, nil
}

// fill copies the group's columns for key k into r. Empty keys never match.
func (g *group) fill(r Record, k string) {
	match, ok := g.rows[k]
	if k == "" {
		ok = false
	}
	for _, c := range g.columns {
		switch {
		case ok:
			v := match[c]
			if l, isList := v.(List); isList {
				v = append(List{}, l...)
			}
			r[c] = v
		case g.aggregated:
			r[c] = List{}
		default:
			r[c] = Null
		}
	}
}
