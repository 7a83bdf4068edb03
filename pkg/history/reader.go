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

package history

import (
	"archive/tar"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/NVIDIA/cmts-monitor/pkg/coerce"
	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/record"
	"github.com/NVIDIA/cmts-monitor/pkg/snapshot"
)

// maxMemberSize bounds one decoded archive member.
const maxMemberSize = 64 << 20

// Kind selects the projection applied to archived captures.
type Kind string

const (
	// KindUsage selects the byte counters as integers.
	KindUsage Kind = "usage"
	// KindUptime selects room, modem state and online time.
	KindUptime Kind = "uptime"
)

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// ParseKind converts a request value into a Kind. Empty means usage.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindUsage:
		return KindUsage, nil
	case KindUptime:
		return KindUptime, nil
	default:
		return "", errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"unknown history kind", map[string]any{"kind": s})
	}
}

type projection struct {
	columns []string
	ints    []string
}

var projections = map[Kind]projection{
	KindUsage:  {columns: []string{"Us Bytes", "Ds Bytes"}, ints: []string{"Us Bytes", "Ds Bytes"}},
	KindUptime: {columns: []string{"Room", "MAC", "Online"}, ints: []string{"Room"}},
}

// Columns returns the columns selected by kind.
func (k Kind) Columns() []string {
	return slices.Clone(projections[k].columns)
}

// Data maps a capture time to the selected column arrays.
type Data map[string]map[string]record.List

// Batch is the projection of one archive member.
type Batch struct {
	Archive string `json:"-"`
	Member  string `json:"-"`
	// Latest is the newest capture time in the batch.
	Latest int64 `json:"-"`
	Data   Data  `json:"data"`
}

// Option configures a Reader.
type Option func(*Reader)

// WithClock sets the time source used for age bounds.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) {
		r.now = now
	}
}

// WithSentinel sets the value substituted for unparsable integers.
func WithSentinel(v int64) Option {
	return func(r *Reader) {
		r.sentinel = v
	}
}

// Reader iterates archived captures.
type Reader struct {
	dir      string
	now      func() time.Time
	sentinel int64
}

// NewReader creates a reader for the archive directory dir.
func NewReader(dir string, opts ...Option) *Reader {
	r := &Reader{
		dir:      dir,
		now:      time.Now,
		sentinel: defaults.Sentinel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Archives returns the archive file paths, newest first.
func (r *Reader) Archives() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeArchiveRead,
			"failed to list archive directory", err, map[string]any{"dir": r.dir})
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), defaults.ArchiveExtension) {
			names = append(names, e.Name())
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		return naturalCompare(b, a)
	})

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(r.dir, n)
	}
	return paths, nil
}

// All returns every batch, newest archive first. Iteration ends early when
// ctx is canceled.
func (r *Reader) All(ctx context.Context, kind Kind) (iter.Seq[*Batch], error) {
	p, ok := projections[kind]
	if !ok {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"unknown history kind", map[string]any{"kind": kind})
	}
	paths, err := r.Archives()
	if err != nil {
		return nil, err
	}

	return func(yield func(*Batch) bool) {
		for _, path := range paths {
			if ctx.Err() != nil {
				return
			}
			if !r.readArchive(ctx, path, p, yield) {
				return
			}
		}
	}, nil
}

// UpTo returns batches until one whose newest capture is at least days old.
func (r *Reader) UpTo(ctx context.Context, kind Kind, days int) (iter.Seq[*Batch], error) {
	all, err := r.All(ctx, kind)
	if err != nil {
		return nil, err
	}
	now := r.now()

	return func(yield func(*Batch) bool) {
		for b := range all {
			age := now.Sub(time.Unix(b.Latest, 0))
			if int(age/(24*time.Hour)) >= days {
				slog.Debug("history scan reached age bound",
					"archive", b.Archive, "member", b.Member, "days", days)
				return
			}
			if !yield(b) {
				return
			}
		}
	}, nil
}

// LastDay returns the batches captured within the last day.
func (r *Reader) LastDay(ctx context.Context, kind Kind) (iter.Seq[*Batch], error) {
	return r.UpTo(ctx, kind, 1)
}

// LastWeek returns the batches captured within the last week.
func (r *Reader) LastWeek(ctx context.Context, kind Kind) (iter.Seq[*Batch], error) {
	return r.UpTo(ctx, kind, 7)
}

// readArchive yields the batches of one archive, newest capture first, and
// reports whether the caller wants more.
func (r *Reader) readArchive(ctx context.Context, path string, p projection, yield func(*Batch) bool) bool {
	batches, ok := r.members(ctx, path, p)
	if !ok {
		return false
	}
	slices.SortStableFunc(batches, func(a, b *Batch) int {
		return cmp.Compare(b.Latest, a.Latest)
	})
	for _, b := range batches {
		if !yield(b) {
			return false
		}
	}
	return true
}

// members decodes every readable member of one archive. It returns false
// only when ctx is canceled.
func (r *Reader) members(ctx context.Context, path string, p projection) ([]*Batch, bool) {
	f, err := os.Open(path)
	if err != nil {
		skip(path, "", "open", err)
		return nil, true
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		skip(path, "", "gzip", err)
		return nil, true
	}
	defer gz.Close()

	var batches []*Batch
	tr := tar.NewReader(gz)
	for {
		if ctx.Err() != nil {
			return nil, false
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return batches, true
		}
		if err != nil {
			// a broken tar stream cannot be resynchronized
			skip(path, "", "tar", err)
			return batches, true
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}

		b, err := r.readMember(tr, p)
		if err != nil {
			skip(path, hdr.Name, "decode", err)
			continue
		}
		b.Archive = path
		b.Member = hdr.Name
		batches = append(batches, b)
	}
}

func (r *Reader) readMember(src io.Reader, p projection) (*Batch, error) {
	body, err := io.ReadAll(io.LimitReader(src, maxMemberSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxMemberSize {
		return nil, fmt.Errorf("member exceeds %d bytes", maxMemberSize)
	}

	h := snapshot.NewHistory()
	if err := json.Unmarshal(body, h); err != nil {
		return nil, err
	}
	if h.Len() == 0 {
		return nil, fmt.Errorf("member holds no captures")
	}

	b := &Batch{Data: make(Data, h.Len())}
	for _, k := range h.Keys() {
		s, _ := h.Get(k)
		rs, _ := coerce.Coerce(s.Devices, p.ints, nil, coerce.WithSentinel(r.sentinel))
		cols := make(map[string]record.List, len(p.columns))
		for _, c := range p.columns {
			if rs.Has(c) {
				cols[c] = record.List(rs.Column(c))
			}
		}
		b.Data[strconv.FormatInt(k, 10)] = cols
		b.Latest = max(b.Latest, k)
	}
	return b, nil
}

func skip(archive, member, stage string, err error) {
	archiveSkipped.WithLabelValues(stage).Inc()
	slog.Warn("skipping unreadable archive entry",
		"archive", archive,
		"member", member,
		"stage", stage,
		"error", errors.Wrap(errors.ErrCodeArchiveRead, "archive read failed", err))
}
