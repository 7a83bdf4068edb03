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

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/cmts-monitor/pkg/coerce"
	"github.com/NVIDIA/cmts-monitor/pkg/config"
	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/dump"
	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/header"
	"github.com/NVIDIA/cmts-monitor/pkg/record"
	"github.com/NVIDIA/cmts-monitor/pkg/section"
	"github.com/NVIDIA/cmts-monitor/pkg/serializer"
	"github.com/NVIDIA/cmts-monitor/pkg/snapshot"
	"github.com/NVIDIA/cmts-monitor/pkg/store"
	"github.com/NVIDIA/cmts-monitor/pkg/table"
)

// Store persists the history views.
type Store interface {
	Load(ctx context.Context) (*snapshot.History, error)
	Save(ctx context.Context, recent, backup *snapshot.History) error
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithStore replaces the file store derived from the configuration.
func WithStore(s Store) Option {
	return func(i *Ingester) {
		i.store = s
	}
}

// WithSinks adds serializers that receive the recent view after each run.
func WithSinks(sinks ...serializer.Serializer) Option {
	return func(i *Ingester) {
		i.sinks = append(i.sinks, sinks...)
	}
}

// WithClock sets the source of capture times.
func WithClock(now func() time.Time) Option {
	return func(i *Ingester) {
		if now != nil {
			i.now = now
		}
	}
}

// WithOverwrite replaces a snapshot that reuses an existing capture time.
func WithOverwrite(overwrite bool) Option {
	return func(i *Ingester) {
		i.overwrite = overwrite
	}
}

// WithVersion records the tool version in run results.
func WithVersion(v string) Option {
	return func(i *Ingester) {
		i.version = v
	}
}

// Ingester turns dumps into snapshots and appends them to a store.
type Ingester struct {
	cfg       config.Config
	store     Store
	sinks     []serializer.Serializer
	now       func() time.Time
	overwrite bool
	version   string
}

// New creates an Ingester for cfg. Without WithStore the recent and backup
// files named by cfg are used.
func New(cfg config.Config, opts ...Option) *Ingester {
	i := &Ingester{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.store == nil {
		i.store = store.NewFileStore(cfg.RecentPath(), cfg.BackupPath())
	}
	return i
}

// Result reports one ingestion run.
type Result struct {
	header.Header `json:",inline" yaml:",inline"`

	RunID         string         `json:"runId" yaml:"runId"`
	CaptureTime   int64          `json:"captureTime" yaml:"captureTime"`
	Devices       int            `json:"devices" yaml:"devices"`
	Ports         int            `json:"ports" yaml:"ports"`
	RecentCount   int            `json:"recentCount" yaml:"recentCount"`
	BackupCount   int            `json:"backupCount" yaml:"backupCount"`
	Substitutions map[string]int `json:"substitutions,omitempty" yaml:"substitutions,omitempty"`
	SinkErrors    int            `json:"sinkErrors,omitempty" yaml:"sinkErrors,omitempty"`
	Duration      string         `json:"duration" yaml:"duration"`
}

// Parse runs the pipeline over d without touching the store.
func (i *Ingester) Parse(d dump.Dump, captureTime int64) (*snapshot.Snapshot, coerce.Report, error) {
	cfg := i.cfg
	opts := []coerce.Option{coerce.WithSentinel(cfg.Sentinel)}

	primary, err := i.build(d, cfg.Primary)
	if err != nil {
		return nil, coerce.Report{}, err
	}

	joins := make([]record.Join, 0, len(cfg.Subordinates))
	for _, s := range cfg.Subordinates {
		t, err := i.build(d, s)
		if err != nil {
			return nil, coerce.Report{}, err
		}
		joins = append(joins, record.Join{Table: t, Cardinality: s.Cardinality})
	}

	merged, err := record.Reconcile(primary, joins, cfg.Key)
	if err != nil {
		return nil, coerce.Report{}, err
	}
	devices, report := coerce.Coerce(merged, cfg.IntColumns(), cfg.FloatColumns(), opts...)

	usage := record.NewRecordSet()
	if cfg.Usage != nil {
		t, err := i.build(d, *cfg.Usage)
		if err != nil {
			return nil, coerce.Report{}, err
		}
		var ur coerce.Report
		usage, ur = coerce.FromTypes(record.FromTable(t), opts...)
		for col, n := range ur.Substitutions {
			report.Substitutions[defaults.UsageKey+"."+col] += n
		}
	}

	return snapshot.Assemble(devices, usage, captureTime), report, nil
}

func (i *Ingester) build(d dump.Dump, s config.Section) (*table.Table, error) {
	rule, err := s.EndRule()
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
			"invalid section end rule", err, map[string]any{"section": s.Label})
	}

	sec, err := section.Extract(d, s.Label, rule, section.WithPromptMarker(i.cfg.PromptMarker))
	if err != nil {
		if s.Optional && errors.HasCode(err, errors.ErrCodeSectionNotFound) {
			slog.Warn("optional section not found", "section", s.Label, "table", s.Name)
			return &table.Table{Name: s.Name, Key: s.Key, Columns: s.Output()}, nil
		}
		return nil, err
	}

	t, err := table.Build(sec, s.Spec)
	if err != nil {
		return nil, err
	}
	slog.Debug("table built", "table", t.Name, "rows", t.Len(), "section", s.Label)
	return t, nil
}

// Run ingests d, appends the snapshot to the store and publishes the
// recent view to every sink.
func (i *Ingester) Run(ctx context.Context, d dump.Dump) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := slog.With("run", runID)

	res, err := i.run(ctx, log, d)
	ingestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		ingestTotal.WithLabelValues("error").Inc()
		log.Error("ingest failed", "error", err)
		return nil, err
	}
	ingestTotal.WithLabelValues("success").Inc()

	res.RunID = runID
	res.Duration = time.Since(start).Round(time.Millisecond).String()
	log.Info("ingest complete",
		"captureTime", res.CaptureTime,
		"devices", res.Devices,
		"substitutions", len(res.Substitutions),
		"recent", res.RecentCount,
		"backup", res.BackupCount)
	return res, nil
}

func (i *Ingester) run(ctx context.Context, log *slog.Logger, d dump.Dump) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.IngestTimeout)
	defer cancel()

	captureTime := i.now().Unix()
	snap, report, err := i.Parse(d, captureTime)
	if err != nil {
		return nil, err
	}

	ingestDevices.Set(float64(snap.Devices.Len()))
	for col, n := range report.Substitutions {
		coercionSubstitutions.WithLabelValues(col).Add(float64(n))
	}
	if total := report.Total(); total > 0 {
		log.Debug("coercion substitutions", "total", total)
	}

	current, err := i.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	appendOpts := []snapshot.AppendOption{snapshot.WithWindow(i.cfg.RecentWindow)}
	if i.overwrite {
		appendOpts = append(appendOpts, snapshot.WithOverwrite())
	}
	recent, backup, err := snapshot.Append(current, snap, appendOpts...)
	if err != nil {
		return nil, err
	}

	if err := i.store.Save(ctx, recent, backup); err != nil {
		return nil, fmt.Errorf("failed to save store: %w", err)
	}

	res := &Result{
		CaptureTime:   captureTime,
		Devices:       snap.Devices.Len(),
		Ports:         snap.Usage.Len(),
		RecentCount:   recent.Len(),
		BackupCount:   backup.Len(),
		Substitutions: maps.Clone(report.Substitutions),
	}
	res.Init(header.KindIngestResult, i.version)
	res.SinkErrors = i.publish(ctx, log, recent)
	return res, nil
}

// publish sends the recent view to every sink concurrently and returns the
// number of failed sinks.
func (i *Ingester) publish(ctx context.Context, log *slog.Logger, recent *snapshot.History) int {
	if len(i.sinks) == 0 {
		return 0
	}

	failed := make([]bool, len(i.sinks))
	var g errgroup.Group
	for n, sink := range i.sinks {
		g.Go(func() error {
			sinkCtx, cancel := context.WithTimeout(ctx, defaults.SinkTimeout)
			defer cancel()
			if err := sink.Serialize(sinkCtx, recent); err != nil {
				sinkErrors.Inc()
				log.Warn("sink publication failed", "sink", fmt.Sprintf("%T", sink), "error", err)
				failed[n] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, f := range failed {
		if f {
			count++
		}
	}
	return count
}
