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

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/header"
	"github.com/NVIDIA/cmts-monitor/pkg/history"
)

// HistoryEntry is one archived capture group in a HistoryResult.
type HistoryEntry struct {
	ID      int          `json:"id" yaml:"id"`
	Archive string       `json:"archive" yaml:"archive"`
	Member  string       `json:"member" yaml:"member"`
	Latest  int64        `json:"latest" yaml:"latest"`
	Data    history.Data `json:"data" yaml:"data"`
}

// HistoryResult is the report written by the history command.
type HistoryResult struct {
	header.Header `json:",inline" yaml:",inline"`

	Projection string         `json:"projection" yaml:"projection"`
	Days       int            `json:"days" yaml:"days"`
	Entries    []HistoryEntry `json:"entries" yaml:"entries"`
}

// TableHeader returns the summary columns.
func (r *HistoryResult) TableHeader() []string {
	return []string{"ID", "ARCHIVE", "MEMBER", "LATEST", "CAPTURES"}
}

// TableRows returns one row per archive member.
func (r *HistoryResult) TableRows() [][]string {
	rows := make([][]string, len(r.Entries))
	for i, e := range r.Entries {
		rows[i] = []string{
			strconv.Itoa(e.ID),
			e.Archive,
			e.Member,
			strconv.FormatInt(e.Latest, 10),
			strconv.Itoa(len(e.Data)),
		}
	}
	return rows
}

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:                  "history",
		EnableShellCompletion: true,
		Usage:                 "Read archived captures, newest first",
		Description: `Scan the archive directory newest first and report the usage or uptime
projection of every capture younger than --days.

  cmtsmon history --days 7 --kind uptime --format json`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "days",
				Usage: fmt.Sprintf("Age bound in days (1-%d)", defaults.HistoryMaxDays),
				Value: 7,
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Projection to read: usage or uptime",
				Value: string(history.KindUsage),
			},
			outputFlag(),
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			days := cmd.Int("days")
			if days < 1 || days > defaults.HistoryMaxDays {
				return fmt.Errorf("days must be between 1 and %d, got %d", defaults.HistoryMaxDays, days)
			}
			kind, err := history.ParseKind(cmd.String("kind"))
			if err != nil {
				return err
			}

			reader := history.NewReader(cfg.ArchivePath(), history.WithSentinel(cfg.Sentinel))
			res, err := readHistory(ctx, reader, kind, days)
			if err != nil {
				return err
			}
			res.Init(header.KindHistoryResult, version)

			return writeOutput(ctx, cmd, res)
		},
	}
}

func readHistory(ctx context.Context, r *history.Reader, kind history.Kind, days int) (*HistoryResult, error) {
	seq, err := r.UpTo(ctx, kind, days)
	if err != nil {
		return nil, err
	}

	res := &HistoryResult{
		Projection: kind.String(),
		Days:       days,
		Entries:    []HistoryEntry{},
	}
	for b := range seq {
		res.Entries = append(res.Entries, HistoryEntry{
			ID:      len(res.Entries),
			Archive: b.Archive,
			Member:  b.Member,
			Latest:  b.Latest,
			Data:    b.Data,
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
