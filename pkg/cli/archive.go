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
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cmts-monitor/pkg/config"
	"github.com/NVIDIA/cmts-monitor/pkg/header"
	"github.com/NVIDIA/cmts-monitor/pkg/oci"
	"github.com/NVIDIA/cmts-monitor/pkg/store"
)

// ArchiveReport is the report written by the archive command.
type ArchiveReport struct {
	header.Header `json:",inline" yaml:",inline"`

	Archive     *store.ArchiveResult `json:"archive,omitempty" yaml:"archive,omitempty"`
	Rotated     bool                 `json:"rotated" yaml:"rotated"`
	BackupCount int                  `json:"backupCount" yaml:"backupCount"`
	Push        *oci.PushResult      `json:"push,omitempty" yaml:"push,omitempty"`
}

func archiveCmd() *cli.Command {
	return &cli.Command{
		Name:                  "archive",
		EnableShellCompletion: true,
		Usage:                 "Pack the backup view into the next numbered archive",
		Description: `Write the captures of the backup view that are newer than the last
archive to <archive-dir>/<N>.tar.gz, one JSON member per capture. Nothing
is written when every capture is already archived.

With --rotate the backup view is then trimmed to the recent window so the
next archive holds only newer captures. With --push the archive directory
is pushed to an OCI registry, one layer per archive:

  cmtsmon archive --rotate --push oci://ghcr.io/example/cmts-archive:v1`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rotate",
				Usage: "Trim the backup view to the recent window after archiving",
			},
			&cli.StringFlag{
				Name:    "push",
				Usage:   "OCI target for the archive directory (oci://registry/repository[:tag])",
				Sources: cli.EnvVars("CMTSMON_ARCHIVE_PUSH"),
			},
			&cli.BoolFlag{
				Name:  "plain-http",
				Usage: "Use HTTP instead of HTTPS for the registry",
			},
			&cli.BoolFlag{
				Name:  "insecure-tls",
				Usage: "Skip registry TLS certificate verification",
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

			var ref *oci.Reference
			if target := cmd.String("push"); target != "" {
				if ref, err = oci.ParseReference(target); err != nil {
					return err
				}
			}

			rep, err := archive(ctx, cfg, cmd.Bool("rotate"))
			if err != nil {
				return err
			}

			if ref != nil {
				rep.Push, err = oci.Push(ctx, oci.PushOptions{
					SourceDir:   cfg.ArchivePath(),
					Reference:   ref,
					PlainHTTP:   cmd.Bool("plain-http"),
					InsecureTLS: cmd.Bool("insecure-tls"),
					Annotations: map[string]string{
						"org.opencontainers.image.version": version,
					},
				})
				if err != nil {
					return fmt.Errorf("failed to push archives: %w", err)
				}
			}

			rep.Init(header.KindArchiveResult, version)
			return writeOutput(ctx, cmd, rep)
		},
	}
}

// archive writes the backup view to the next archive and optionally trims
// the backup view to the recent window.
func archive(ctx context.Context, cfg config.Config, rotate bool) (*ArchiveReport, error) {
	st := store.NewFileStore(cfg.RecentPath(), cfg.BackupPath())
	backup, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	rep := &ArchiveReport{BackupCount: backup.Len()}
	if backup.Len() == 0 {
		slog.Info("nothing to archive", "backup", cfg.BackupPath())
		return rep, nil
	}

	if rep.Archive, err = store.ArchiveNew(ctx, cfg.ArchivePath(), backup); err != nil {
		return nil, err
	}

	if rotate {
		recent := backup.Recent(cfg.RecentWindow)
		if err := st.Save(ctx, recent, recent); err != nil {
			return nil, fmt.Errorf("failed to rotate backup view: %w", err)
		}
		rep.Rotated = true
		rep.BackupCount = recent.Len()
		slog.Info("backup view rotated", "kept", recent.Len())
	}

	return rep, nil
}
