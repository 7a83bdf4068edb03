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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cmts-monitor/pkg/config"
	"github.com/NVIDIA/cmts-monitor/pkg/logging"
)

const (
	name           = "cmtsmon"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Command returns the root command with every subcommand attached.
func Command() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "CMTS dump ingestion, history and delivery",
		Version:               fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		EnableShellCompletion: true,
		Description: `cmtsmon turns the text output of CMTS show commands into timestamped
per-device snapshots, keeps a recent and a full history of them, archives
the history and serves it to dashboards over HTTP and websockets.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file merged over the built-in CMTS sections",
				Sources: cli.EnvVars("CMTSMON_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars(logging.EnvLogLevel),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory holding the dump and the recent and backup views",
				Sources: cli.EnvVars(config.EnvDataDir),
			},
			&cli.StringFlag{
				Name:    "archive-dir",
				Usage:   "Archive directory, relative paths resolve against the data directory",
				Sources: cli.EnvVars(config.EnvArchiveDir),
			},
			&cli.IntFlag{
				Name:    "recent-window",
				Usage:   "Number of captures kept in the recent view",
				Sources: cli.EnvVars(config.EnvRecentWindow),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.SetDefaultStructuredLoggerWithLevel(name, version, cmd.String("log-level"))
			slog.Debug("starting",
				"name", name,
				"version", version,
				"commit", commit,
				"date", date)
			return ctx, nil
		},
		Commands: []*cli.Command{
			ingestCmd(),
			serveCmd(),
			historyCmd(),
			archiveCmd(),
		},
	}
}

// Execute runs the root command with os.Args and exits on failure.
// SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Command().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode returns 2 for canceled or timed out runs and 1 otherwise.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 2
	}
	return 1
}

// loadConfig reads the configuration file, then applies the environment
// and command line overrides, and validates the result.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}
	if v := cmd.String("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v := cmd.String("archive-dir"); v != "" {
		cfg.ArchiveDir = v
	}
	if cmd.IsSet("recent-window") {
		cfg.RecentWindow = cmd.Int("recent-window")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
