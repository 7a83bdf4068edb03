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

	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/history"
	"github.com/NVIDIA/cmts-monitor/pkg/server"
	"github.com/NVIDIA/cmts-monitor/pkg/store"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:                  "serve",
		EnableShellCompletion: true,
		Usage:                 "Serve snapshots, history and live updates over HTTP",
		Description: `Start the delivery server:

  GET /v1/snapshots/recent   recent view (optional ?since=<epoch>&format=)
  GET /v1/snapshots/latest   newest capture
  GET /v1/history            websocket, send {"days":N,"kind":"usage"|"uptime"}
  GET /v1/live               websocket, pushes the newest capture on every ingest
  GET /health, /ready, /metrics

When started by systemd with Type=notify the server reports readiness and
feeds the watchdog.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Usage:   "Listen address",
				Sources: cli.EnvVars("CMTSMON_ADDRESS"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port",
				Value:   defaults.ServerPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.FloatFlag{
				Name:  "rate-limit",
				Usage: "Requests per second accepted on API routes",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "rate-burst",
				Usage: "Burst size of the API rate limiter",
				Value: 200,
			},
			&cli.StringSliceFlag{
				Name:  "allowed-origin",
				Usage: "Origin accepted on websocket upgrades, * for any (can be repeated)",
			},
			&cli.DurationFlag{
				Name:    "shutdown-timeout",
				Usage:   "Grace period for in-flight requests on shutdown",
				Value:   defaults.ServerShutdownTimeout,
				Sources: cli.EnvVars("CMTSMON_SHUTDOWN_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:  "no-live",
				Usage: "Disable the file watcher behind /v1/live",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			sc := server.NewConfig()
			sc.Name = name
			sc.Version = version
			sc.Address = cmd.String("address")
			sc.Port = cmd.Int("port")
			sc.RateLimit = rate.Limit(cmd.Float("rate-limit"))
			sc.RateLimitBurst = cmd.Int("rate-burst")
			sc.AllowedOrigins = cmd.StringSlice("allowed-origin")
			if d := cmd.Duration("shutdown-timeout"); d > 0 {
				sc.ShutdownTimeout = d
			}

			st := store.NewFileStore(cfg.RecentPath(), cfg.BackupPath())
			reader := history.NewReader(cfg.ArchivePath(), history.WithSentinel(cfg.Sentinel))

			opts := []server.Option{
				server.WithConfig(sc),
				server.WithSource(st),
				server.WithHistory(reader),
			}
			if !cmd.Bool("no-live") {
				opts = append(opts, server.WithLiveFile(cfg.RecentPath()))
			}

			return server.Run(ctx, opts...)
		},
	}
}
