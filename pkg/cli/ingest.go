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
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cmts-monitor/pkg/config"
	"github.com/NVIDIA/cmts-monitor/pkg/dump"
	"github.com/NVIDIA/cmts-monitor/pkg/ingest"
	"github.com/NVIDIA/cmts-monitor/pkg/k8s/client"
	"github.com/NVIDIA/cmts-monitor/pkg/serializer"
)

func ingestCmd() *cli.Command {
	return &cli.Command{
		Name:                  "ingest",
		EnableShellCompletion: true,
		Usage:                 "Parse a CMTS dump and append the snapshot to the store",
		Description: `Parse the output of the configured CMTS show commands, join the device
tables on MAC address, coerce numeric columns and append the resulting
snapshot to the recent and backup views.

The recent view can also be published to additional destinations:

  cmtsmon ingest --dump output.txt --publish cm://monitoring/cmts-recent

A run summary is written to --output in --format.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dump",
				Aliases: []string{"d"},
				Usage:   "Dump file to ingest, - for stdin (default: <data-dir>/output.txt)",
				Sources: cli.EnvVars("CMTSMON_DUMP"),
			},
			&cli.StringFlag{
				Name:  "encoding",
				Usage: "Character encoding of the dump (e.g. latin1, windows-1252); overrides the config",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Replace an existing snapshot with the same capture time",
			},
			&cli.StringSliceFlag{
				Name:  "publish",
				Usage: "Additional destination for the recent view: file path or cm://namespace/name (can be repeated)",
			},
			outputFlag(),
			formatFlag(),
			kubeconfigFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			d, err := readDump(cmd, cfg)
			if err != nil {
				return err
			}

			sinks, closeSinks, err := buildSinks(cmd.StringSlice("publish"), cmd.String("kubeconfig"))
			if err != nil {
				return err
			}
			defer closeSinks()

			res, err := ingest.New(cfg,
				ingest.WithSinks(sinks...),
				ingest.WithOverwrite(cmd.Bool("overwrite")),
				ingest.WithVersion(version),
			).Run(ctx, d)
			if err != nil {
				return err
			}

			return writeOutput(ctx, cmd, res)
		},
	}
}

// readDump loads the dump named by --dump, falling back to the file in the
// data directory.
func readDump(cmd *cli.Command, cfg config.Config) (dump.Dump, error) {
	enc := cfg.Encoding
	if v := cmd.String("encoding"); v != "" {
		enc = v
	}
	loader := dump.NewLoader(dump.WithEncoding(enc))

	path := cmd.String("dump")
	switch path {
	case "-":
		return loader.Read(os.Stdin)
	case "":
		path = cfg.DumpPath()
	}
	return loader.ReadFile(path)
}

// buildSinks creates one serializer per publish target. ConfigMap targets
// receive JSON; file targets use the format implied by their extension.
func buildSinks(targets []string, kubeconfig string) ([]serializer.Serializer, func(), error) {
	var (
		sinks []serializer.Serializer
		kube  client.Interface
	)
	closeAll := func() {
		for _, s := range sinks {
			if c, ok := s.(serializer.Closer); ok {
				if err := c.Close(); err != nil {
					slog.Warn("failed to close sink", "error", err)
				}
			}
		}
	}

	for _, target := range targets {
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}

		if !strings.HasPrefix(target, serializer.ConfigMapURIScheme) {
			sinks = append(sinks, serializer.NewFileWriterOrStdout(
				serializer.FormatFromPath(target, serializer.FormatJSON), target))
			continue
		}

		ns, cmName, err := serializer.ParseConfigMapURI(target)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		var opts []serializer.ConfigMapOption
		if kubeconfig != "" {
			if kube == nil {
				kube, _, err = client.BuildKubeClient(kubeconfig)
				if err != nil {
					closeAll()
					return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
				}
			}
			opts = append(opts, serializer.WithKubeClient(kube))
		}
		sinks = append(sinks, serializer.NewConfigMapWriter(ns, cmName, serializer.FormatJSON, opts...))
	}

	return sinks, closeAll, nil
}
