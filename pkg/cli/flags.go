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
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cmts-monitor/pkg/serializer"
)

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output destination: file path, ConfigMap URI (cm://namespace/name), or stdout when empty",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatYAML),
		Usage:   fmt.Sprintf("Output format (supported: %s)", strings.Join(serializer.SupportedFormats(), ", ")),
	}
}

func kubeconfigFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kubeconfig",
		Aliases: []string{"k"},
		Usage:   "Path to kubeconfig file used by ConfigMap destinations (overrides KUBECONFIG)",
	}
}

// parseOutputFormat returns the validated --format value.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	f := serializer.Format(cmd.String("format"))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q", f)
	}
	return f, nil
}

// writeOutput serializes v to the --output destination in the --format format.
func writeOutput(ctx context.Context, cmd *cli.Command, v any) error {
	f, err := parseOutputFormat(cmd)
	if err != nil {
		return err
	}

	out := serializer.NewFileWriterOrStdout(f, cmd.String("output"))
	defer func() {
		if c, ok := out.(serializer.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close output", "error", err)
			}
		}
	}()

	if err := out.Serialize(ctx, v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
