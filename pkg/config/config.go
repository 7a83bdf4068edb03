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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/record"
	"github.com/NVIDIA/cmts-monitor/pkg/section"
	"github.com/NVIDIA/cmts-monitor/pkg/table"
)

// Environment variables read by ApplyEnv.
const (
	EnvDataDir      = "CMTSMON_DATA_DIR"
	EnvArchiveDir   = "CMTSMON_ARCHIVE_DIR"
	EnvRecentWindow = "CMTSMON_RECENT_WINDOW"
)

// DefaultKey is the join key column shared by every device table.
const DefaultKey = "MAC Address"

// Section declares one command's output and how to turn it into a table.
type Section struct {
	table.Spec `yaml:",inline"`

	Label       string             `json:"label" yaml:"label"`
	End         string             `json:"end,omitempty" yaml:"end,omitempty"`
	Cardinality record.Cardinality `json:"cardinality,omitempty" yaml:"cardinality,omitempty"`
	// Optional sections that are absent from a dump yield an empty table
	// instead of failing the run.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// EndRule returns the parsed end rule of the section.
func (s Section) EndRule() (section.EndRule, error) {
	return section.ParseEndRule(s.End)
}

// Config is the complete pipeline configuration.
type Config struct {
	DataDir      string `json:"dataDir" yaml:"dataDir"`
	ArchiveDir   string `json:"archiveDir,omitempty" yaml:"archiveDir,omitempty"`
	RecentFile   string `json:"recentFile" yaml:"recentFile"`
	BackupFile   string `json:"backupFile" yaml:"backupFile"`
	RecentWindow int    `json:"recentWindow" yaml:"recentWindow"`
	Sentinel     int64  `json:"sentinel" yaml:"sentinel"`
	Encoding     string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	PromptMarker string `json:"promptMarker,omitempty" yaml:"promptMarker,omitempty"`
	Key          string `json:"key" yaml:"key"`

	Primary      Section   `json:"primary" yaml:"primary"`
	Subordinates []Section `json:"subordinates,omitempty" yaml:"subordinates,omitempty"`
	Usage        *Section  `json:"usage,omitempty" yaml:"usage,omitempty"`
}

// Default returns the configuration for the standard CMTS command set.
func Default() Config {
	return Config{
		DataDir:      "files",
		ArchiveDir:   "archive",
		RecentFile:   defaults.RecentFileName,
		BackupFile:   defaults.BackupFileName,
		RecentWindow: defaults.RecentWindow,
		Sentinel:     defaults.Sentinel,
		PromptMarker: section.DefaultPromptMarker,
		Key:          DefaultKey,
		Primary: Section{
			Label: "show running-config | include desc",
			End:   string(section.EndPrompt),
			Spec: table.Spec{
				Name: "rooms",
				Fields: []table.Field{
					{Name: DefaultKey, Index: 2},
					{Name: "Room", Index: -1, Type: table.TypeInt, TrimQuotes: true},
				},
				Key: DefaultKey,
			},
		},
		Subordinates: []Section{
			{
				Label: "show cable modem",
				End:   string(section.EndBlank),
				Spec: table.Spec{
					Name:     "modems",
					DropRows: []int{1},
					Columns: []table.Column{
						{Name: DefaultKey},
						{Name: "IP Address"},
						{Name: "MAC"},
						{Name: "Online"},
						{Name: "Number", Type: table.TypeInt},
					},
					Key: DefaultKey,
				},
			},
			{
				Label: "show cable modem phy",
				End:   string(section.EndBlank),
				Spec: table.Spec{
					Name:     "phy",
					DropRows: []int{1},
					Columns: []table.Column{
						{Name: DefaultKey},
						{Name: "US_Pwr", Type: table.TypeFloat},
						{Name: "US_SNR", Type: table.TypeFloat},
						{Name: "DS_Pwr", Type: table.TypeFloat},
						{Name: "DS_SNR", Type: table.TypeFloat},
					},
					Key: DefaultKey,
				},
			},
			{
				Label: "show cable modem counters",
				End:   string(section.EndBlank),
				Spec: table.Spec{
					Name: "counters",
					Columns: []table.Column{
						{Name: DefaultKey},
						{Name: "Ds Bytes", Type: table.TypeInt},
						{Name: "Us Bytes", Type: table.TypeInt},
					},
					Key: DefaultKey,
				},
			},
			{
				Label:       "show cpe all",
				End:         string(section.EndBlank),
				Cardinality: record.CardinalityMany,
				Spec: table.Spec{
					Name: "cpe",
					Columns: []table.Column{
						{Name: "CM MAC"},
						{Name: "CPE IP Address"},
					},
					Rename: map[string]string{"CM MAC": DefaultKey},
					Key:    DefaultKey,
				},
			},
		},
		Usage: ptr.To(Section{
			Label:    "show cable utilization",
			End:      string(section.EndBlank),
			Optional: true,
			Spec: table.Spec{
				Name: "usage",
				Columns: []table.Column{
					{Name: "Interface"},
					{Name: "Util", Type: table.TypeInt},
					{Name: "Avg Util", Type: table.TypeInt},
				},
			},
		}),
	}
}

// Load reads a YAML file and merges it over Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to parse config %q", path), err)
	}
	return cfg, nil
}

// ApplyEnv overrides directories and the recent window from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvArchiveDir); v != "" {
		c.ArchiveDir = v
	}
	if v := os.Getenv(EnvRecentWindow); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.WrapWithContext(errors.ErrCodeInvalidRequest,
				"invalid recent window", err, map[string]any{"env": EnvRecentWindow, "value": v})
		}
		c.RecentWindow = n
	}
	return nil
}

// RecentPath returns the path of the recent view file.
func (c Config) RecentPath() string {
	return filepath.Join(c.DataDir, c.RecentFile)
}

// BackupPath returns the path of the backup view file.
func (c Config) BackupPath() string {
	return filepath.Join(c.DataDir, c.BackupFile)
}

// ArchivePath returns the archive directory. A relative ArchiveDir is
// resolved against DataDir.
func (c Config) ArchivePath() string {
	if c.ArchiveDir == "" || filepath.IsAbs(c.ArchiveDir) {
		return c.ArchiveDir
	}
	return filepath.Join(c.DataDir, c.ArchiveDir)
}

// DumpPath returns the default location of the CMTS dump file.
func (c Config) DumpPath() string {
	return filepath.Join(c.DataDir, defaults.DumpFileName)
}

// Validate checks the configuration, including cross-table column
// ownership, before any dump is read.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "data directory is required")
	}
	if c.RecentFile == "" || c.BackupFile == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "recent and backup file names are required")
	}
	if c.RecentFile == c.BackupFile {
		return errors.New(errors.ErrCodeInvalidRequest, "recent and backup views must use different files")
	}
	if c.RecentWindow <= 0 {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"recent window must be positive", map[string]any{"recentWindow": c.RecentWindow})
	}
	if c.Key == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "join key is required")
	}

	owner := make(map[string]string)
	check := func(s Section, keyed bool) error {
		if s.Label == "" {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest,
				"section label is required", map[string]any{"table": s.Name})
		}
		if _, err := s.EndRule(); err != nil {
			return errors.WrapWithContext(errors.ErrCodeInvalidRequest,
				"invalid section end rule", err, map[string]any{"section": s.Label})
		}
		switch s.Cardinality {
		case "", record.CardinalityAuto, record.CardinalityMany:
		default:
			return errors.NewWithContext(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("unknown cardinality %q", s.Cardinality), map[string]any{"section": s.Label})
		}
		if err := s.Validate(); err != nil {
			return err
		}
		if !keyed {
			return nil
		}
		if s.Key != c.Key {
			return errors.NewWithContext(errors.ErrCodeColumnMissing,
				"device table must be keyed by the join key",
				map[string]any{"table": s.Name, "column": c.Key})
		}
		for _, col := range s.Output() {
			if col.Name == c.Key {
				continue
			}
			if col.Name == defaults.UsageKey {
				return errors.NewWithContext(errors.ErrCodeColumnConflict,
					"column name is reserved for the usage table",
					map[string]any{"table": s.Name, "column": col.Name})
			}
			if prev, ok := owner[col.Name]; ok {
				return errors.NewWithContext(errors.ErrCodeColumnConflict,
					"output column is declared by more than one table",
					map[string]any{"column": col.Name, "table": s.Name, "previous": prev})
			}
			owner[col.Name] = s.Name
		}
		return nil
	}

	if err := check(c.Primary, true); err != nil {
		return err
	}
	for _, s := range c.Subordinates {
		if err := check(s, true); err != nil {
			return err
		}
	}
	if c.Usage != nil {
		if err := check(*c.Usage, false); err != nil {
			return err
		}
	}
	return nil
}

// IntColumns returns every device column declared as an integer.
func (c Config) IntColumns() []string {
	return c.columnsOfType(table.TypeInt)
}

// FloatColumns returns every device column declared as a float.
func (c Config) FloatColumns() []string {
	return c.columnsOfType(table.TypeFloat)
}

func (c Config) columnsOfType(ct table.ColumnType) []string {
	var names []string
	for _, s := range append([]Section{c.Primary}, c.Subordinates...) {
		for _, col := range s.Output() {
			if col.Type == ct {
				names = append(names, col.Name)
			}
		}
	}
	return names
}
