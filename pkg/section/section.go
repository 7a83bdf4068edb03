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

// Package section locates the output of one equipment command inside a dump
// and splits it into column tokens.
//
// A section starts at the first line containing the command label and ends
// at the first later line matching its EndRule. Only the lines strictly
// between the two become rows. When a label occurs more than once the first
// occurrence wins, so a label that is a prefix of another command
// ("show cable modem" vs "show cable modem phy") must appear first in the
// dump or be made more specific by the caller.
package section

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/NVIDIA/cmts-monitor/pkg/dump"
	"github.com/NVIDIA/cmts-monitor/pkg/errors"
)

// DefaultPromptMarker is the character that marks an equipment prompt line.
const DefaultPromptMarker = "#"

// EndRule selects how the end of a section is detected.
type EndRule string

const (
	// EndBlank ends a section at the first empty line.
	EndBlank EndRule = "blank"
	// EndPrompt ends a section at the first line containing the prompt marker.
	EndPrompt EndRule = "prompt"
)

// String returns the rule name.
func (r EndRule) String() string {
	return string(r)
}

// ParseEndRule converts a configuration value into an EndRule.
func ParseEndRule(s string) (EndRule, error) {
	switch EndRule(strings.ToLower(strings.TrimSpace(s))) {
	case EndBlank, "blank_line", "":
		return EndBlank, nil
	case EndPrompt, "prompt_marker":
		return EndPrompt, nil
	default:
		return "", fmt.Errorf("unknown section end rule %q", s)
	}
}

// columnSeparator matches the gaps between columns in tabular output.
// Single spaces occur inside values such as "CPE IP Address". Any Unicode
// white space counts, including NBSP and the vertical tab that \s omits.
var columnSeparator = regexp.MustCompile(`[\s\x0B\x{85}\x{1C}-\x{1F}\p{Z}]{2,}`)

// Row is one tokenized line.
type Row []string

// Section is the output of one command.
type Section struct {
	// Label is the command label the section was located by.
	Label string `json:"label" yaml:"label"`
	// Start is the index of the label line in the dump.
	Start int `json:"start" yaml:"start"`
	// End is the index of the terminator line, or the dump length when the
	// section runs to the end of the dump.
	End int `json:"end" yaml:"end"`
	// Lines holds the raw text of the lines between Start and End.
	Lines []string `json:"lines" yaml:"lines"`
	// Rows holds Lines split into tokens.
	Rows []Row `json:"rows" yaml:"rows"`
}

// Len returns the number of rows.
func (s *Section) Len() int {
	return len(s.Rows)
}

// Option configures extraction.
type Option func(*extractor)

// WithPromptMarker overrides the prompt marker used by EndPrompt.
func WithPromptMarker(marker string) Option {
	return func(e *extractor) {
		if marker != "" {
			e.marker = marker
		}
	}
}

type extractor struct {
	marker string
}

// Extract returns the section introduced by label.
// It fails with ErrCodeSectionNotFound when no line contains label.
func Extract(d dump.Dump, label string, rule EndRule, opts ...Option) (*Section, error) {
	e := &extractor{marker: DefaultPromptMarker}
	for _, opt := range opts {
		opt(e)
	}

	if label == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "section label cannot be empty")
	}

	start := -1
	for i := 0; i < d.Len(); i++ {
		if strings.Contains(d.Line(i), label) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, errors.NewWithContext(errors.ErrCodeSectionNotFound,
			"command label not found in dump", map[string]any{"section": label})
	}

	end := d.Len()
	for i := start + 1; i < d.Len(); i++ {
		if e.terminates(d.Line(i), rule) {
			end = i
			break
		}
	}

	s := &Section{
		Label: label,
		Start: start,
		End:   end,
		Lines: make([]string, 0, end-start-1),
		Rows:  make([]Row, 0, end-start-1),
	}
	for i := start + 1; i < end; i++ {
		line := d.Line(i)
		s.Lines = append(s.Lines, line)
		s.Rows = append(s.Rows, Tokenize(line))
	}

	return s, nil
}

func (e *extractor) terminates(line string, rule EndRule) bool {
	switch rule {
	case EndPrompt:
		return strings.Contains(line, e.marker)
	default:
		return line == ""
	}
}

// Tokenize splits a line on runs of two or more Unicode whitespace characters.
// Leading and trailing separators produce empty tokens.
func Tokenize(line string) Row {
	return columnSeparator.Split(line, -1)
}
