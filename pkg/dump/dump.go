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

// Package dump holds the raw text captured from CMTS command-line sessions.
//
// A Dump is the unit of input for one ingestion run: an ordered, immutable
// sequence of terminal output lines with line terminators removed. The
// Loader reads a dump from a file or stream, optionally decoding legacy
// single-byte encodings produced by older terminal capture scripts.
package dump

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// DefaultMaxSize is the largest dump accepted by a Loader unless overridden.
const DefaultMaxSize = 32 << 20

// Dump is an ordered sequence of text lines.
type Dump struct {
	lines []string
}

// New creates a Dump from already split lines. The slice is copied.
func New(lines []string) Dump {
	cp := make([]string, len(lines))
	copy(cp, lines)
	return Dump{lines: cp}
}

// Parse splits text on newlines into a Dump. Carriage returns preceding a
// newline are dropped and a single trailing newline does not produce an
// extra empty line.
func Parse(text string) Dump {
	if text == "" {
		return Dump{}
	}
	text = strings.TrimSuffix(text, "\n")
	parts := strings.Split(text, "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	return Dump{lines: parts}
}

// Len returns the number of lines.
func (d Dump) Len() int {
	return len(d.lines)
}

// Line returns the line at index i.
func (d Dump) Line(i int) string {
	return d.lines[i]
}

// Lines returns a copy of all lines.
func (d Dump) Lines() []string {
	cp := make([]string, len(d.lines))
	copy(cp, d.lines)
	return cp
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxSize sets the maximum number of bytes read from the source.
func WithMaxSize(size int) Option {
	return func(l *Loader) {
		l.maxSize = size
	}
}

// WithEncoding sets the character encoding of the source.
// Empty, "utf-8" and "utf8" mean no decoding.
func WithEncoding(name string) Option {
	return func(l *Loader) {
		l.encoding = name
	}
}

// Loader reads dumps from files or streams.
type Loader struct {
	maxSize  int
	encoding string
}

// NewLoader creates a Loader with the provided options.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ReadFile loads the dump stored at path.
func (l *Loader) ReadFile(path string) (Dump, error) {
	if path == "" {
		return Dump{}, fmt.Errorf("dump path cannot be empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to open dump %q: %w", path, err)
	}
	defer f.Close()

	d, err := l.Read(f)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to read dump %q: %w", path, err)
	}

	slog.Debug("dump loaded", "path", path, "lines", d.Len(), "encoding", l.encodingName())
	return d, nil
}

// Read loads a dump from r, decoding it when an encoding is configured.
func (l *Loader) Read(r io.Reader) (Dump, error) {
	enc, err := lookupEncoding(l.encoding)
	if err != nil {
		return Dump{}, err
	}

	src := io.LimitReader(r, int64(l.maxSize)+1)
	if enc != nil {
		src = transform.NewReader(src, enc.NewDecoder())
	}

	b, err := io.ReadAll(src)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to read dump content: %w", err)
	}

	// decoded single-byte text can grow, so the limit applies to raw input only
	if enc == nil && len(b) > l.maxSize {
		return Dump{}, fmt.Errorf("dump exceeds maximum size of %d bytes", l.maxSize)
	}

	if !utf8.Valid(b) {
		return Dump{}, fmt.Errorf("dump content is not valid UTF-8; set an encoding")
	}

	return Parse(string(b)), nil
}

func (l *Loader) encodingName() string {
	if l.encoding == "" {
		return "utf-8"
	}
	return l.encoding
}

// lookupEncoding resolves an encoding name. A nil encoding means UTF-8.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "cp1252", "windows-1252":
		return charmap.Windows1252, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		// htmlindex knows the WHATWG labels terminals tend to report
		if enc, err = htmlindex.Get(name); err != nil {
			return nil, fmt.Errorf("unsupported dump encoding %q", name)
		}
	}
	return enc, nil
}
