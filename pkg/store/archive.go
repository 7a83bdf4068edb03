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

package store

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/snapshot"
)

// ArchiveResult describes a written archive.
type ArchiveResult struct {
	Path     string `json:"path" yaml:"path"`
	Captures int    `json:"captures" yaml:"captures"`
	Bytes    int    `json:"bytes" yaml:"bytes"`
}

// WriteArchive packs every capture of h into the next numbered archive in
// dir. Each member is named <captureTime>.json and holds a single-capture
// document in the store layout.
func WriteArchive(ctx context.Context, dir string, h *snapshot.History) (*ArchiveResult, error) {
	if h.Len() == 0 {
		return nil, fmt.Errorf("nothing to archive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}

	name, err := NextArchiveName(dir)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	for _, k := range h.Keys() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, _ := h.Get(k)
		body, err := json.Marshal(snapshot.NewHistory(s))
		if err != nil {
			return nil, fmt.Errorf("failed to encode capture %d: %w", k, err)
		}
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     strconv.FormatInt(k, 10) + ".json",
			Mode:     0o644,
			Size:     int64(len(body)),
			ModTime:  time.Unix(k, 0).UTC(),
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("failed to write archive header: %w", err)
		}
		if _, err := tw.Write(body); err != nil {
			return nil, fmt.Errorf("failed to write archive member: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize gzip stream: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}

	slog.Info("archive written", "path", path, "captures", h.Len(), "bytes", buf.Len())
	return &ArchiveResult{Path: path, Captures: h.Len(), Bytes: buf.Len()}, nil
}

// ArchiveNew packs the captures of h newer than everything already archived
// in dir into the next numbered archive. It returns a nil result when h has
// no such capture, so repeated runs over an overlapping backup view never
// archive a capture twice.
func ArchiveNew(ctx context.Context, dir string, h *snapshot.History) (*ArchiveResult, error) {
	through, err := ArchivedThrough(dir)
	if err != nil {
		return nil, err
	}
	pending := h.Since(through + 1)
	if pending.Len() == 0 {
		slog.Info("no captures newer than the archive", "dir", dir, "archivedThrough", through)
		return nil, nil
	}
	return WriteArchive(ctx, dir, pending)
}

// ArchivedThrough returns the newest capture time held by the archives in
// dir, or 0 when there is none. Archives are checked from the highest
// number down and the first one with a readable member decides.
func ArchivedThrough(dir string) (int64, error) {
	names, err := archiveNumbers(dir)
	if err != nil {
		return 0, err
	}
	for _, n := range slices.Backward(names) {
		path := filepath.Join(dir, strconv.Itoa(n)+defaults.ArchiveExtension)
		latest, err := newestMember(path)
		if err != nil {
			slog.Warn("skipping unreadable archive", "path", path, "error", err)
			continue
		}
		if latest > 0 {
			return latest, nil
		}
	}
	return 0, nil
}

// newestMember reads the tar headers of one archive and returns the highest
// capture time named by its members.
func newestMember(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, err
	}
	defer gz.Close()

	var latest int64
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return latest, nil
		}
		if err != nil {
			return latest, err
		}
		t, err := snapshot.ParseCaptureTime(strings.TrimSuffix(hdr.Name, ".json"))
		if err != nil {
			continue
		}
		latest = max(latest, t)
	}
}

// NextArchiveName returns the file name following the highest numbered
// archive in dir, starting at 1.tar.gz.
func NextArchiveName(dir string) (string, error) {
	nums, err := archiveNumbers(dir)
	if err != nil {
		return "", err
	}
	highest := 0
	if len(nums) > 0 {
		highest = nums[len(nums)-1]
	}
	return strconv.Itoa(highest+1) + defaults.ArchiveExtension, nil
}

// archiveNumbers returns the numbers of the N.tar.gz files in dir, ascending.
// A missing directory holds no archives.
func archiveNumbers(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list archive directory %s: %w", dir, err)
	}
	var nums []int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), defaults.ArchiveExtension) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSuffix(e.Name(), defaults.ArchiveExtension)); err == nil {
			nums = append(nums, n)
		}
	}
	slices.Sort(nums)
	return nums, nil
}
