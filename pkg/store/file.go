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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/snapshot"
)

// FileStore reads and writes the recent and backup views.
type FileStore struct {
	recentPath string
	backupPath string

	// mu serializes writers within one process.
	mu sync.Mutex
}

// NewFileStore creates a store for the given view files.
func NewFileStore(recentPath, backupPath string) *FileStore {
	return &FileStore{
		recentPath: recentPath,
		backupPath: backupPath,
	}
}

// RecentPath returns the recent view file path.
func (s *FileStore) RecentPath() string {
	return s.recentPath
}

// BackupPath returns the backup view file path.
func (s *FileStore) BackupPath() string {
	return s.backupPath
}

// Load returns the backup view. A missing backup falls back to the recent
// view, and a missing recent view yields an empty history.
func (s *FileStore) Load(ctx context.Context) (*snapshot.History, error) {
	h, err := readHistory(ctx, s.backupPath)
	if err == nil {
		return h, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	slog.Debug("backup view not found, loading recent view", "path", s.backupPath)
	return s.LoadRecent(ctx)
}

// LoadRecent returns the recent view, or an empty history when it does not
// exist yet.
func (s *FileStore) LoadRecent(ctx context.Context) (*snapshot.History, error) {
	h, err := readHistory(ctx, s.recentPath)
	if os.IsNotExist(err) {
		return snapshot.NewHistory(), nil
	}
	return h, err
}

// Save writes the backup view and then the recent view.
func (s *FileStore) Save(ctx context.Context, recent, backup *snapshot.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeHistory(ctx, s.backupPath, backup); err != nil {
		return err
	}
	if err := writeHistory(ctx, s.recentPath, recent); err != nil {
		return err
	}

	slog.Debug("store saved",
		"recent", s.recentPath, "recentCaptures", recent.Len(),
		"backup", s.backupPath, "backupCaptures", backup.Len())
	return nil
}

func readHistory(ctx context.Context, path string) (*snapshot.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	h := snapshot.NewHistory()
	if len(b) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(b, h); err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeInternal,
			"failed to decode store file", err, map[string]any{"path": path})
	}
	return h, nil
}

func writeHistory(ctx context.Context, path string, h *snapshot.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return WriteFileAtomic(path, b, 0o644)
}

// WriteFileAtomic writes data to a temporary file in the target directory
// and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
