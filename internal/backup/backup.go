// Package backup writes compressed, checksummed snapshots of the run history
// and restores them.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/quorumlab/internal/store"
)

// DirName is the backup directory inside the data directory.
const DirName = "backups"

// filePrefix starts every backup file name.
const filePrefix = "quorumlab-backup-"

// Dir returns the backup directory for dataDir.
func Dir(dataDir string) string {
	return filepath.Join(dataDir, DirName)
}

// GeneratePath returns a timestamped backup file name in dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, filePrefix+now.UTC().Format("20060102-150405")+".jsonl.gz")
}

// Backup writes every run in s to path and returns the written header.
func Backup(ctx context.Context, s store.RunStore, path string) (*Header, error) {
	var payload bytes.Buffer
	n, err := store.ExportJSONL(ctx, s, &payload, store.RunFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to export runs: %w", err)
	}

	h := &Header{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		RunCount:  n,
	}
	if err := Write(path, h, payload.Bytes()); err != nil {
		return nil, err
	}
	return h, nil
}

// Restore loads the runs in a backup file into s, replacing runs with the same
// ID. It returns the number of runs restored.
func Restore(ctx context.Context, s store.RunStore, path string) (int, error) {
	h, payload, err := Read(path)
	if err != nil {
		return 0, err
	}
	n, err := store.ImportJSONL(ctx, s, bytes.NewReader(payload))
	if err != nil {
		return n, fmt.Errorf("failed to import runs: %w", err)
	}
	if n != h.RunCount {
		return n, fmt.Errorf("backup header lists %d runs, payload had %d", h.RunCount, n)
	}
	return n, nil
}
