// Package store persists the canonical table as a Parquet file and a SQLite
// database, and rotates the previous versions into a backup directory.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lapdcalls/internal/calls"
	"lapdcalls/internal/metrics"
)

// ErrNotFound means no persisted table exists.
var ErrNotFound = errors.New("no persisted table")

const (
	backupPrefix     = "lapd_calls_backup_"
	backupTimeLayout = "20060102_150405"
)

type Paths struct {
	Parquet   string
	SQLite    string
	BackupDir string
}

type Store struct {
	paths Paths
	log   *slog.Logger
}

func New(log *slog.Logger, paths Paths) *Store {
	return &Store{paths: paths, log: log}
}

func (s *Store) Paths() Paths { return s.paths }

// Write persists the table to both sinks.
func (s *Store) Write(ctx context.Context, t *calls.Table) error {
	if err := WriteParquet(s.paths.Parquet, t); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	metrics.RowsWrittenTotal.WithLabelValues("parquet").Add(float64(t.Len()))
	s.log.Info("parquet file saved", "path", s.paths.Parquet, "size", fileSize(s.paths.Parquet))

	if err := WriteSQLite(ctx, s.paths.SQLite, t); err != nil {
		return fmt.Errorf("write sqlite: %w", err)
	}
	metrics.RowsWrittenTotal.WithLabelValues("sqlite").Add(float64(t.Len()))
	s.log.Info("sqlite database saved", "path", s.paths.SQLite, "size", fileSize(s.paths.SQLite))
	return nil
}

// Backup is the set of files moved aside by one backup.
type Backup struct {
	Parquet string
	SQLite  string
}

// Backup renames the current files into the backup directory under a
// timestamped name. Missing files are skipped.
func (s *Store) Backup(now time.Time) (Backup, error) {
	var b Backup
	stamp := now.Format(backupTimeLayout)
	for _, f := range []struct {
		src string
		ext string
		dst *string
	}{
		{s.paths.Parquet, ".parquet", &b.Parquet},
		{s.paths.SQLite, ".db", &b.SQLite},
	} {
		if _, err := os.Stat(f.src); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.MkdirAll(s.paths.BackupDir, 0o755); err != nil {
			return b, fmt.Errorf("mkdir backups: %w", err)
		}
		dst := filepath.Join(s.paths.BackupDir, backupPrefix+stamp+f.ext)
		if err := os.Rename(f.src, dst); err != nil {
			return b, fmt.Errorf("backup %s: %w", f.src, err)
		}
		*f.dst = dst
		s.log.Info("backed up file", "from", f.src, "to", dst)
	}
	return b, nil
}

// LatestBackup returns the newest Parquet backup, or ErrNotFound.
func (s *Store) LatestBackup() (string, error) {
	entries, err := os.ReadDir(s.paths.BackupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), ".parquet") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", ErrNotFound
	}
	sort.Strings(names)
	return filepath.Join(s.paths.BackupDir, names[len(names)-1]), nil
}

// LoadHistorical reads the persisted table from the current Parquet file,
// else from the newest backup. It returns the path it read, or ErrNotFound
// when neither exists.
func (s *Store) LoadHistorical(ctx context.Context) (*calls.Table, string, error) {
	t, err := ReadParquet(ctx, s.paths.Parquet)
	if err == nil {
		return t, s.paths.Parquet, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}
	path, err := s.LatestBackup()
	if err != nil {
		return nil, "", err
	}
	t, err = ReadParquet(ctx, path)
	if err != nil {
		return nil, "", err
	}
	return t, path, nil
}

// replaceFile runs write against a temporary file next to path and renames
// it over path on success.
func replaceFile(path string, write func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func fileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return fmt.Sprintf("%.1f MB", float64(fi.Size())/(1024*1024))
}
