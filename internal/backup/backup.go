// Package backup snapshots the SQLite database into the file store and
// restores snapshots from it.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/storage"
)

// Dir is the storage folder holding snapshots.
const Dir = "/backups"

const (
	filePrefix  = "pluginhub-"
	plainSuffix = ".db"
	cryptSuffix = ".db.enc"
	stampLayout = "20060102T150405Z"
)

type Manager struct {
	db         *sqlx.DB
	files      storage.FileStore
	passphrase string
	now        func() time.Time
	logger     *slog.Logger
}

// NewManager returns a manager writing to files. With a non-empty
// passphrase snapshots are encrypted.
func NewManager(db *sqlx.DB, files storage.FileStore, passphrase string, logger *slog.Logger) *Manager {
	return &Manager{db: db, files: files, passphrase: passphrase, now: time.Now, logger: logger}
}

func (m *Manager) fileName() string {
	name := filePrefix + m.now().UTC().Format(stampLayout)
	if m.passphrase != "" {
		return name + cryptSuffix
	}
	return name + plainSuffix
}

// Run writes a consistent copy of the database to the store.
func (m *Manager) Run(ctx context.Context) (model.FileInfo, error) {
	tmpDir, err := os.MkdirTemp("", "pluginhub-backup-")
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return model.FileInfo{}, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(snapshot)
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("read snapshot: %w", err)
	}
	if m.passphrase != "" {
		if data, err = Encrypt(data, m.passphrase); err != nil {
			return model.FileInfo{}, err
		}
	}

	info, err := m.files.Save(ctx, Dir, bytes.NewReader(data), m.fileName())
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("store snapshot: %w", err)
	}
	m.logger.Info("backup written", "path", info.Path, "size", info.SizeHuman, "encrypted", m.passphrase != "")
	return info, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]model.FileInfo, error) {
	files, err := m.files.List(ctx, Dir)
	if errors.Is(err, apperr.ErrFolderNotFound) {
		return []model.FileInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := files[:0]
	for _, f := range files {
		if f.IsFile && strings.HasPrefix(f.Name, filePrefix) {
			out = append(out, f)
		}
	}
	// The timestamp in the name sorts lexically.
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// Prune keeps the newest keep snapshots and deletes the rest.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	files, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files[min(keep, len(files)):] {
		if _, err := m.files.Delete(ctx, f.Path); err != nil {
			return removed, fmt.Errorf("delete %s: %w", f.Name, err)
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("old backups pruned", "count", removed)
	}
	return removed, nil
}

// Restore fetches the named snapshot and writes the plain database to dst.
// The server must not be running against dst.
func (m *Manager) Restore(ctx context.Context, name, dst string) error {
	f, err := m.files.Fetch(ctx, path.Join(Dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if strings.HasSuffix(name, cryptSuffix) {
		if m.passphrase == "" {
			return fmt.Errorf("snapshot %s is encrypted and no passphrase is configured", name)
		}
		if data, err = Decrypt(data, m.passphrase); err != nil {
			return err
		}
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return fmt.Errorf("write database: %w", err)
	}
	m.logger.Info("backup restored", "name", name, "dst", dst)
	return nil
}
