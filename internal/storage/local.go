package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
)

// Local stores files under a root directory on disk.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) fullPath(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(cleanPath(p)))
}

func (l *Local) Save(_ context.Context, dir string, r io.Reader, name string) (model.FileInfo, error) {
	name = baseName(name)
	if name == "" {
		return model.FileInfo{}, apperr.ErrMissingField.With("file name")
	}
	p := path.Join(cleanPath(dir), name)
	full := l.fullPath(p)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return model.FileInfo{}, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(full)
		return model.FileInfo{}, fmt.Errorf("write file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("stat file: %w", err)
	}
	return newFileInfo(p, st.Size(), st.ModTime(), false), nil
}

func (l *Local) Fetch(_ context.Context, p string) (*File, error) {
	p = cleanPath(p)
	f, err := os.Open(l.fullPath(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if st.IsDir() {
		f.Close()
		return nil, apperr.ErrFileNotFound
	}
	return &File{FileInfo: newFileInfo(p, st.Size(), st.ModTime(), false), ReadCloser: f}, nil
}

func (l *Local) Delete(_ context.Context, p string) (model.FileInfo, error) {
	p = cleanPath(p)
	full := l.fullPath(p)
	st, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && st.IsDir()) {
		return model.FileInfo{}, apperr.ErrFileNotFound
	}
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("stat file: %w", err)
	}
	if err := os.Remove(full); err != nil {
		return model.FileInfo{}, fmt.Errorf("remove file: %w", err)
	}
	return newFileInfo(p, st.Size(), st.ModTime(), false), nil
}

func (l *Local) List(_ context.Context, dir string) ([]model.FileInfo, error) {
	dir = cleanPath(dir)
	entries, err := os.ReadDir(l.fullPath(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	files := make([]model.FileInfo, 0, len(entries))
	for _, e := range entries {
		st, err := e.Info()
		if err != nil {
			continue
		}
		size := st.Size()
		if e.IsDir() {
			size = 0
		}
		files = append(files, newFileInfo(path.Join(dir, e.Name()), size, st.ModTime(), e.IsDir()))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (l *Local) Rename(_ context.Context, p, newName string) (model.FileInfo, error) {
	newName = baseName(newName)
	if newName == "" {
		return model.FileInfo{}, apperr.ErrMissingField.With("new name")
	}
	p = cleanPath(p)
	src := l.fullPath(p)
	st, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return model.FileInfo{}, apperr.ErrFileNotFound
	}
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("stat file: %w", err)
	}

	target := path.Join(path.Dir(p), newName)
	if err := os.Rename(src, l.fullPath(target)); err != nil {
		return model.FileInfo{}, fmt.Errorf("rename file: %w", err)
	}
	return newFileInfo(target, st.Size(), st.ModTime(), st.IsDir()), nil
}
