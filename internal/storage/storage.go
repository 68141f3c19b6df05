// Package storage keeps plugin jars and images in a virtual, slash-separated
// namespace backed by local disk or an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dukerupert/pluginhub/internal/model"
)

// FileStore is implemented by every storage backend.
type FileStore interface {
	Save(ctx context.Context, dir string, r io.Reader, name string) (model.FileInfo, error)
	Fetch(ctx context.Context, p string) (*File, error)
	Delete(ctx context.Context, p string) (model.FileInfo, error)
	List(ctx context.Context, dir string) ([]model.FileInfo, error)
	Rename(ctx context.Context, p, newName string) (model.FileInfo, error)
}

// File is an open stored file. Callers must Close it.
type File struct {
	model.FileInfo
	io.ReadCloser
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

type Config struct {
	Backend string
	Root    string
	S3      S3Config
}

// New returns the backend selected by cfg.Backend.
func New(cfg Config) (FileStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.Root)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// cleanPath roots p and resolves any ".." elements so the result can never
// climb above "/".
func cleanPath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

// baseName reduces a caller supplied file name to its last element.
func baseName(name string) string {
	b := path.Base(cleanPath(name))
	if b == "/" {
		return ""
	}
	return b
}

func newFileInfo(p string, size int64, modified time.Time, isDir bool) model.FileInfo {
	name := path.Base(p)
	info := model.FileInfo{
		Name:        name,
		Path:        p,
		Size:        size,
		SizeHuman:   humanize.Bytes(uint64(max(size, 0))),
		ModifiedAt:  modified.UTC(),
		IsFile:      !isDir,
		IsDirectory: isDir,
	}
	if !isDir {
		info.Extension = strings.TrimPrefix(path.Ext(name), ".")
	}
	return info
}
