package model

import "time"

// FileInfo describes a stored file or folder in the virtual storage namespace.
type FileInfo struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	SizeHuman   string    `json:"size_human"`
	ModifiedAt  time.Time `json:"modified_at"`
	Extension   string    `json:"extension"`
	IsFile      bool      `json:"is_file"`
	IsDirectory bool      `json:"is_directory"`
}
