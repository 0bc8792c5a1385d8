// Package storage is the file-system abstraction behind the request inbox:
// request files are listed and read from it, results written to it.
package storage

import "time"

// FileInfo describes one stored file.
type FileInfo struct {
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// Provider is the interface for rooted file operations. Every path is
// relative to the root.
type Provider interface {
	// List returns the regular files directly inside dir whose names end in
	// one of exts (all files when exts is empty). Dotfiles are skipped.
	List(dir string, exts ...string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, replacing any existing target.
	Move(oldPath, newPath string) error
}
