package board_downloader

import (
	"io"
	"os"
)

// TempFile is the writable handle returned by FileSystemOperations.CreateTemp.
type TempFile interface {
	io.Writer
	Name() string
	Close() error
}

// FileSystemOperations abstracts the file system calls of the AssetStore, allowing failures to be injected in tests.
type FileSystemOperations interface {
	// Stat returns file information, as os.Stat.
	Stat(path string) (os.FileInfo, error)
	// MkdirAll creates a directory and its parents; an existing directory is not an error.
	MkdirAll(path string, perm os.FileMode) error
	// CreateTemp creates a new uniquely named file in dir, as os.CreateTemp.
	CreateTemp(dir, pattern string) (TempFile, error)
	// Rename atomically replaces newpath with oldpath.
	Rename(oldpath, newpath string) error
	// Remove deletes the specified file from the filesystem.
	Remove(path string) error
}

// DefaultFileSystem provides a production implementation of FileSystemOperations using the os package.
type DefaultFileSystem struct{}

func (fs *DefaultFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (fs *DefaultFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fs *DefaultFileSystem) CreateTemp(dir, pattern string) (TempFile, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (fs *DefaultFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (fs *DefaultFileSystem) Remove(path string) error {
	return os.Remove(path)
}
