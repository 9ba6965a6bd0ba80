package ports

import "io"

// File is an open read-only file.
type File interface {
	io.ReadSeeker
	io.ReaderAt
	io.Closer
}

// FileSystem abstracts file system operations.
type FileSystem interface {
	// Open opens a file for random-access reading.
	Open(path string) (File, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)
}
