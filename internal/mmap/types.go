package mmap

import "errors"

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the file is empty or too large to map.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrUnsupported is returned on platforms without shared writable mappings.
	ErrUnsupported = errors.New("mmap: writable mappings not supported on this platform")
)
