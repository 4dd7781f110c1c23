package internal

import "fmt"

// StorageError represents errors accessing local state files
type StorageError struct {
	Path string
	Op   string // "read", "parse", "write", "remove"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
