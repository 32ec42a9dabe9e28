// Package sentinel holds the storage-level errors stores return and services translate.
package sentinel

import "errors"

var (
	// ErrNotFound means the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness constraint rejected the write.
	ErrConflict = errors.New("conflict")
)
