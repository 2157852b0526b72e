package store

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup that requires a row finds none.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStorageUnavailable matches every StorageError.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError wraps a driver or query failure against either store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the driver error to errors.Is/As.
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsNotFound reports whether err signals a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

// IsStorage reports whether err came from a failing store.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
