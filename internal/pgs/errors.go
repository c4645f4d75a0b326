package pgs

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is returned when the account database content breaks the convention.
	ErrFormat = errors.New("invalid account database format")
	// ErrAdd is returned when an entry cannot be added.
	ErrAdd = errors.New("cannot add entry")
	// ErrRemove is returned when an entry cannot be removed.
	ErrRemove = errors.New("cannot remove entry")
	// ErrNotFound is returned when the requested user or group does not exist.
	ErrNotFound = errors.New("not found")
	// ErrReadOnly is returned when modifying a store opened read-only.
	ErrReadOnly = errors.New("account database is opened read-only")
	// ErrClosed is returned when using a store which was already saved or discarded.
	ErrClosed = errors.New("account database is closed")
)

// lineError reports a malformed line of one of the database files.
func lineError(path string, line int, format string, args ...any) error {
	return fmt.Errorf("%w: %s:%d: %s", ErrFormat, path, line, fmt.Sprintf(format, args...))
}

// violation reports a broken invariant between entries.
func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}
