package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned by exact lookups when no entry has the key.
	ErrNotFound = errors.New("entry not found")
	// ErrConflict is returned when an entry with the same (service, entry_id)
	// already exists.
	ErrConflict = errors.New("entry already exists")
	// ErrUnavailable marks failures of the underlying persistence layer
	// (unreachable database, closed store).
	ErrUnavailable = errors.New("store unavailable")
)

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds while
// the original cause stays reachable through errors.Is/As.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
