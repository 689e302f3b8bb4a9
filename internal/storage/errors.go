package storage

import (
	"errors"
	"fmt"

	"seasonality-lab/internal/domain"
)

// Storage errors for append-only stores.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Output tables are written once per run.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// CheckResultSet reports ErrInvalidInput when set does not name both a data
// version and a config hash.
func CheckResultSet(set domain.ResultSet) error {
	if set.DataVersion == "" || set.ConfigHash == "" {
		return fmt.Errorf("%w: result set requires data_version and config_hash", ErrInvalidInput)
	}
	return nil
}
