package database

import "errors"

var (
	// ErrNoPath is returned by Open when no database path is configured.
	ErrNoPath = errors.New("database: path is required")

	// ErrMissingDownSQL is returned when rolling back a migration without a down file.
	ErrMissingDownSQL = errors.New("database: migration has no down SQL")
)
