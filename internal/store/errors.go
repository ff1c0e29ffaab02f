package store

import "errors"

// ErrNotFound is returned when a lookup by unique key matches no row.
var ErrNotFound = errors.New("store: not found")

// ErrLockConflict is returned when a NOWAIT row lock could not be acquired
// because another worker currently holds it (Postgres error code 55P03).
var ErrLockConflict = errors.New("store: row is locked by another worker")
