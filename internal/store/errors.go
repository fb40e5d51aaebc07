package store

import "errors"

// Domain errors for the store package.
//
// Callers check them with errors.Is:
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateDeviceID is returned when a write would violate device_id uniqueness.
	ErrDuplicateDeviceID = errors.New("store: duplicate device_id")
)
