package service

import (
	"fmt"

	"iot-telemetry-backend/internal/store"
)

// NotFoundError reports a device id that does not resolve. It matches
// store.ErrNotFound under errors.Is.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Device with ID %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return store.ErrNotFound
}
