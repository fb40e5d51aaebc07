package validation

import (
	"sort"
	"strings"
)

// Field messages returned to clients.
const (
	MsgRequired               = "This field is required."
	MsgBlank                  = "This field may not be blank."
	MsgDeviceIDTaken          = "A device with this device_id already exists."
	MsgInvalidStatus          = "Invalid status. Must be 'online' or 'offline'."
	MsgConfigurationNotObject = "Configuration must be a valid JSON object."
	MsgThresholdNotNumber     = "Threshold must be a number."
	MsgTemperatureRange       = "Temperature must be between -50 and 150 degrees Celsius."
	MsgEventTimeFuture        = "Event time cannot be in the future."
	MsgDatetimeFormat         = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."
)

// Error is a set of per-field validation failures. It renders to JSON as
// {"field": ["message", ...]}.
type Error struct {
	Fields map[string][]string
}

// NewError returns an Error holding a single message.
func NewError(field, msg string) *Error {
	e := &Error{}
	e.Add(field, msg)
	return e
}

// Add appends msg to field's messages.
func (e *Error) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Merge copies every message from other into e.
func (e *Error) Merge(other *Error) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		for _, m := range msgs {
			e.Add(field, m)
		}
	}
}

// OrNil returns nil when no messages were recorded, so callers can return
// the result straight through an error interface.
func (e *Error) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.Fields[f], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
