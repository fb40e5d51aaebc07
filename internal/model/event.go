package model

import "time"

// Event is a single temperature reading reported by a device.
// Events are append-only.
type Event struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	DeviceID    int64     `gorm:"not null;index:idx_events_device_time,priority:1" json:"device"`
	Temperature float64   `gorm:"not null" json:"temperature"`
	EventTime   time.Time `gorm:"not null;index:idx_events_device_time,priority:2" json:"event_time"`
}

// Summary holds aggregate statistics over a set of events.
// All fields are nil when the set is empty.
type Summary struct {
	MaxTemp *float64 `json:"max_temp"`
	MinTemp *float64 `json:"min_temp"`
	AvgTemp *float64 `json:"avg_temp"`
}

// Alert is raised when a stored event exceeds its device's configured threshold.
type Alert struct {
	DeviceID    int64
	DeviceName  string
	Temperature float64
	Threshold   float64
	EventTime   time.Time
}
