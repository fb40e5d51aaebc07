package model

import (
	"time"

	"gorm.io/datatypes"
)

// DeviceStatus is the two-state connectivity flag of a device.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
)

// Valid reports whether s is one of the known statuses.
func (s DeviceStatus) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

// Device represents a registered telemetry source.
type Device struct {
	ID            int64                             `gorm:"primaryKey" json:"id"`
	Name          string                            `gorm:"size:100;not null" json:"name"`
	DeviceID      string                            `gorm:"size:100;uniqueIndex;not null" json:"device_id"`
	Status        DeviceStatus                      `gorm:"size:20;not null;default:'offline'" json:"status"`
	Location      *string                           `gorm:"size:200" json:"location"`
	Configuration datatypes.JSONType[Configuration] `json:"configuration"`
	CreatedAt     time.Time                         `gorm:"not null;autoCreateTime" json:"created_at"`

	// Associations
	Events []Event `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE" json:"-"`
}

// Threshold returns the configured alert threshold, or nil if none is set.
func (d *Device) Threshold() *float64 {
	return d.Configuration.Data().Threshold
}
