package store

import (
	"context"
	"time"

	"iot-telemetry-backend/internal/model"
)

// DeviceRepository is the Device Registry's persistence contract.
type DeviceRepository interface {
	Create(ctx context.Context, d *model.Device) error
	Get(ctx context.Context, id int64) (*model.Device, error)
	List(ctx context.Context) ([]model.Device, error)
	Save(ctx context.Context, d *model.Device) error
	// Delete removes the device and every event it owns.
	Delete(ctx context.Context, id int64) error
	// DeviceIDTaken reports whether another device (id != excludeID) already uses deviceID.
	DeviceIDTaken(ctx context.Context, deviceID string, excludeID int64) (bool, error)
}

// EventRepository is the append-only Event Store.
type EventRepository interface {
	Create(ctx context.Context, e *model.Event) error
	// ListByDeviceAndRange returns events with start <= event_time <= end, newest first.
	ListByDeviceAndRange(ctx context.Context, deviceID int64, start, end time.Time) ([]model.Event, error)
	// Summarize aggregates the same event set ListByDeviceAndRange would return.
	Summarize(ctx context.Context, deviceID int64, start, end time.Time) (model.Summary, error)
}

// SubscriptionRepository persists push subscriptions and their device links.
type SubscriptionRepository interface {
	// Upsert creates or replaces the subscription keys and its device set.
	Upsert(ctx context.Context, sub *model.PushSubscription, deviceIDs []int64) error
	Get(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	Delete(ctx context.Context, endpoint string) error
	ListForDevice(ctx context.Context, deviceID int64) ([]model.PushSubscription, error)
}

// Store groups the repositories and scopes them to transactions.
type Store interface {
	Devices() DeviceRepository
	Events() EventRepository
	Subscriptions() SubscriptionRepository
	// Transaction runs fn against a Store bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}
