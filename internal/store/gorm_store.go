package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"iot-telemetry-backend/internal/model"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store. The *gorm.DB should be opened
// with TranslateError enabled so unique violations map to ErrDuplicateDeviceID.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Devices() DeviceRepository             { return &gormDevices{db: s.db} }
func (s *gormStore) Events() EventRepository               { return &gormEvents{db: s.db} }
func (s *gormStore) Subscriptions() SubscriptionRepository { return &gormSubscriptions{db: s.db} }

// Transaction runs fn inside a database transaction.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

type gormDevices struct {
	db *gorm.DB
}

func (r *gormDevices) Create(ctx context.Context, d *model.Device) error {
	if d.Status == "" {
		d.Status = model.StatusOffline
	}
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return translateDeviceErr(err, "create device")
	}
	return nil
}

func (r *gormDevices) Get(ctx context.Context, id int64) (*model.Device, error) {
	var d model.Device
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device %d: %w", id, err)
	}
	return &d, nil
}

func (r *gormDevices) List(ctx context.Context) ([]model.Device, error) {
	devices := make([]model.Device, 0)
	if err := r.db.WithContext(ctx).Order("id").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (r *gormDevices) Save(ctx context.Context, d *model.Device) error {
	err := r.db.WithContext(ctx).
		Model(d).
		Select("name", "device_id", "status", "location", "configuration").
		Updates(d).Error
	if err != nil {
		return translateDeviceErr(err, fmt.Sprintf("update device %d", d.ID))
	}
	return nil
}

// Delete removes the device, its events and its subscription links in one
// transaction. The events FK also cascades; the explicit delete covers
// engines where foreign keys are not enforced.
func (r *gormDevices) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", id).Delete(&model.Event{}).Error; err != nil {
			return fmt.Errorf("failed to delete events for device %d: %w", id, err)
		}
		if err := tx.Exec("DELETE FROM subscription_device_mapping WHERE device_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to unlink subscriptions for device %d: %w", id, err)
		}
		res := tx.Delete(&model.Device{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete device %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *gormDevices) DeviceIDTaken(ctx context.Context, deviceID string, excludeID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Device{}).
		Where("device_id = ? AND id <> ?", deviceID, excludeID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check device_id %q: %w", deviceID, err)
	}
	return n > 0, nil
}

func translateDeviceErr(err error, op string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateDeviceID
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

type gormEvents struct {
	db *gorm.DB
}

func (r *gormEvents) Create(ctx context.Context, e *model.Event) error {
	e.EventTime = e.EventTime.UTC()
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create event for device %d: %w", e.DeviceID, err)
	}
	return nil
}

func (r *gormEvents) inRange(ctx context.Context, deviceID int64, start, end time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("device_id = ? AND event_time BETWEEN ? AND ?", deviceID, start.UTC(), end.UTC())
}

func (r *gormEvents) ListByDeviceAndRange(ctx context.Context, deviceID int64, start, end time.Time) ([]model.Event, error) {
	events := make([]model.Event, 0)
	if err := r.inRange(ctx, deviceID, start, end).Order("event_time DESC, id DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events for device %d: %w", deviceID, err)
	}
	return events, nil
}

func (r *gormEvents) Summarize(ctx context.Context, deviceID int64, start, end time.Time) (model.Summary, error) {
	var sum model.Summary
	err := r.inRange(ctx, deviceID, start, end).
		Select("MAX(temperature) AS max_temp, MIN(temperature) AS min_temp, AVG(temperature) AS avg_temp").
		Scan(&sum).Error
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to summarize events for device %d: %w", deviceID, err)
	}
	return sum, nil
}

type gormSubscriptions struct {
	db *gorm.DB
}

func (r *gormSubscriptions) Upsert(ctx context.Context, sub *model.PushSubscription, deviceIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit("Devices").Create(sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		devices := make([]*model.Device, 0, len(deviceIDs))
		if len(deviceIDs) > 0 {
			if err := tx.Find(&devices, deviceIDs).Error; err != nil {
				return fmt.Errorf("failed to load subscribed devices: %w", err)
			}
		}

		if err := tx.Model(sub).Association("Devices").Replace(devices); err != nil {
			return fmt.Errorf("failed to replace subscribed devices: %w", err)
		}
		sub.Devices = devices
		return nil
	})
}

func (r *gormSubscriptions) Get(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := r.db.WithContext(ctx).Preload("Devices").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

func (r *gormSubscriptions) Delete(ctx context.Context, endpoint string) error {
	if err := r.db.WithContext(ctx).Select("Devices").Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (r *gormSubscriptions) ListForDevice(ctx context.Context, deviceID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := r.db.WithContext(ctx).
		Joins("JOIN subscription_device_mapping sdm ON sdm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sdm.device_id = ?", deviceID).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for device %d: %w", deviceID, err)
	}
	return subs, nil
}
