package service

import (
	"context"
	"errors"

	"iot-telemetry-backend/internal/model"
	"iot-telemetry-backend/internal/store"
	"iot-telemetry-backend/internal/validation"
)

// DeviceService implements the Device Registry operations.
type DeviceService struct {
	store store.Store
}

// NewDeviceService creates a registry service over s.
func NewDeviceService(s store.Store) *DeviceService {
	return &DeviceService{store: s}
}

// Create validates req and inserts the device. The uniqueness check and the
// insert share one transaction; a unique violation at insert time is
// reported the same way as one found during validation.
func (s *DeviceService) Create(ctx context.Context, req validation.CreateDeviceRequest) (*model.Device, error) {
	var created *model.Device
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		d, err := validation.DeviceCreate(ctx, tx.Devices(), req)
		if err != nil {
			return err
		}
		if err := tx.Devices().Create(ctx, d); err != nil {
			return duplicateAsValidation(err)
		}
		created = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns the device with the given id.
func (s *DeviceService) Get(ctx context.Context, id int64) (*model.Device, error) {
	d, err := s.store.Devices().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, id)
	}
	return d, nil
}

// List returns every device ordered by id.
func (s *DeviceService) List(ctx context.Context) ([]model.Device, error) {
	return s.store.Devices().List(ctx)
}

// Update applies a partial update.
func (s *DeviceService) Update(ctx context.Context, id int64, req validation.UpdateDeviceRequest) (*model.Device, error) {
	var updated *model.Device
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		d, err := tx.Devices().Get(ctx, id)
		if err != nil {
			return notFound(err, id)
		}
		if err := validation.DeviceUpdate(ctx, tx.Devices(), d, req); err != nil {
			return err
		}
		if err := tx.Devices().Save(ctx, d); err != nil {
			return duplicateAsValidation(err)
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the device and all of its events.
func (s *DeviceService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Devices().Delete(ctx, id); err != nil {
		return notFound(err, id)
	}
	return nil
}

func notFound(err error, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return err
}

func duplicateAsValidation(err error) error {
	if errors.Is(err, store.ErrDuplicateDeviceID) {
		return validation.NewError("device_id", validation.MsgDeviceIDTaken)
	}
	return err
}
