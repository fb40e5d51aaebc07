package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-telemetry-backend/internal/model"
	"iot-telemetry-backend/internal/store"
	"iot-telemetry-backend/internal/validation"
)

// racingStore reports every device_id as free during validation, so the
// insert itself hits the uniqueness constraint.
type racingStore struct {
	*store.MemoryStore
}

func (r racingStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return r.MemoryStore.Transaction(ctx, func(tx store.Store) error {
		return fn(racingTx{tx})
	})
}

type racingTx struct{ store.Store }

func (r racingTx) Devices() store.DeviceRepository { return blindDevices{r.Store.Devices()} }

type blindDevices struct{ store.DeviceRepository }

func (blindDevices) DeviceIDTaken(context.Context, string, int64) (bool, error) { return false, nil }

func TestDeviceService_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	devices := NewDeviceService(store.NewMemoryStore())
	_, err := devices.Create(ctx, validation.CreateDeviceRequest{Name: "A", DeviceID: "sensor_12345"})
	require.NoError(t, err)

	_, err = devices.Create(ctx, validation.CreateDeviceRequest{Name: "B", DeviceID: "sensor_12345"})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{validation.MsgDeviceIDTaken}, verr.Fields["device_id"])

	all, err := devices.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "no row is written for a duplicate")
}

func TestDeviceService_CreateDuplicateLostRace(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Devices().Create(ctx, &model.Device{Name: "A", DeviceID: "dup"}))

	devices := NewDeviceService(racingStore{mem})
	_, err := devices.Create(ctx, validation.CreateDeviceRequest{Name: "B", DeviceID: "dup"})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{validation.MsgDeviceIDTaken}, verr.Fields["device_id"])
}

func TestDeviceService_GetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	devices := NewDeviceService(s)
	events := NewEventService(s, nil)

	d, err := devices.Create(ctx, validation.CreateDeviceRequest{Name: "Probe", DeviceID: "probe", Status: "online"})
	require.NoError(t, err)
	createdAt := d.CreatedAt

	loc := "Lab"
	updated, err := devices.Update(ctx, d.ID, validation.UpdateDeviceRequest{Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, "Lab", *updated.Location)
	assert.Equal(t, "Probe", updated.Name)
	assert.True(t, createdAt.Equal(updated.CreatedAt), "created_at is immutable")

	_, err = events.StoreEvent(ctx, d.ID, 21, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	require.NoError(t, devices.Delete(ctx, d.ID))

	_, err = devices.Get(ctx, d.ID)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))

	remaining, err := events.EventsByDeviceAndRange(ctx, d.ID, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, remaining, "events are deleted with their device")

	assert.True(t, errors.As(devices.Delete(ctx, d.ID), &nf))
	_, err = devices.Update(ctx, d.ID, validation.UpdateDeviceRequest{Location: &loc})
	assert.True(t, errors.As(err, &nf))
}
