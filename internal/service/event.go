package service

import (
	"context"
	"log"
	"time"

	"iot-telemetry-backend/internal/model"
	"iot-telemetry-backend/internal/store"
	"iot-telemetry-backend/internal/validation"
)

// Alerter receives threshold alerts after an event is committed. Dispatch
// must not block; it returns false when the alert was dropped.
type Alerter interface {
	Dispatch(alert model.Alert) bool
}

// EventService handles event ingestion, range queries, summaries and
// device activation.
type EventService struct {
	store  store.Store
	alerts Alerter
	now    func() time.Time
}

// NewEventService creates an EventService. alerts may be nil to disable
// threshold alerts.
func NewEventService(s store.Store, alerts Alerter) *EventService {
	return &EventService{
		store:  s,
		alerts: alerts,
		now:    time.Now,
	}
}

// StoreEvent records a reading for deviceID in a single transaction. The
// device must exist (NotFoundError otherwise) and the reading must pass
// validation.CheckEvent, the same rules the HTTP ingestion path applies.
func (s *EventService) StoreEvent(ctx context.Context, deviceID int64, temperature float64, eventTime time.Time) (*model.Event, error) {
	var (
		event  *model.Event
		device *model.Device
	)
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		d, err := tx.Devices().Get(ctx, deviceID)
		if err != nil {
			return notFound(err, deviceID)
		}
		if err := validation.CheckEvent(d, temperature, eventTime, s.now()); err != nil {
			return err
		}

		e := &model.Event{DeviceID: d.ID, Temperature: temperature, EventTime: eventTime}
		if err := tx.Events().Create(ctx, e); err != nil {
			return err
		}
		event, device = e, d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.checkThreshold(device, event)
	return event, nil
}

func (s *EventService) checkThreshold(d *model.Device, e *model.Event) {
	if s.alerts == nil {
		return
	}
	th := d.Threshold()
	if th == nil || e.Temperature <= *th {
		return
	}
	alert := model.Alert{
		DeviceID:    d.ID,
		DeviceName:  d.Name,
		Temperature: e.Temperature,
		Threshold:   *th,
		EventTime:   e.EventTime,
	}
	if !s.alerts.Dispatch(alert) {
		log.Printf("Alert queue full; dropped alert for device %d (%.2f > %.2f)", d.ID, e.Temperature, *th)
	}
}

// EventsByDeviceAndRange returns the device's events with start <= event_time <= end,
// newest first. The read is not transactional.
func (s *EventService) EventsByDeviceAndRange(ctx context.Context, deviceID int64, start, end time.Time) ([]model.Event, error) {
	return s.store.Events().ListByDeviceAndRange(ctx, deviceID, start, end)
}

// Summary returns max/min/avg temperature over the same event set as
// EventsByDeviceAndRange. Every field is nil when the set is empty.
func (s *EventService) Summary(ctx context.Context, deviceID int64, start, end time.Time) (model.Summary, error) {
	return s.store.Events().Summarize(ctx, deviceID, start, end)
}

// ActivateDevice sets the device online.
func (s *EventService) ActivateDevice(ctx context.Context, id int64) (*model.Device, error) {
	return s.setStatus(ctx, id, model.StatusOnline)
}

// DeactivateDevice sets the device offline.
func (s *EventService) DeactivateDevice(ctx context.Context, id int64) (*model.Device, error) {
	return s.setStatus(ctx, id, model.StatusOffline)
}

func (s *EventService) setStatus(ctx context.Context, id int64, status model.DeviceStatus) (*model.Device, error) {
	var updated *model.Device
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		d, err := tx.Devices().Get(ctx, id)
		if err != nil {
			return notFound(err, id)
		}
		d.Status = status
		if err := tx.Devices().Save(ctx, d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Device %d is now %s", id, status)
	return updated, nil
}
