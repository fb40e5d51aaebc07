package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"iot-telemetry-backend/internal/model"
)

// memState is the full contents of a MemoryStore.
type memState struct {
	nextDeviceID int64
	nextEventID  int64
	devices      map[int64]model.Device
	events       map[int64]model.Event
	subs         map[string]model.PushSubscription
	subDevices   map[string][]int64
}

func newMemState() *memState {
	return &memState{
		devices:    make(map[int64]model.Device),
		events:     make(map[int64]model.Event),
		subs:       make(map[string]model.PushSubscription),
		subDevices: make(map[string][]int64),
	}
}

func (st *memState) clone() *memState {
	c := newMemState()
	c.nextDeviceID = st.nextDeviceID
	c.nextEventID = st.nextEventID
	for k, v := range st.devices {
		c.devices[k] = v
	}
	for k, v := range st.events {
		c.events[k] = v
	}
	for k, v := range st.subs {
		c.subs[k] = v
	}
	for k, v := range st.subDevices {
		c.subDevices[k] = append([]int64(nil), v...)
	}
	return c
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store. Transactions serialize on a single
// mutex and roll back by restoring a snapshot.
type MemoryStore struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.Mutex{}, state: newMemState()}
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) Devices() DeviceRepository             { return &memDevices{s} }
func (s *MemoryStore) Events() EventRepository               { return &memEvents{s} }
func (s *MemoryStore) Subscriptions() SubscriptionRepository { return &memSubscriptions{s} }

// Transaction runs fn while holding the store lock. Nested calls join the
// outer transaction.
func (s *MemoryStore) Transaction(_ context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	tx := &MemoryStore{mu: s.mu, state: s.state, inTx: true}
	if err := fn(tx); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

type memDevices struct{ s *MemoryStore }

func (r *memDevices) Create(_ context.Context, d *model.Device) error {
	defer r.s.lock()()
	st := r.s.state
	for _, existing := range st.devices {
		if existing.DeviceID == d.DeviceID {
			return ErrDuplicateDeviceID
		}
	}
	if d.Status == "" {
		d.Status = model.StatusOffline
	}
	st.nextDeviceID++
	d.ID = st.nextDeviceID
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	st.devices[d.ID] = *d
	return nil
}

func (r *memDevices) Get(_ context.Context, id int64) (*model.Device, error) {
	defer r.s.lock()()
	d, ok := r.s.state.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (r *memDevices) List(_ context.Context) ([]model.Device, error) {
	defer r.s.lock()()
	devices := make([]model.Device, 0, len(r.s.state.devices))
	for _, d := range r.s.state.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func (r *memDevices) Save(_ context.Context, d *model.Device) error {
	defer r.s.lock()()
	st := r.s.state
	old, ok := st.devices[d.ID]
	if !ok {
		return ErrNotFound
	}
	for id, existing := range st.devices {
		if id != d.ID && existing.DeviceID == d.DeviceID {
			return ErrDuplicateDeviceID
		}
	}
	d.CreatedAt = old.CreatedAt
	st.devices[d.ID] = *d
	return nil
}

func (r *memDevices) Delete(_ context.Context, id int64) error {
	defer r.s.lock()()
	st := r.s.state
	if _, ok := st.devices[id]; !ok {
		return ErrNotFound
	}
	delete(st.devices, id)
	for eid, e := range st.events {
		if e.DeviceID == id {
			delete(st.events, eid)
		}
	}
	for endpoint, ids := range st.subDevices {
		st.subDevices[endpoint] = removeID(ids, id)
	}
	return nil
}

func (r *memDevices) DeviceIDTaken(_ context.Context, deviceID string, excludeID int64) (bool, error) {
	defer r.s.lock()()
	for id, d := range r.s.state.devices {
		if id != excludeID && d.DeviceID == deviceID {
			return true, nil
		}
	}
	return false, nil
}

type memEvents struct{ s *MemoryStore }

func (r *memEvents) Create(_ context.Context, e *model.Event) error {
	defer r.s.lock()()
	st := r.s.state
	if _, ok := st.devices[e.DeviceID]; !ok {
		return ErrNotFound
	}
	st.nextEventID++
	e.ID = st.nextEventID
	e.EventTime = e.EventTime.UTC()
	st.events[e.ID] = *e
	return nil
}

func (r *memEvents) matching(deviceID int64, start, end time.Time) []model.Event {
	events := make([]model.Event, 0)
	for _, e := range r.s.state.events {
		if e.DeviceID != deviceID || e.EventTime.Before(start) || e.EventTime.After(end) {
			continue
		}
		events = append(events, e)
	}
	return events
}

func (r *memEvents) ListByDeviceAndRange(_ context.Context, deviceID int64, start, end time.Time) ([]model.Event, error) {
	defer r.s.lock()()
	events := r.matching(deviceID, start, end)
	sort.Slice(events, func(i, j int) bool {
		if events[i].EventTime.Equal(events[j].EventTime) {
			return events[i].ID > events[j].ID
		}
		return events[i].EventTime.After(events[j].EventTime)
	})
	return events, nil
}

func (r *memEvents) Summarize(_ context.Context, deviceID int64, start, end time.Time) (model.Summary, error) {
	defer r.s.lock()()
	events := r.matching(deviceID, start, end)
	if len(events) == 0 {
		return model.Summary{}, nil
	}

	maxT, minT, total := events[0].Temperature, events[0].Temperature, 0.0
	for _, e := range events {
		if e.Temperature > maxT {
			maxT = e.Temperature
		}
		if e.Temperature < minT {
			minT = e.Temperature
		}
		total += e.Temperature
	}
	avg := total / float64(len(events))
	return model.Summary{MaxTemp: &maxT, MinTemp: &minT, AvgTemp: &avg}, nil
}

type memSubscriptions struct{ s *MemoryStore }

func (r *memSubscriptions) Upsert(_ context.Context, sub *model.PushSubscription, deviceIDs []int64) error {
	defer r.s.lock()()
	st := r.s.state
	if existing, ok := st.subs[sub.Endpoint]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	var linked []int64
	sub.Devices = nil
	for _, id := range deviceIDs {
		if d, ok := st.devices[id]; ok {
			linked = append(linked, id)
			sub.Devices = append(sub.Devices, &d)
		}
	}
	stored := *sub
	stored.Devices = nil
	st.subs[sub.Endpoint] = stored
	st.subDevices[sub.Endpoint] = linked
	return nil
}

func (r *memSubscriptions) Get(_ context.Context, endpoint string) (*model.PushSubscription, error) {
	defer r.s.lock()()
	st := r.s.state
	sub, ok := st.subs[endpoint]
	if !ok {
		return nil, ErrNotFound
	}
	for _, id := range st.subDevices[endpoint] {
		if d, ok := st.devices[id]; ok {
			sub.Devices = append(sub.Devices, &d)
		}
	}
	return &sub, nil
}

func (r *memSubscriptions) Delete(_ context.Context, endpoint string) error {
	defer r.s.lock()()
	delete(r.s.state.subs, endpoint)
	delete(r.s.state.subDevices, endpoint)
	return nil
}

func (r *memSubscriptions) ListForDevice(_ context.Context, deviceID int64) ([]model.PushSubscription, error) {
	defer r.s.lock()()
	st := r.s.state
	var subs []model.PushSubscription
	for endpoint, ids := range st.subDevices {
		for _, id := range ids {
			if id == deviceID {
				subs = append(subs, st.subs[endpoint])
				break
			}
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Endpoint < subs[j].Endpoint })
	return subs, nil
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
