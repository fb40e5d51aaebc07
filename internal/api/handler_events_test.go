package api

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-telemetry-backend/internal/validation"
)

type eventResponse struct {
	ID          int64     `json:"id"`
	Device      int64     `json:"device"`
	Temperature float64   `json:"temperature"`
	EventTime   time.Time `json:"event_time"`
}

func rangePath(kind string, deviceID int64, start, end string) string {
	q := url.Values{}
	q.Set("device_id", fmt.Sprint(deviceID))
	q.Set("start_date", start)
	q.Set("end_date", end)
	return "/events/" + kind + "/?" + q.Encode()
}

func TestCreateEvent(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	online := createTestDevice(t, router, map[string]any{"name": "Online", "device_id": "ON", "status": "online"})
	offline := createTestDevice(t, router, map[string]any{"name": "Sleepy", "device_id": "OFF"})
	past := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	w := doJSON(t, router, http.MethodPost, "/events/", map[string]any{
		"device": online.ID, "temperature": 22.5, "event_time": past,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	e := decode[eventResponse](t, w)
	assert.NotZero(t, e.ID)
	assert.Equal(t, online.ID, e.Device)
	assert.Equal(t, 22.5, e.Temperature)
	assert.True(t, past.Equal(e.EventTime))

	tests := []struct {
		name  string
		body  map[string]any
		field string
		msg   string
	}{
		{"offline device", map[string]any{"device": offline.ID, "temperature": 20.0, "event_time": past}, "device", "Device Sleepy is currently offline."},
		{"unknown device", map[string]any{"device": 999, "temperature": 20.0, "event_time": past}, "device", `Invalid pk "999" - object does not exist.`},
		{"too hot", map[string]any{"device": online.ID, "temperature": 150.1, "event_time": past}, "temperature", validation.MsgTemperatureRange},
		{"too cold", map[string]any{"device": online.ID, "temperature": -50.1, "event_time": past}, "temperature", validation.MsgTemperatureRange},
		{"future", map[string]any{"device": online.ID, "temperature": 20.0, "event_time": time.Now().Add(time.Hour)}, "event_time", validation.MsgEventTimeFuture},
		{"missing temperature", map[string]any{"device": online.ID, "event_time": past}, "temperature", validation.MsgRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/events/", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, decode[map[string][]string](t, w)[tt.field], tt.msg)
		})
	}
}

func TestCreateEvent_TimestampFormats(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	d := createTestDevice(t, router, map[string]any{"name": "Probe", "device_id": "P1", "status": "online"})
	want := time.Date(2023, 9, 18, 12, 0, 0, 0, time.UTC)

	for _, raw := range []string{"2023-09-18T12:00:00", "2023-09-18 12:00:00", "2023-09-18T14:00:00+02:00"} {
		t.Run(raw, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/events/", map[string]any{
				"device": d.ID, "temperature": 21.0, "event_time": raw,
			})
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			assert.True(t, want.Equal(decode[eventResponse](t, w).EventTime))
		})
	}

	w := doJSON(t, router, http.MethodPost, "/events/", map[string]any{
		"device": d.ID, "temperature": 21.0, "event_time": "yesterday-ish",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string][]string{"event_time": {validation.MsgDatetimeFormat}}, decode[map[string][]string](t, w))
}

func TestCreateEvent_UnknownDeviceReportsAllFields(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/events/", map[string]any{
		"device": 99, "temperature": 500.0, "event_time": time.Now().Add(time.Hour),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string][]string{
		"device":      {`Invalid pk "99" - object does not exist.`},
		"temperature": {validation.MsgTemperatureRange},
		"event_time":  {validation.MsgEventTimeFuture},
	}, decode[map[string][]string](t, w))
}

func TestListAndSummarizeEvents(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	d := createTestDevice(t, router, map[string]any{"name": "Probe", "device_id": "P1", "status": "online"})
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	for i, temp := range []float64{10, 20, 30} {
		w := doJSON(t, router, http.MethodPost, "/events/", map[string]any{
			"device": d.ID, "temperature": temp, "event_time": base.Add(time.Duration(i) * time.Hour),
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := doJSON(t, router, http.MethodGet, rangePath("list", d.ID, "2024-01-15 00:00:00", "2024-01-15 23:59:59"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	events := decode[[]eventResponse](t, w)
	require.Len(t, events, 3)
	assert.Equal(t, 30.0, events[0].Temperature)
	assert.Equal(t, 10.0, events[2].Temperature)

	// Bounds are inclusive.
	w = doJSON(t, router, http.MethodGet, rangePath("list", d.ID, "2024-01-15T11:00:00Z", "2024-01-15T12:00:00Z"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]eventResponse](t, w), 2)

	w = doJSON(t, router, http.MethodGet, rangePath("summary", d.ID, "2024-01-15", "2024-01-16"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"max_temp":30,"min_temp":10,"avg_temp":20}`, w.Body.String())

	w = doJSON(t, router, http.MethodGet, rangePath("summary", d.ID, "2023-01-01", "2023-01-02"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"max_temp":null,"min_temp":null,"avg_temp":null}`, w.Body.String())

	w = doJSON(t, router, http.MethodGet, rangePath("list", d.ID, "2023-01-01", "2023-01-02"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListEvents_CacheInvalidatedByIngestion(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	d := createTestDevice(t, router, map[string]any{"name": "Probe", "device_id": "P1", "status": "online"})
	path := rangePath("list", d.ID, "2024-01-01", "2024-12-31")

	w := doJSON(t, router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/events/", map[string]any{
		"device": d.ID, "temperature": 21.0, "event_time": time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]eventResponse](t, w), 1)
}

func TestEventQueries_BadParameters(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing all", "/events/list/", "Missing required parameters"},
		{"missing end", "/events/summary/?device_id=1&start_date=2024-01-01", "Missing required parameters"},
		{"bad device", "/events/list/?device_id=x&start_date=2024-01-01&end_date=2024-01-02", "Invalid device_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode[map[string]string](t, w)["error"])
		})
	}

	w := doJSON(t, router, http.MethodGet, "/events/list/?device_id=1&start_date=yesterday&end_date=2024-01-02", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "Invalid start_date")
}
