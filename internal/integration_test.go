package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-telemetry-backend/config"
	"iot-telemetry-backend/internal/api"
	"iot-telemetry-backend/internal/db"
	"iot-telemetry-backend/internal/model"
	"iot-telemetry-backend/internal/service"
	"iot-telemetry-backend/internal/store"
)

type alertRecorder struct {
	mu     sync.Mutex
	alerts []model.Alert
}

func (r *alertRecorder) Dispatch(alert model.Alert) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return true
}

func (r *alertRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

// TestDeviceLifecycle drives a device from registration through ingestion,
// queries and deletion against a real sqlite database.
func TestDeviceLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// --- Test Setup ---
	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	appStore := store.NewGormStore(gormDB)
	alerts := &alertRecorder{}
	handler := api.NewHandler(appStore, service.NewDeviceService(appStore), service.NewEventService(appStore, alerts), nil)
	router := api.NewRouter(handler, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 30})

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}
	rangeQuery := func(kind string, id int64, start, end string) string {
		q := url.Values{"device_id": {fmt.Sprint(id)}, "start_date": {start}, "end_date": {end}}
		return "/events/" + kind + "/?" + q.Encode()
	}

	// --- Step 1: register a device (offline by default) ---
	w := do(http.MethodPost, "/devices/", map[string]any{
		"name":          "Sensor 1",
		"device_id":     "TEMP001",
		"location":      "Room 101",
		"configuration": map[string]any{"threshold": 25.5, "unit": "Celsius"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var device struct {
		ID            int64          `json:"id"`
		Status        string         `json:"status"`
		Configuration map[string]any `json:"configuration"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &device))
	assert.Equal(t, "offline", device.Status)
	assert.Equal(t, "Celsius", device.Configuration["unit"])

	eventTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	event := map[string]any{"device": device.ID, "temperature": 22.5, "event_time": eventTime}

	// --- Step 2: ingestion is refused while offline ---
	w = do(http.MethodPost, "/events/", event)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"device":["Device Sensor 1 is currently offline."]}`, w.Body.String())

	// --- Step 3: activate, then ingest ---
	w = do(http.MethodPost, fmt.Sprintf("/devices/%d/activate/", device.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"Device Sensor 1 activated"}`, w.Body.String())

	w = do(http.MethodPost, "/events/", event)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 0, alerts.count())

	w = do(http.MethodPost, "/events/", map[string]any{"device": device.ID, "temperature": 27.5, "event_time": eventTime.Add(time.Hour)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, alerts.count())

	// --- Step 4: range query and summary ---
	w = do(http.MethodGet, rangeQuery("list", device.ID, "2024-01-15 00:00:00", "2024-01-15 23:59:59"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events []struct {
		Device      int64     `json:"device"`
		Temperature float64   `json:"temperature"`
		EventTime   time.Time `json:"event_time"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, 27.5, events[0].Temperature)
	assert.True(t, eventTime.Equal(events[1].EventTime))

	w = do(http.MethodGet, rangeQuery("summary", device.ID, "2024-01-15", "2024-01-16"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"max_temp":27.5,"min_temp":22.5,"avg_temp":25}`, w.Body.String())

	// --- Step 5: deleting the device removes its events ---
	w = do(http.MethodDelete, fmt.Sprintf("/devices/%d/", device.ID), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	var remaining int64
	require.NoError(t, gormDB.Model(&model.Event{}).Where("device_id = ?", device.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	w = do(http.MethodGet, fmt.Sprintf("/devices/%d/", device.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
