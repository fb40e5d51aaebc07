package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"iot-telemetry-backend/internal/model"
	"iot-telemetry-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Payload is the JSON body delivered to subscribers.
type Payload struct {
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	DeviceID    int64   `json:"device_id"`
	Temperature float64 `json:"temperature"`
	Threshold   float64 `json:"threshold"`
	EventTime   string  `json:"event_time"`
}

// WorkerPool delivers threshold alerts to push subscribers.
type WorkerPool struct {
	size    int
	jobs    chan model.Alert
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool with a queue of queueSize alerts.
func NewWorkerPool(size, queueSize int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Alert, queueSize),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Alert worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			log.Printf("Alert worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert without blocking. It returns false when the
// queue is full and the alert was dropped.
func (wp *WorkerPool) Dispatch(alert model.Alert) bool {
	select {
	case wp.jobs <- alert:
		return true
	default:
		return false
	}
}

func (wp *WorkerPool) sendAlert(ctx context.Context, alert model.Alert) {
	subscriptions, err := wp.store.Subscriptions().ListForDevice(ctx, alert.DeviceID)
	if err != nil {
		log.Printf("Error fetching subscriptions for device %d: %v", alert.DeviceID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(buildPayload(alert))
	if err != nil {
		log.Printf("Error encoding alert for device %d: %v", alert.DeviceID, err)
		return
	}

	log.Printf("Sending %d alerts for device %d", len(subscriptions), alert.DeviceID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func buildPayload(alert model.Alert) Payload {
	label := alert.DeviceName
	if label == "" {
		label = fmt.Sprintf("%d", alert.DeviceID)
	}
	return Payload{
		Title:       "Temperature alert",
		Body:        fmt.Sprintf("Device %s reported %.1f°C, above threshold %.1f°C", label, alert.Temperature, alert.Threshold),
		DeviceID:    alert.DeviceID,
		Temperature: alert.Temperature,
		Threshold:   alert.Threshold,
		EventTime:   alert.EventTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// sendNotification sends a single web push notification and drops
// subscriptions the push service reports as gone.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.Subscriptions().Delete(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
