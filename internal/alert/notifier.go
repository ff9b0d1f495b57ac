package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"crisisgo/internal/location"
	"crisisgo/internal/models"
	"crisisgo/internal/redis"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Notification is what a delivery channel receives for one contact.
type Notification struct {
	DispatchID string             `json:"dispatchId"`
	UserID     int64              `json:"userId"`
	AlertType  models.AlertType   `json:"alertType"`
	Message    string             `json:"message"`
	Location   *location.Position `json:"location,omitempty"`
	Contact    models.Contact     `json:"contact"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Notifier delivers one notification to one contact.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Multi sends through every channel. The contact counts as reached only
// when all channels accepted it.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier only records the delivery; no message leaves the process.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("dispatch_id", n.DispatchID),
		zap.Int64("contact_id", n.Contact.ID),
		zap.String("contact_name", n.Contact.Name),
		zap.String("phone", n.Contact.Phone),
		zap.String("alert_type", string(n.AlertType)),
	}
	if n.Location != nil {
		fields = append(fields, zap.String("location", n.Location.Format()))
	}
	l.logger.Info("emergency notification", fields...)
	return nil
}

// StreamNotifier appends one entry per contact to a Redis stream consumed by
// an external SMS/WhatsApp sender.
type StreamNotifier struct {
	client *redis.Client
	stream string
}

func NewStreamNotifier(client *redis.Client, stream string) *StreamNotifier {
	return &StreamNotifier{client: client, stream: stream}
}

func (s *StreamNotifier) Notify(ctx context.Context, n Notification) error {
	values := map[string]any{
		"dispatch_id": n.DispatchID,
		"user_id":     strconv.FormatInt(n.UserID, 10),
		"contact_id":  strconv.FormatInt(n.Contact.ID, 10),
		"name":        n.Contact.Name,
		"phone":       n.Contact.Phone,
		"alert_type":  string(n.AlertType),
		"message":     n.Message,
		"timestamp":   n.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if n.Contact.Email != nil {
		values["email"] = *n.Contact.Email
	}
	if n.Location != nil {
		values["location"] = n.Location.Encode()
	}
	if _, err := s.client.AddToStream(ctx, s.stream, values); err != nil {
		return fmt.Errorf("stream notify contact %d: %w", n.Contact.ID, err)
	}
	return nil
}

// WebhookNotifier POSTs the notification as JSON.
type WebhookNotifier struct {
	http *resty.Client
	url  string
}

func NewWebhookNotifier(url string, timeout time.Duration, headers map[string]string) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeaders(headers)
	return &WebhookNotifier{http: client, url: url}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	resp, err := w.http.R().
		SetContext(ctx).
		SetBody(n).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook notify contact %d: %w", n.Contact.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook notify contact %d: status %d", n.Contact.ID, resp.StatusCode())
	}
	return nil
}

// MQTTNotifier publishes the notification to a topic.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewMQTTNotifier(client mqtt.Client, topic string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, qos: qos}
}

func (m *MQTTNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	token := m.client.Publish(m.topic, m.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt notify contact %d: %w", n.Contact.ID, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", m.topic, err)
	}
	return nil
}
