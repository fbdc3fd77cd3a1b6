// Package notify delivers "questions pending" events to patients' devices.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	commonredis "fluxia/common/redis"
)

// PendingItem is one diagnostic with unanswered questions today.
type PendingItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event is published once per patient per day.
type Event struct {
	PatientID string        `json:"patient_id"`
	Date      string        `json:"date"`
	Pending   []PendingItem `json:"pending"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// mqttClient is the subset of common/mqtt.Client used here.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPublisher sends events to <prefix>/patients/<id>/notifications.
type MQTTPublisher struct {
	client mqttClient
	prefix string
	qos    byte
	logger *zap.Logger
}

func NewMQTTPublisher(client mqttClient, prefix string, qos byte, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		prefix: strings.Trim(prefix, "/"),
		qos:    qos,
		logger: logger,
	}
}

// Topic for a patient's notifications.
func (p *MQTTPublisher) Topic(patientID string) string {
	if p.prefix == "" {
		return "patients/" + patientID + "/notifications"
	}
	return p.prefix + "/patients/" + patientID + "/notifications"
}

func (p *MQTTPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	topic := p.Topic(ev.PatientID)
	if err := p.client.Publish(topic, p.qos, false, payload); err != nil {
		return err
	}
	p.logger.Debug("Notification published to MQTT",
		zap.String("topic", topic),
		zap.Int("pending", len(ev.Pending)),
	)
	return nil
}

// StreamPublisher appends events to a Redis stream for downstream consumers.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev Event) error {
	if _, err := commonredis.PublishJSONToStream(ctx, p.client, p.stream, ev); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return nil
}

// PartialError is returned by Fanout when some publishers delivered the
// event and others failed.
type PartialError struct {
	Delivered int
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("delivered to %d publisher(s): %v", e.Delivered, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Fanout publishes to every publisher and joins their errors. The joined
// error is wrapped in *PartialError when at least one publisher succeeded.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil && len(errs) < len(f) {
		return &PartialError{Delivered: len(f) - len(errs), Err: err}
	}
	return err
}
