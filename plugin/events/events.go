// Package events publishes appointment lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Type is the kind of an appointment event.
type Type string

const (
	TypeAppointmentCreated Type = "appointment.created"
	TypeAppointmentUpdated Type = "appointment.updated"
	TypeAppointmentDeleted Type = "appointment.deleted"
)

// AppointmentPayload is the appointment snapshot carried by an event.
// Times are Unix seconds in the canonical zone.
type AppointmentPayload struct {
	ID         int32  `json:"id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	StartTs    int64  `json:"start_ts"`
	EndTs      int64  `json:"end_ts"`
	CustomerID int32  `json:"customer_id"`
	UserID     int32  `json:"user_id"`
	ContactID  int32  `json:"contact_id"`
}

type Event struct {
	ID          string             `json:"id"`
	Type        Type               `json:"type"`
	OccurredAt  time.Time          `json:"occurred_at"`
	Appointment AppointmentPayload `json:"appointment"`
}

// NewEvent stamps a new event with a fresh id.
func NewEvent(eventType Type, appointment AppointmentPayload) *Event {
	return &Event{
		ID:          shortuuid.New(),
		Type:        eventType,
		OccurredAt:  time.Now().UTC(),
		Appointment: appointment,
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic, keyed by customer so all
// events of one customer land on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

type KafkaConfig struct {
	Brokers      string // comma separated
	Topic        string
	WriteTimeout time.Duration
}

// NewKafkaPublisher creates a publisher for the configured brokers.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	brokers := SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic not configured")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
	})
	return newKafkaPublisher(writer, cfg.Topic), nil
}

func newKafkaPublisher(writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(int64(event.Appointment.CustomerID), 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to write %s event to %s", event.Type, p.topic)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }

func (NopPublisher) Close() error { return nil }

// SplitBrokers splits a comma separated broker list, dropping blanks.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// HeaderValue returns the first header with the given key.
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
