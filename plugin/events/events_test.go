package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherPublish(t *testing.T) {
	writer := &fakeWriter{}
	p := newKafkaPublisher(writer, "appointment-events")

	event := NewEvent(TypeAppointmentCreated, AppointmentPayload{ID: 7, CustomerID: 5, StartTs: 100, EndTs: 200})
	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "5", string(msg.Key))
	assert.Equal(t, event.ID, HeaderValue(msg.Headers, "event_id"))
	assert.Equal(t, "appointment.created", HeaderValue(msg.Headers, "event_type"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.EqualValues(t, 7, decoded.Appointment.ID)
	assert.EqualValues(t, 200, decoded.Appointment.EndTs)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisherWriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaPublisher(writer, "appointment-events")

	err := p.Publish(context.Background(), NewEvent(TypeAppointmentDeleted, AppointmentPayload{ID: 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestPublishInjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	writer := &fakeWriter{}
	require.NoError(t, newKafkaPublisher(writer, "t").Publish(ctx, NewEvent(TypeAppointmentUpdated, AppointmentPayload{})))

	msg := writer.messages[0]
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", HeaderValue(msg.Headers, "traceparent"))

	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), msg))
	assert.Equal(t, traceID, extracted.TraceID())
}

func TestNewKafkaPublisherConfig(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Brokers: " , ", Topic: "x"})
	assert.Error(t, err)
	_, err = NewKafkaPublisher(KafkaConfig{Brokers: "localhost:9092"})
	assert.Error(t, err)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitBrokers(""))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), NewEvent(TypeAppointmentCreated, AppointmentPayload{})))
	assert.NoError(t, p.Close())
}
