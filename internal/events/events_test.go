package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestFromTicketEvent(t *testing.T) {
	now := time.Now()
	entry := domain.TicketEvent{
		ID: "e1", TicketID: "t1", ActorID: "u1", Type: domain.EventStatusChanged,
		Metadata: map[string]any{"from": "OPEN", "to": "RESOLVED"}, CreatedAt: now,
	}

	event, ok := FromTicketEvent(entry, "TCK-00000001")
	require.True(t, ok)
	assert.Equal(t, EventTicketStatusChanged, event.Type)
	assert.Equal(t, "TCK-00000001", event.TicketKey)
	assert.Equal(t, "RESOLVED", event.Payload["to"])
	assert.Equal(t, now, event.Timestamp)

	_, ok = FromTicketEvent(domain.TicketEvent{Type: "UNKNOWN"}, "")
	assert.False(t, ok)
}

func TestDispatcher_ContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var calls []string
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketAssigned, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaExporter_WritesKeyedJSON(t *testing.T) {
	fw := &fakeWriter{}
	exporter := NewKafkaExporter(fw, nil)
	d := NewInMemoryDispatcher(nil)
	exporter.Register(d)

	for _, eventType := range AllEventTypes {
		require.NoError(t, d.Publish(context.Background(), Event{
			ID: "e-" + string(eventType), Type: eventType, TicketID: "t1", Payload: map[string]any{"length": 3},
		}))
	}
	require.Len(t, fw.msgs, len(AllEventTypes))

	msg := fw.msgs[0]
	assert.Equal(t, "t1", string(msg.Key))
	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, EventTicketCreated, decoded.Type)
	assert.EqualValues(t, 3, decoded.Payload["length"])
}

func TestKafkaExporter_PropagatesWriteError(t *testing.T) {
	exporter := NewKafkaExporter(&fakeWriter{err: errors.New("broker down")}, nil)
	err := exporter.Handle(context.Background(), Event{Type: EventTicketCreated, TicketID: "t1"})
	assert.ErrorContains(t, err, "broker down")
}
