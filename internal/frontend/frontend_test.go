package frontend

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/tlexii/overlord/internal/protocol"
)

type published struct {
	routingKey string
	msg        amqp.Publishing
}

type fakeRequestPublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (f *fakeRequestPublisher) PublishWithRetry(_ context.Context, routingKey string, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{routingKey: routingKey, msg: msg})
	return nil
}

func (f *fakeRequestPublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.messages...)
}

type delivered struct {
	destination string
	body        map[string]interface{}
}

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []delivered
	err       error
}

func (f *fakeDeliverer) Deliver(_ context.Context, destination string, body map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, delivered{destination: destination, body: body})
	return nil
}

func (f *fakeDeliverer) all() []delivered {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivered(nil), f.delivered...)
}

type fakeAcknowledger struct {
	mu   sync.Mutex
	acks []uint64
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error { return nil }
func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error         { return nil }

func (f *fakeAcknowledger) ackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acks)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestTable(t *testing.T) *protocol.Table {
	t.Helper()

	table, err := protocol.NewTable(map[string]protocol.Route{
		"simc":   {RequestKey: "simc.request", ResponseKey: "simc.response"},
		"mounts": {RequestKey: "mounts.request", ResponseKey: "mounts.response"},
	})
	require.NoError(t, err)
	return table
}

func newResponseDelivery(t *testing.T, ack *fakeAcknowledger, tag uint64, routingKey, replyTo string, body map[string]interface{}) amqp.Delivery {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		RoutingKey:   routingKey,
		ReplyTo:      replyTo,
		Body:         payload,
	}
}
