package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tlexii/overlord/internal/protocol"
)

// responsePublisher publishes job responses under a routing key. Implemented
// by *rabbitmq.Client.
type responsePublisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// Dispatcher demultiplexes consumed request messages to the job function for
// their routing key, runs them on the pool, acknowledges each message exactly
// once after the job function returns, and publishes the result under the
// matching response key with reply_to copied verbatim.
type Dispatcher struct {
	table     *protocol.Table
	pool      *Pool
	publisher responsePublisher
	logger    *slog.Logger
	handlers  map[string]JobFunc
	started   bool
	inflight  sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the given routing table and pool
func NewDispatcher(table *protocol.Table, pool *Pool, publisher responsePublisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		table:     table,
		pool:      pool,
		publisher: publisher,
		logger:    logger,
		handlers:  make(map[string]JobFunc),
	}
}

// Register binds fn to a job type. Every registered job type must exist in
// the routing table; registration is rejected once Run has been called.
func (d *Dispatcher) Register(jobType string, fn JobFunc) error {
	if d.started {
		return fmt.Errorf("cannot register %q: dispatcher already running", jobType)
	}
	if _, err := d.table.Route(jobType); err != nil {
		return err
	}
	d.handlers[jobType] = fn
	return nil
}

// Run consumes deliveries until ctx is canceled or the channel closes. It
// blocks; the pool must already be started.
func (d *Dispatcher) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	d.started = true
	d.logger.Info("Dispatcher started",
		slog.Any("job_types", d.table.JobTypes()),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopped - context canceled")
			d.inflight.Wait()
			return

		case delivery, ok := <-deliveries:
			if !ok {
				d.logger.Warn("Dispatcher stopped - delivery channel closed")
				d.inflight.Wait()
				return
			}
			d.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery routes one message. Unroutable or malformed messages are
// acked and dropped so the broker does not redeliver poison messages forever.
func (d *Dispatcher) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	req, err := d.table.DecodeRequest(delivery)
	if err != nil {
		d.logger.Error("Dropping undecodable request",
			slog.String("routing_key", delivery.RoutingKey),
			slog.String("error", err.Error()),
			slog.String("body", string(delivery.Body)),
		)
		d.ack(delivery)
		return
	}

	fn, ok := d.handlers[req.JobType]
	if !ok {
		d.logger.Error("Dropping request with no registered job function",
			slog.String("job_type", req.JobType),
			slog.String("routing_key", delivery.RoutingKey),
		)
		d.ack(delivery)
		return
	}

	d.logger.Info("Request received",
		slog.String("job_type", req.JobType),
		slog.String("reply_to", req.ReplyTo),
		slog.Uint64("delivery_tag", delivery.DeliveryTag),
	)

	// The broker's prefetch limit bounds how many of these completion
	// goroutines exist at once.
	result := d.pool.Submit(ctx, req.JobType, req.Body, fn)
	d.inflight.Add(1)
	go d.finish(ctx, delivery, req, result)
}

// finish waits for the job's result, acknowledges the request, then
// publishes the response. Acknowledgement happens exactly once, after the
// job function has returned, never before.
func (d *Dispatcher) finish(ctx context.Context, delivery amqp.Delivery, req *protocol.Request, result <-chan map[string]interface{}) {
	defer d.inflight.Done()

	body := <-result
	if body == nil {
		// Pool shut down before the job ran. Leave the message
		// unacknowledged; the broker redelivers it on reconnect.
		d.logger.Warn("Job not executed before shutdown, leaving unacknowledged",
			slog.String("job_type", req.JobType),
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
		)
		return
	}

	d.ack(delivery)

	key, msg, err := d.table.EncodeResponse(req.JobType, body, req.ReplyTo)
	if err != nil {
		d.logger.Error("Failed to encode response",
			slog.String("job_type", req.JobType),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := d.publisher.PublishWithRetry(ctx, key, msg); err != nil {
		d.logger.Error("Failed to publish response",
			slog.String("job_type", req.JobType),
			slog.String("routing_key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	d.logger.Info("Response published",
		slog.String("job_type", req.JobType),
		slog.String("routing_key", key),
		slog.String("reply_to", req.ReplyTo),
		slog.Bool("failure", protocol.IsFailure(body)),
	)
}

func (d *Dispatcher) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		d.logger.Error("Failed to ACK message",
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.String("error", err.Error()),
		)
	}
}
