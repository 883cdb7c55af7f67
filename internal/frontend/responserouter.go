package frontend

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tlexii/overlord/internal/protocol"
)

// ResponseRouter consumes job responses and delivers each body to the
// destination named in its reply_to. Delivery failures are logged and the
// message dropped: responses are advisory and a destination that has gone
// away should not wedge the queue.
type ResponseRouter struct {
	table     *protocol.Table
	deliverer Deliverer
	logger    *slog.Logger
}

// NewResponseRouter creates a response router
func NewResponseRouter(table *protocol.Table, deliverer Deliverer, logger *slog.Logger) *ResponseRouter {
	return &ResponseRouter{
		table:     table,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Run processes deliveries until the channel closes or ctx is cancelled
func (r *ResponseRouter) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	r.logger.Info("Response router started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Response router stopping")
			return
		case d, ok := <-deliveries:
			if !ok {
				r.logger.Info("Response channel closed, router stopping")
				return
			}
			r.handleDelivery(ctx, d)
		}
	}
}

func (r *ResponseRouter) handleDelivery(ctx context.Context, d amqp.Delivery) {
	resp, err := r.table.DecodeResponse(d)
	if err != nil {
		r.logger.Error("Dropping undecodable response",
			slog.String("routing_key", d.RoutingKey),
			slog.Any("error", err),
		)
		d.Ack(false)
		return
	}

	if err := d.Ack(false); err != nil {
		r.logger.Error("Failed to ack response",
			slog.String("job_type", resp.JobType),
			slog.Any("error", err),
		)
		return
	}

	if resp.ReplyTo == "" {
		r.logger.Warn("Dropping response with no destination",
			slog.String("job_type", resp.JobType),
		)
		return
	}

	if protocol.IsFailure(resp.Body) {
		r.logger.Warn("Routing failure response",
			slog.String("job_type", resp.JobType),
			slog.String("destination", resp.ReplyTo),
		)
	}

	if err := r.deliverer.Deliver(ctx, resp.ReplyTo, resp.Body); err != nil {
		r.logger.Error("Failed to deliver response",
			slog.String("job_type", resp.JobType),
			slog.String("destination", resp.ReplyTo),
			slog.Any("error", err),
		)
	}
}
