package frontend

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tlexii/overlord/internal/protocol"
)

// requestPublisher is the broker surface the publisher needs.
// Satisfied by *rabbitmq.Client.
type requestPublisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// Publisher turns job requests into published broker messages
type Publisher struct {
	table     *protocol.Table
	publisher requestPublisher
	logger    *slog.Logger
}

// NewPublisher creates a job request publisher
func NewPublisher(table *protocol.Table, publisher requestPublisher, logger *slog.Logger) *Publisher {
	return &Publisher{
		table:     table,
		publisher: publisher,
		logger:    logger,
	}
}

// PublishJob publishes a job request under the job type's request routing
// key. The destination travels in reply_to and comes back untouched on the
// response.
func (p *Publisher) PublishJob(ctx context.Context, jobType string, body map[string]interface{}, destination string) error {
	routingKey, msg, err := p.table.EncodeRequest(jobType, body, destination)
	if err != nil {
		return fmt.Errorf("failed to encode job request: %w", err)
	}

	if err := p.publisher.PublishWithRetry(ctx, routingKey, msg); err != nil {
		return fmt.Errorf("failed to publish job request: %w", err)
	}

	p.logger.Info("Job request published",
		slog.String("job_type", jobType),
		slog.String("routing_key", routingKey),
		slog.String("destination", destination),
	)
	return nil
}
