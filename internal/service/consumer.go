package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vipogroup/vipo-orders/internal/event"
	pkgkafka "github.com/vipogroup/vipo-orders/pkg/kafka"
)

// PaymentEventConsumer consumes payment gateway events from Kafka and feeds
// them to the reconciler. Gateway adapters publish to the payment events topic
// after verifying provider signatures.
type PaymentEventConsumer struct {
	consumer *pkgkafka.Consumer
	dlq      *pkgkafka.DLQProducer
	logger   *slog.Logger
}

// NewPaymentEventConsumer creates a consumer for the payment events topic.
// Redelivered envelopes are skipped via the idempotency store before the
// reconciler sees them; the reconciler dedups again on the gateway event ID.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	reconciler *Reconciler,
	seen pkgkafka.IdempotencyStore,
	logger *slog.Logger,
) *PaymentEventConsumer {
	handler := func(ctx context.Context, e *pkgkafka.Event) error {
		var data event.PaymentEventData
		if err := e.UnmarshalData(&data); err != nil {
			// Malformed payload: log and commit, retrying cannot fix it.
			logger.ErrorContext(ctx, "malformed payment event payload",
				slog.String("event_id", e.EventID),
				slog.String("error", err.Error()),
			)
			return nil
		}

		eventID := data.EventID
		if eventID == "" {
			eventID = e.EventID
		}

		if _, err := reconciler.Ingest(ctx, IngestPaymentEventInput{
			EventID:       eventID,
			OrderID:       data.OrderID,
			TransactionID: data.TransactionID,
			Type:          data.Type,
			Amount:        data.Amount,
			Currency:      data.Currency,
			Source:        data.Source,
		}); err != nil {
			return fmt.Errorf("ingest payment event %s: %w", eventID, err)
		}
		return nil
	}

	dlq := pkgkafka.NewDLQProducer(brokers, logger)
	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   event.TopicPaymentEvents,
	}, pkgkafka.IdempotentHandler(seen, handler, logger), logger).WithDLQ(dlq)

	return &PaymentEventConsumer{
		consumer: consumer,
		dlq:      dlq,
		logger:   logger,
	}
}

// Start begins consuming. It blocks until the context is canceled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Close shuts down the underlying Kafka reader and the DLQ writer.
func (c *PaymentEventConsumer) Close() error {
	err := c.consumer.Close()
	if dlqErr := c.dlq.Close(); dlqErr != nil && err == nil {
		err = dlqErr
	}
	return err
}
