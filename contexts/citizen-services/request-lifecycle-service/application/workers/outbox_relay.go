package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	application "pqrsd/contexts/citizen-services/request-lifecycle-service/application"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

const publishRetryMaxElapsed = 10 * time.Second

// OutboxRelay publishes pending lifecycle outbox rows to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	// MaxElapsed bounds publish retries per row; zero uses the default.
	MaxElapsed time.Duration
	Logger     *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("lifecycle outbox list failed",
			"event", "lifecycle_outbox_list_failed",
			"module", "citizen-services/request-lifecycle-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("lifecycle outbox decode failed",
				"event", "lifecycle_outbox_decode_failed",
				"module", "citizen-services/request-lifecycle-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}

		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.publish(ctx, topic, event); err != nil {
			logger.Error("lifecycle outbox publish failed",
				"event", "lifecycle_outbox_publish_failed",
				"module", "citizen-services/request-lifecycle-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"topic", topic,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, r.now()); err != nil {
			logger.Error("lifecycle outbox mark published failed",
				"event", "lifecycle_outbox_mark_published_failed",
				"module", "citizen-services/request-lifecycle-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("lifecycle outbox relay cycle completed",
			"event", "lifecycle_outbox_relay_completed",
			"module", "citizen-services/request-lifecycle-service",
			"layer", "worker",
			"published_count", len(pending),
		)
	}
	return nil
}

func (r OutboxRelay) publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	// BackOff implementations are stateful; build one per row.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.MaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = publishRetryMaxElapsed
	}
	return backoff.Retry(func() error {
		err := r.Publisher.Publish(ctx, topic, event)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

func (r OutboxRelay) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
