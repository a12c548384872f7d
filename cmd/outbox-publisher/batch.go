package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox/registry"
	"github.com/angelmondragon/aquaflow-backend/pkg/pubsub"
)

type outcome int

const (
	published outcome = iota
	deferred          // breaker open; row untouched
	retryLater        // attempt recorded, row stays eligible
	deadLettered      // copied to the DLQ and marked terminal
)

// processBatch publishes one batch and reports whether any row made
// progress, so an all-deferred batch does not spin.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	progressed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			result, err := s.settle(ctx, tx, event)
			if err != nil {
				return err
			}
			if result != deferred {
				progressed = true
			}
		}
		return nil
	})
	return progressed, err
}

// settle publishes one row and records the outcome inside tx.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return deadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	err = s.publish(ctx, event, resolved)
	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return published, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return published, nil

	case pubsub.IsBreakerOpen(err):
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish deferred, breaker open")
		return deferred, nil

	case errors.As(err, &nonRetryable):
		return deadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields)

	case event.AttemptCount+1 >= s.maxAttempts:
		err = fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, err)
		return deadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, err, fields)
	}

	fields["attempt_count"] = event.AttemptCount + 1
	fields["error"] = err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed, will retry")
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return retryLater, fmt.Errorf("mark failed %s: %w", event.ID, markErr)
	}
	return retryLater, nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFor(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}
	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err := s.breaker(topic).Do(func() (string, error) {
		res := pub.Publish(ctx, msg)
		if res == nil {
			return "", registry.NewNonRetryableError(errNilPublish)
		}
		return res.Get(ctx)
	})
	return err
}
