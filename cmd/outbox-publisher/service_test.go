package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox/registry"
)

// ledgerStub records what the publisher did to each row.
type ledgerStub struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	dlq       []models.OutboxDLQ
}

func (l *ledgerStub) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	if len(l.rows) > limit {
		return l.rows[:limit], nil
	}
	return l.rows, nil
}

func (l *ledgerStub) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	l.published = append(l.published, id)
	return nil
}

func (l *ledgerStub) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	l.failed = append(l.failed, id)
	return nil
}

func (l *ledgerStub) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	l.terminal = append(l.terminal, id)
	return nil
}

func (l *ledgerStub) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	l.dlq = append(l.dlq, entry)
	return nil
}

// scriptedPublisher returns the queued errors in order; nil means success.
type scriptedPublisher struct {
	errs  []error
	calls int
}

type resultOf struct{ err error }

func (r resultOf) Get(context.Context) (string, error) { return "srv-1", r.err }

func (p *scriptedPublisher) Publish(context.Context, *gcppubsub.Message) publishResult {
	p.calls++
	if len(p.errs) == 0 {
		return resultOf{}
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return resultOf{err: err}
}

type topicResolver struct{ err error }

func (r topicResolver) Resolve(e models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "aquaflow-orders", AggregateType: e.AggregateType},
		Envelope:   outbox.PayloadEnvelope{Version: 1, EventID: e.ID.String(), OccurredAt: e.CreatedAt},
	}, nil
}

type noopDB struct{}

func (noopDB) Ping(context.Context) error { return nil }

func (noopDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type noopPubSub struct{}

func (noopPubSub) Ping(context.Context) error { return nil }

func (noopPubSub) Publisher(string) *gcppubsub.Publisher { return nil }

func orderRow(attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"data":{}}`),
		AttemptCount:  attempts,
		CreatedAt:     time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newPublisherUnderTest(t *testing.T, rows *ledgerStub, pub publisher, resolver registryResolver, maxAttempts int) *Service {
	t.Helper()
	cfg := &config.Config{
		Outbox:  config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		Breaker: config.BreakerConfig{FailureThreshold: 50, MaxRequests: 1, Timeout: time.Minute},
	}
	svc, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		DB:               noopDB{},
		PubSub:           noopPubSub{},
		Repository:       rows,
		Registry:         resolver,
		DLQRepository:    rows,
		PublisherFactory: func(string) publisher { return pub },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestProcessBatchSettlesEachRow(t *testing.T) {
	cases := []struct {
		name          string
		attempts      int
		publishErr    error
		resolveErr    error
		wantPublished int
		wantFailed    int
		wantDLQ       enums.OutboxDLQErrorReason
	}{
		{name: "published", wantPublished: 1},
		{name: "transient failure is retried", publishErr: errors.New("deadline exceeded"), wantFailed: 1},
		{name: "last attempt dead-letters", attempts: 2, publishErr: errors.New("deadline exceeded"), wantDLQ: enums.OutboxDLQReasonMaxAttempts},
		{name: "non-retryable publish", publishErr: registry.NewNonRetryableError(errors.New("topic gone")), wantDLQ: enums.OutboxDLQReasonNonRetryable},
		{name: "unresolvable row", resolveErr: registry.NewNonRetryableError(errors.New("unknown event type")), wantDLQ: enums.OutboxDLQReasonNonRetryable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := orderRow(tc.attempts)
			rows := &ledgerStub{rows: []models.OutboxEvent{row}}
			pub := &scriptedPublisher{errs: []error{tc.publishErr}}
			svc := newPublisherUnderTest(t, rows, pub, topicResolver{err: tc.resolveErr}, 3)

			progressed, err := svc.processBatch(context.Background())
			if err != nil {
				t.Fatalf("process batch: %v", err)
			}
			if !progressed {
				t.Fatalf("a settled row counts as progress")
			}
			if len(rows.published) != tc.wantPublished || len(rows.failed) != tc.wantFailed {
				t.Fatalf("published=%d failed=%d", len(rows.published), len(rows.failed))
			}
			if tc.wantDLQ == "" {
				if len(rows.dlq) != 0 || len(rows.terminal) != 0 {
					t.Fatalf("unexpected dead letter %+v", rows.dlq)
				}
				return
			}
			if len(rows.dlq) != 1 || len(rows.terminal) != 1 {
				t.Fatalf("expected one dead letter, dlq=%d terminal=%d", len(rows.dlq), len(rows.terminal))
			}
			entry := rows.dlq[0]
			if entry.ErrorReason != tc.wantDLQ || entry.EventID != row.ID {
				t.Fatalf("unexpected dlq entry %+v", entry)
			}
			if !bytes.Equal(entry.Payload, row.Payload) || entry.ErrorMessage == nil {
				t.Fatalf("dlq entry must keep payload and error")
			}
		})
	}
}

func TestProcessBatchKeepsGoingAfterAFailure(t *testing.T) {
	first, second := orderRow(0), orderRow(0)
	rows := &ledgerStub{rows: []models.OutboxEvent{first, second}}
	pub := &scriptedPublisher{errs: []error{errors.New("unavailable"), nil}}
	svc := newPublisherUnderTest(t, rows, pub, topicResolver{}, 5)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(rows.failed) != 1 || rows.failed[0] != first.ID {
		t.Fatalf("expected first row marked failed, got %v", rows.failed)
	}
	if len(rows.published) != 1 || rows.published[0] != second.ID {
		t.Fatalf("expected second row published, got %v", rows.published)
	}
}

func TestBreakerOpenDefersRowsWithoutConsumingAttempts(t *testing.T) {
	rows := &ledgerStub{rows: []models.OutboxEvent{orderRow(0)}}
	pub := &scriptedPublisher{errs: []error{errors.New("unavailable")}}
	svc := newPublisherUnderTest(t, rows, pub, topicResolver{}, 5)
	svc.cfg.Breaker = config.BreakerConfig{FailureThreshold: 1, MaxRequests: 1, Timeout: time.Hour}

	if progressed, err := svc.processBatch(context.Background()); err != nil || !progressed {
		t.Fatalf("first batch: progressed=%v err=%v", progressed, err)
	}
	if len(rows.failed) != 1 {
		t.Fatalf("expected the tripping failure to be recorded")
	}

	progressed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if progressed {
		t.Fatalf("an all-deferred batch reports idle so the loop sleeps")
	}
	if len(rows.failed) != 1 || len(rows.published) != 0 || pub.calls != 1 {
		t.Fatalf("open breaker must not touch rows or call the publisher, failed=%d calls=%d", len(rows.failed), pub.calls)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Config: &config.Config{}}); err == nil {
		t.Fatalf("expected missing logger to be rejected")
	}
}
