package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox/registry"
	"github.com/angelmondragon/aquaflow-backend/pkg/pubsub"
)

const (
	publishTimeout = 15 * time.Second
	maxIdleBackoff = 10 * time.Second
	pollJitter     = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	PubSub        pubSubClient
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	// PublisherFactory overrides the Pub/Sub publisher lookup in tests.
	PublisherFactory func(topic string) publisher
}

// Service drains outbox_events to Pub/Sub. Each batch runs in one
// transaction so a row is marked only when its publish outcome is known.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	registry     registryResolver
	dlq          dlqRepository
	publisherFor func(topic string) publisher
	breakers     map[string]*pubsub.Breaker

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	required := []struct {
		name string
		ok   bool
	}{
		{"config", p.Config != nil},
		{"logger", p.Logger != nil},
		{"database client", p.DB != nil},
		{"pubsub client", p.PubSub != nil},
		{"outbox repository", p.Repository != nil},
		{"event registry", p.Registry != nil},
		{"dlq repository", p.DLQRepository != nil},
	}
	for _, dep := range required {
		if !dep.ok {
			return nil, fmt.Errorf("%s is required", dep.name)
		}
	}

	s := &Service{
		cfg:          p.Config,
		logg:         p.Logger,
		db:           p.DB,
		pubsub:       p.PubSub,
		repo:         p.Repository,
		registry:     p.Registry,
		dlq:          p.DLQRepository,
		publisherFor: p.PublisherFactory,
		breakers:     map[string]*pubsub.Breaker{},
		batchSize:    positiveOr(p.Config.Outbox.BatchSize, 50),
		maxAttempts:  positiveOr(p.Config.Outbox.MaxAttempts, 10),
		pollInterval: time.Duration(positiveOr(p.Config.Outbox.PollIntervalMS, 500)) * time.Millisecond,
	}
	if s.publisherFor == nil {
		s.publisherFor = func(topic string) publisher {
			return wrapPublisher(p.PubSub.Publisher(topic))
		}
	}
	return s, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; an empty or failed batch waits, backing off on errors.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}

	failures := s.failureBackoff()
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		busy, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait, _ = failures.Next()
		case busy:
			failures = s.failureBackoff()
			continue
		default:
			failures = s.failureBackoff()
			wait = s.pollInterval
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Service) failureBackoff() retry.Backoff {
	b := retry.NewExponential(s.pollInterval)
	b = retry.WithCappedDuration(maxIdleBackoff, b)
	return retry.WithJitter(pollJitter, b)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) breaker(topic string) *pubsub.Breaker {
	if b, ok := s.breakers[topic]; ok {
		return b
	}
	b := pubsub.NewBreaker("outbox:"+topic, s.cfg.Breaker, s.logg)
	s.breakers[topic] = b
	return b
}

var errNilPublish = errors.New("publisher returned no result")
