package pubsub

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

// Breaker trips after consecutive publish failures so a broker outage stops
// consuming outbox attempts.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[string]
}

// NewBreaker builds a breaker named after the topic it guards.
func NewBreaker(name string, cfg config.BreakerConfig, logg *logger.Logger) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "pubsub breaker state changed")
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[string](settings)}
}

// Do runs fn through the breaker. fn returns the broker message id.
func (b *Breaker) Do(fn func() (string, error)) (string, error) {
	return b.cb.Execute(fn)
}

// State reports closed, half-open or open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// IsBreakerOpen reports whether err came from a tripped breaker rather than the broker.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
