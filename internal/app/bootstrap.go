package app

import (
	"fmt"
	"time"

	"github.com/angelmondragon/aquaflow-backend/internal/settings"
	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/metrics"
)

// FromConfig builds the container the binaries share: configured commerce
// defaults overlaid by the settings table.
func FromConfig(cfg *config.Config, client *db.Client, m *metrics.CommerceMetrics, logg *logger.Logger) (*Container, error) {
	defaults, err := settings.FromConfig(cfg.Commerce)
	if err != nil {
		return nil, fmt.Errorf("commerce defaults: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	provider, err := settings.NewService(defaults, settings.NewRepository(client.DB()), logg)
	if err != nil {
		return nil, err
	}
	return New(Params{
		DB:         client,
		Settings:   provider,
		Metrics:    m,
		Logger:     logg,
		BatchLimit: cfg.Scheduler.BatchLimit,
		Location:   loc,
	})
}
