package settings

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

// Service overlays stored overrides on the configured defaults.
type Service struct {
	defaults Snapshot
	repo     Repository
	logg     *logger.Logger
}

// NewService wires the table-backed provider.
func NewService(defaults Snapshot, repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &Service{defaults: defaults, repo: repo, logg: logg}, nil
}

// Load reads the table once and returns a snapshot independent of later writes.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load settings")
	}
	snap := s.defaults
	snap.PointsCategories = append(snap.PointsCategories[:0:0], s.defaults.PointsCategories...)
	for _, row := range rows {
		if err := snap.apply(row.Key, row.Value); err != nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "setting", row.Key), "ignoring invalid stored setting")
			}
			continue
		}
	}
	return snap, nil
}

// Set validates and stores an override.
func (s *Service) Set(ctx context.Context, key, value string) (Snapshot, error) {
	key = strings.TrimSpace(key)
	probe := s.defaults
	if err := probe.apply(key, value); err != nil {
		return Snapshot{}, err
	}
	if err := s.repo.Upsert(ctx, &models.Setting{Key: key, Value: strings.TrimSpace(value)}); err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "store setting")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"setting": key, "value": value}), "setting updated")
	}
	return s.Load(ctx)
}

// Reset drops an override so the configured default applies again.
func (s *Service) Reset(ctx context.Context, key string) (Snapshot, error) {
	key = strings.TrimSpace(key)
	if !slices.Contains(Keys, key) {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown setting %q", key))
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "reset setting")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "setting", key), "setting reset")
	}
	return s.Load(ctx)
}
