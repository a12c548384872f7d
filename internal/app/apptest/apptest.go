// Package apptest builds a fully wired container over an in-memory database.
package apptest

import (
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/aquaflow-backend/internal/app"
	"github.com/angelmondragon/aquaflow-backend/internal/settings"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

// Settings is the snapshot tests run under unless they override it: one point
// per refill unit, one peso per point, a ₱20 default fee, stock taken on create.
func Settings() settings.Snapshot {
	return settings.Snapshot{
		PointsPerUnit:           1,
		PesoPerPoint:            decimal.NewFromInt(1),
		DefaultDeliveryFeeCents: 2000,
		StockDeductOn:           settings.DeductOnOrderPlaced,
		PointsCategories:        []enums.ProductCategory{enums.ProductCategoryRefill},
	}
}

// Logger discards output.
func Logger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

// New opens a database and wires every service against cfg. cfg is the
// default under an empty settings table, so tests may override keys.
func New(t testing.TB, cfg settings.Snapshot) (*db.Client, *app.Container) {
	t.Helper()
	client := dbtest.Open(t)
	logg := Logger()
	provider, err := settings.NewService(cfg, settings.NewRepository(client.DB()), logg)
	if err != nil {
		t.Fatalf("wire settings: %v", err)
	}
	container, err := app.New(app.Params{
		DB:       client,
		Settings: provider,
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("wire container: %v", err)
	}
	return client, container
}
