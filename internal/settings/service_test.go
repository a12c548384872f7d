package settings

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
)

func defaultSnapshot(t *testing.T) Snapshot {
	t.Helper()
	snap, err := FromConfig(config.CommerceConfig{
		PointsPerUnit:           1,
		PesoPerPoint:            decimal.NewFromInt(1),
		DefaultDeliveryFeeCents: 1500,
		StockDeductOn:           config.StockDeductOnOrderPlaced,
		PointsCategories:        []string{"refill"},
	})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	return snap
}

func TestFromConfigRejectsUnknownCategory(t *testing.T) {
	_, err := FromConfig(config.CommerceConfig{PointsCategories: []string{"refill", "jug"}})
	if err == nil {
		t.Fatal("expected unknown category to fail")
	}
}

func TestSnapshotPolicies(t *testing.T) {
	snap := defaultSnapshot(t)
	if !snap.ReservesOnCreate() {
		t.Fatal("order_placed policy should reserve on create")
	}
	if !snap.EarnsPoints(enums.ProductCategoryRefill) || snap.EarnsPoints(enums.ProductCategoryDispenser) {
		t.Fatalf("unexpected points categories %v", snap.PointsCategories)
	}
	snap.StockDeductOn = DeductOnOrderDelivered
	if snap.ReservesOnCreate() {
		t.Fatal("order_delivered policy should not reserve on create")
	}
}

func TestServiceOverlaysStoredValues(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	svc, err := NewService(defaultSnapshot(t), NewRepository(client.DB()), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	for key, value := range map[string]string{
		KeyPesoPerPoint:       "0.50",
		KeyDefaultDeliveryFee: "20",
		KeyStockDeductOn:      "order_delivered",
		KeyPointsCategories:   "refill, container",
	} {
		if _, err := svc.Set(ctx, key, value); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	snap, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !snap.PesoPerPoint.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("unexpected peso per point %s", snap.PesoPerPoint)
	}
	if snap.DefaultDeliveryFeeCents != 2000 {
		t.Fatalf("unexpected default fee %d", snap.DefaultDeliveryFeeCents)
	}
	if snap.StockDeductOn != DeductOnOrderDelivered {
		t.Fatalf("unexpected policy %s", snap.StockDeductOn)
	}
	if !snap.EarnsPoints(enums.ProductCategoryContainer) {
		t.Fatalf("expected container to earn points, got %v", snap.PointsCategories)
	}
	if snap.PointsPerUnit != 1 {
		t.Fatalf("unset keys should keep defaults, got %d", snap.PointsPerUnit)
	}

	snap, err = svc.Reset(ctx, KeyDefaultDeliveryFee)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if snap.DefaultDeliveryFeeCents != 1500 {
		t.Fatalf("expected default fee after reset, got %d", snap.DefaultDeliveryFeeCents)
	}
}

func TestServiceSetValidates(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(defaultSnapshot(t), NewRepository(client.DB()), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cases := map[string]string{
		KeyPointsPerUnit: "-1",
		KeyPesoPerPoint:  "abc",
		KeyStockDeductOn: "order_confirmed",
		"tax_rate":       "0.12",
	}
	for key, value := range cases {
		_, err := svc.Set(context.Background(), key, value)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s=%s: expected validation error, got %v", key, value, err)
		}
	}
}

func TestServiceResetRejectsUnknownKey(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(defaultSnapshot(t), NewRepository(client.DB()), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Reset(context.Background(), "tax_rate"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Reset(context.Background(), KeyPointsPerUnit); err != nil {
		t.Fatalf("resetting an unset key: %v", err)
	}
}

func TestServiceSkipsCorruptRows(t *testing.T) {
	client := dbtest.Open(t)
	if err := client.DB().Create(&models.Setting{Key: KeyPointsPerUnit, Value: "lots"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc, err := NewService(defaultSnapshot(t), NewRepository(client.DB()), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	snap, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.PointsPerUnit != 1 {
		t.Fatalf("corrupt row should fall back to default, got %d", snap.PointsPerUnit)
	}
}

func TestStaticProvider(t *testing.T) {
	want := defaultSnapshot(t)
	got, err := Static(want).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.DefaultDeliveryFeeCents != want.DefaultDeliveryFeeCents {
		t.Fatalf("static provider changed snapshot")
	}
}
