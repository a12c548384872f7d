// Package settings resolves the commerce rates and policies an operation runs under.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/money"
)

// Keys accepted in the settings table.
const (
	KeyPointsPerUnit      = "points_per_unit"
	KeyPesoPerPoint       = "peso_per_point"
	KeyDefaultDeliveryFee = "default_delivery_fee"
	KeyStockDeductOn      = "stock_deduct_on"
	KeyPointsCategories   = "points_categories"
)

// Keys lists every overridable setting.
var Keys = []string{KeyPointsPerUnit, KeyPesoPerPoint, KeyDefaultDeliveryFee, KeyStockDeductOn, KeyPointsCategories}

// StockPolicy decides when an order takes stock.
type StockPolicy string

const (
	DeductOnOrderPlaced    StockPolicy = config.StockDeductOnOrderPlaced
	DeductOnOrderDelivered StockPolicy = config.StockDeductOnOrderDelivered
)

// Snapshot is the immutable configuration one operation runs under.
type Snapshot struct {
	PointsPerUnit           int
	PesoPerPoint            decimal.Decimal
	DefaultDeliveryFeeCents int64
	StockDeductOn           StockPolicy
	PointsCategories        []enums.ProductCategory
}

// Provider yields a fresh snapshot per operation.
type Provider interface {
	Load(ctx context.Context) (Snapshot, error)
}

// Static always returns the same snapshot.
type Static Snapshot

func (s Static) Load(context.Context) (Snapshot, error) {
	return Snapshot(s), nil
}

// ReservesOnCreate reports whether order creation takes stock.
func (s Snapshot) ReservesOnCreate() bool {
	return s.StockDeductOn != DeductOnOrderDelivered
}

// EarnsPoints reports whether delivered units of category accrue points.
func (s Snapshot) EarnsPoints(category enums.ProductCategory) bool {
	for _, c := range s.PointsCategories {
		if c == category {
			return true
		}
	}
	return false
}

// FromConfig builds the default snapshot from environment configuration.
func FromConfig(cfg config.CommerceConfig) (Snapshot, error) {
	categories, err := parseCategories(cfg.PointsCategories)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		PointsPerUnit:           cfg.PointsPerUnit,
		PesoPerPoint:            cfg.PesoPerPoint,
		DefaultDeliveryFeeCents: cfg.DefaultDeliveryFeeCents,
		StockDeductOn:           StockPolicy(cfg.StockDeductOn),
		PointsCategories:        categories,
	}, nil
}

// apply overlays one stored key onto the snapshot.
func (s *Snapshot) apply(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case KeyPointsPerUnit:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return invalid(key, value)
		}
		s.PointsPerUnit = n
	case KeyPesoPerPoint:
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() {
			return invalid(key, value)
		}
		s.PesoPerPoint = d
	case KeyDefaultDeliveryFee:
		cents, err := money.ParsePesos(value)
		if err != nil {
			return invalid(key, value)
		}
		s.DefaultDeliveryFeeCents = cents
	case KeyStockDeductOn:
		switch StockPolicy(value) {
		case DeductOnOrderPlaced, DeductOnOrderDelivered:
			s.StockDeductOn = StockPolicy(value)
		default:
			return invalid(key, value)
		}
	case KeyPointsCategories:
		categories, err := parseCategories(strings.Split(value, ","))
		if err != nil {
			return invalid(key, value)
		}
		s.PointsCategories = categories
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown setting %q", key))
	}
	return nil
}

func parseCategories(values []string) ([]enums.ProductCategory, error) {
	out := make([]enums.ProductCategory, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		category, err := enums.ParseProductCategory(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, category)
	}
	return out, nil
}

func invalid(key, value string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid value %q for setting %s", value, key))
}
