package loyalty

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/metrics"
	"github.com/angelmondragon/aquaflow-backend/pkg/money"
	"github.com/angelmondragon/aquaflow-backend/pkg/pagination"
	"github.com/angelmondragon/aquaflow-backend/pkg/validation"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerStore interface {
	RecordLoyalty(ctx context.Context, tx *gorm.DB, entry ledger.LoyaltyEntry) (*models.LoyaltyLog, error)
	LoyaltyHistory(ctx context.Context, customerID uuid.UUID, params pagination.Params) (pagination.Page[models.LoyaltyLog], error)
}

// Service is the only writer of customer point balances.
type Service interface {
	Accrue(ctx context.Context, cmd AccrueCommand) (int, error)
	AccrueWithTx(ctx context.Context, tx *gorm.DB, cmd AccrueCommand) (int, error)
	RedeemWithTx(ctx context.Context, tx *gorm.DB, cmd RedeemCommand) (*Redemption, error)
	RefundWithTx(ctx context.Context, tx *gorm.DB, cmd RefundCommand) (int, error)
	Balance(ctx context.Context, customerID uuid.UUID) (int, error)
	History(ctx context.Context, customerID uuid.UUID, params pagination.Params) (pagination.Page[models.LoyaltyLog], error)
}

// ServiceParams wires the loyalty manager.
type ServiceParams struct {
	Repo    Repository
	Ledger  ledgerStore
	Tx      txRunner
	Metrics *metrics.CommerceMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	ledger  ledgerStore
	tx      txRunner
	metrics *metrics.CommerceMetrics
	logg    *logger.Logger
}

// NewService validates dependencies and returns the loyalty manager.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    params.Repo,
		ledger:  params.Ledger,
		tx:      params.Tx,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) Accrue(ctx context.Context, cmd AccrueCommand) (int, error) {
	if err := validation.Struct(cmd); err != nil {
		return 0, err
	}
	var balance int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		balance, err = s.AccrueWithTx(ctx, tx, cmd)
		return err
	})
	return balance, err
}

// AccrueWithTx credits points and returns the new balance. Zero points is a
// no-op that still reports the current balance.
func (s *service) AccrueWithTx(ctx context.Context, tx *gorm.DB, cmd AccrueCommand) (int, error) {
	if err := validation.Struct(cmd); err != nil {
		return 0, err
	}
	customer, err := s.lockCustomer(ctx, tx, cmd.CustomerID)
	if err != nil {
		return 0, err
	}
	if cmd.Points == 0 {
		return customer.PointsBalance, nil
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "points earned"
	}
	next := customer.PointsBalance + cmd.Points
	if err := s.apply(ctx, tx, customer, next, ledger.LoyaltyEntry{
		CustomerID:   customer.ID,
		Change:       cmd.Points,
		BalanceAfter: next,
		Type:         enums.LoyaltyEntryEarned,
		Reason:       reason,
		Reference:    cmd.Reference,
	}); err != nil {
		return 0, err
	}
	s.metrics.AddPointsAccrued(cmd.Points)
	return next, nil
}

// RedeemWithTx clamps the request to what the customer holds and converts the
// applied points at the given rate. A positive request against an empty
// balance is rejected.
func (s *service) RedeemWithTx(ctx context.Context, tx *gorm.DB, cmd RedeemCommand) (*Redemption, error) {
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}
	if cmd.RequestedPoints > 0 && !cmd.PesoPerPoint.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points redemption is disabled")
	}
	customer, err := s.lockCustomer(ctx, tx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}
	if cmd.RequestedPoints == 0 {
		return &Redemption{BalanceAfter: customer.PointsBalance}, nil
	}
	if customer.PointsBalance == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientPoints, "no points available to redeem").
			WithDetails(map[string]any{"requested": cmd.RequestedPoints, "balance": 0})
	}

	applied := min(cmd.RequestedPoints, customer.PointsBalance)
	if cmd.MaxDiscountCents != nil {
		applied = min(applied, money.PointsCoveredBy(*cmd.MaxDiscountCents, cmd.PesoPerPoint))
	}
	if applied == 0 {
		return &Redemption{BalanceAfter: customer.PointsBalance}, nil
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "points redeemed"
	}
	next := customer.PointsBalance - applied
	if err := s.apply(ctx, tx, customer, next, ledger.LoyaltyEntry{
		CustomerID:   customer.ID,
		Change:       -applied,
		BalanceAfter: next,
		Type:         enums.LoyaltyEntryRedeemed,
		Reason:       reason,
		Reference:    cmd.Reference,
	}); err != nil {
		return nil, err
	}
	s.metrics.AddPointsRedeemed(applied)
	return &Redemption{
		AppliedPoints: applied,
		DiscountCents: money.PointsValue(applied, cmd.PesoPerPoint),
		BalanceAfter:  next,
	}, nil
}

// RefundWithTx returns redeemed points, e.g. when the discounted order is cancelled.
func (s *service) RefundWithTx(ctx context.Context, tx *gorm.DB, cmd RefundCommand) (int, error) {
	if err := validation.Struct(cmd); err != nil {
		return 0, err
	}
	customer, err := s.lockCustomer(ctx, tx, cmd.CustomerID)
	if err != nil {
		return 0, err
	}
	reason := cmd.Reason
	if reason == "" {
		reason = "redemption reversed"
	}
	next := customer.PointsBalance + cmd.Points
	if err := s.apply(ctx, tx, customer, next, ledger.LoyaltyEntry{
		CustomerID:   customer.ID,
		Change:       cmd.Points,
		BalanceAfter: next,
		Type:         enums.LoyaltyEntryRedemptionReversal,
		Reason:       reason,
		Reference:    cmd.Reference,
	}); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *service) Balance(ctx context.Context, customerID uuid.UUID) (int, error) {
	customer, err := s.repo.FindCustomer(ctx, customerID)
	if err != nil {
		return 0, customerError(err)
	}
	return customer.PointsBalance, nil
}

func (s *service) History(ctx context.Context, customerID uuid.UUID, params pagination.Params) (pagination.Page[models.LoyaltyLog], error) {
	if _, err := s.repo.FindCustomer(ctx, customerID); err != nil {
		return pagination.Page[models.LoyaltyLog]{}, customerError(err)
	}
	return s.ledger.LoyaltyHistory(ctx, customerID, params)
}

func (s *service) lockCustomer(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.WithTx(tx).LockCustomer(ctx, customerID)
	if err != nil {
		return nil, customerError(err)
	}
	return customer, nil
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, customer *models.Customer, next int, entry ledger.LoyaltyEntry) error {
	if err := s.repo.WithTx(tx).CompareAndSetBalance(ctx, customer.ID, customer.PointsBalance, next); err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update points balance")
	}
	if _, err := s.ledger.RecordLoyalty(ctx, tx, entry); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithCustomerID(ctx, customer.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"entry_type":    entry.Type,
			"points_change": entry.Change,
			"balance_after": next,
		})
		s.logg.Debug(logCtx, "points balance updated")
	}
	return nil
}

func customerError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load customer")
}
