package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/internal/orders"
	"github.com/angelmondragon/aquaflow-backend/internal/settings"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/validation"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// orderEngine is the subset of the order engine the dispatcher mirrors through.
type orderEngine interface {
	TransitionWithTx(ctx context.Context, tx *gorm.DB, cfg settings.Snapshot, cmd orders.TransitionOrderCommand) (*orders.TransitionResult, error)
	GetWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
}

// Service is the delivery dispatcher.
type Service interface {
	Assign(ctx context.Context, cmd AssignCommand) (*Result, error)
	Accept(ctx context.Context, cmd AcceptCommand) (*Result, error)
	Update(ctx context.Context, cmd UpdateCommand) (*Result, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error)
	ListForStaff(ctx context.Context, staffID uuid.UUID, actor ledger.Actor, activeOnly bool) ([]models.DeliveryAssignment, error)
}

type service struct {
	repo     Repository
	engine   orderEngine
	settings settings.Provider
	tx       txRunner
	logg     *logger.Logger
}

func NewService(repo Repository, engine orderEngine, provider settings.Provider, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("order engine required")
	}
	if provider == nil {
		return nil, fmt.Errorf("settings provider required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, engine: engine, settings: provider, tx: tx, logg: logg}, nil
}

// Assign hands the order to StaffID on behalf of an operator.
func (s *service) Assign(ctx context.Context, cmd AssignCommand) (*Result, error) {
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}
	if !cmd.Actor.Role.IsOperator() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only operators may assign deliveries")
	}
	return s.claim(ctx, cmd.OrderID, cmd.StaffID, cmd.Actor)
}

// Accept lets delivery staff claim an order. Repeating it is a no-op.
func (s *service) Accept(ctx context.Context, cmd AcceptCommand) (*Result, error) {
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}
	if cmd.Actor.Role != enums.ActorRoleDelivery || cmd.Actor.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only delivery staff may accept deliveries")
	}
	return s.claim(ctx, cmd.OrderID, cmd.Actor.ID, cmd.Actor)
}

func (s *service) claim(ctx context.Context, orderID, staffID uuid.UUID, actor ledger.Actor) (*Result, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := repo.LockByOrder(ctx, orderID)
		if err != nil && !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lock delivery assignment")
		}

		if assignment != nil && assignment.DeliveryStaffID != nil {
			if *assignment.DeliveryStaffID != staffID {
				return pkgerrors.New(pkgerrors.CodeAlreadyAssigned, "order is held by another delivery staff member")
			}
			order, err := s.engine.GetWithTx(ctx, tx, orderID)
			if err != nil {
				return err
			}
			result = &Result{Assignment: assignment, Order: order, Changed: false}
			return nil
		}

		mirrored, err := s.engine.TransitionWithTx(ctx, tx, cfg, orders.TransitionOrderCommand{
			OrderID: orderID,
			Status:  enums.OrderStatusConfirmed,
			Reason:  "assigned for delivery",
			Actor:   actor,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if assignment == nil {
			assignment = &models.DeliveryAssignment{
				OrderID:         orderID,
				DeliveryStaffID: &staffID,
				Status:          enums.DeliveryStatusAssigned,
				AssignedAt:      &now,
			}
			if err := repo.Create(ctx, assignment); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, "delivery assignment created concurrently")
				}
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create delivery assignment")
			}
		} else {
			if !CanTransition(assignment.Status, enums.DeliveryStatusAssigned) {
				return invalidTransition(assignment.Status, enums.DeliveryStatusAssigned)
			}
			if err := repo.UpdateStatus(ctx, assignment.ID, assignment.Status, map[string]any{
				"status":            enums.DeliveryStatusAssigned,
				"delivery_staff_id": staffID,
				"assigned_at":       now,
			}); err != nil {
				return persistence(err, "assign delivery")
			}
			assignment.Status = enums.DeliveryStatusAssigned
			assignment.DeliveryStaffID = &staffID
			assignment.AssignedAt = &now
		}
		result = &Result{Assignment: assignment, Order: mirrored.Order, Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx, result, actor, "delivery assigned")
	return result, nil
}

// Update moves the assignment and mirrors the mapped status onto the order in
// the same transaction.
func (s *service) Update(ctx context.Context, cmd UpdateCommand) (*Result, error) {
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}
	if !cmd.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status").
			WithDetails(map[string]string{"status": "is invalid"})
	}
	if cmd.Status == enums.DeliveryStatusPending || cmd.Status == enums.DeliveryStatusAssigned {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use assign or accept to claim a delivery").
			WithDetails(map[string]string{"status": "is not an update target"})
	}
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := repo.LockByOrder(ctx, cmd.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order has no delivery assignment")
			}
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lock delivery assignment")
		}
		if err := authorizeUpdate(assignment, cmd.Actor); err != nil {
			return err
		}

		if assignment.Status == cmd.Status {
			order, err := s.engine.GetWithTx(ctx, tx, cmd.OrderID)
			if err != nil {
				return err
			}
			result = &Result{Assignment: assignment, Order: order, Changed: false}
			return nil
		}
		if !CanTransition(assignment.Status, cmd.Status) {
			return invalidTransition(assignment.Status, cmd.Status)
		}

		target, _ := OrderStatusFor(cmd.Status)
		reason := strings.TrimSpace(cmd.Reason)
		if reason == "" && target == enums.OrderStatusCancelled {
			reason = "delivery " + string(cmd.Status)
		}
		now := time.Now().UTC()
		updates := map[string]any{"status": cmd.Status}
		switch cmd.Status {
		case enums.DeliveryStatusOutForDelivery:
			updates["picked_up_at"] = now
			assignment.PickedUpAt = &now
		case enums.DeliveryStatusDelivered:
			updates["delivered_at"] = now
			assignment.DeliveredAt = &now
		case enums.DeliveryStatusFailed, enums.DeliveryStatusCancelled:
			updates["cancellation_reason"] = reason
			assignment.CancellationReason = &reason
		}
		if err := repo.UpdateStatus(ctx, assignment.ID, assignment.Status, updates); err != nil {
			return persistence(err, "update delivery assignment")
		}
		assignment.Status = cmd.Status

		// The assignment is written first so an order cancellation finds it
		// already terminal.
		mirrored, err := s.engine.TransitionWithTx(ctx, tx, cfg, orders.TransitionOrderCommand{
			OrderID: cmd.OrderID,
			Status:  target,
			Reason:  reason,
			Actor:   cmd.Actor,
		})
		if err != nil {
			return err
		}
		result = &Result{Assignment: assignment, Order: mirrored.Order, Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx, result, cmd.Actor, "delivery updated")
	return result, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	assignment, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load delivery assignment")
	}
	return assignment, nil
}

// ListForStaff returns a staff member's assignments, most recent first.
func (s *service) ListForStaff(ctx context.Context, staffID uuid.UUID, actor ledger.Actor, activeOnly bool) ([]models.DeliveryAssignment, error) {
	if !actor.Role.IsOperator() && actor.ID != staffID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot list another staff member's deliveries")
	}
	var statuses []enums.DeliveryStatus
	if activeOnly {
		statuses = []enums.DeliveryStatus{enums.DeliveryStatusAssigned, enums.DeliveryStatusOutForDelivery}
	}
	out, err := s.repo.ListByStaff(ctx, staffID, statuses)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list delivery assignments")
	}
	return out, nil
}

func (s *service) log(ctx context.Context, result *Result, actor ledger.Actor, msg string) {
	if s.logg == nil || result == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, result.Assignment.OrderID.String())
	logCtx = s.logg.WithActorRole(logCtx, string(actor.Role))
	fields := map[string]any{
		"delivery_status": result.Assignment.Status,
		"changed":         result.Changed,
	}
	if result.Assignment.DeliveryStaffID != nil {
		fields["delivery_staff_id"] = result.Assignment.DeliveryStaffID.String()
	}
	s.logg.Info(s.logg.WithFields(logCtx, fields), msg)
}

func authorizeUpdate(assignment *models.DeliveryAssignment, actor ledger.Actor) error {
	if actor.Role.IsOperator() {
		return nil
	}
	if actor.Role == enums.ActorRoleDelivery && assignment.DeliveryStaffID != nil && *assignment.DeliveryStaffID == actor.ID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned staff member may update this delivery")
}

func invalidTransition(from, to enums.DeliveryStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move delivery from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

func persistence(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, op)
}
