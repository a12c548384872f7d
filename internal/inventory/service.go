package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/metrics"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/aquaflow-backend/pkg/validation"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerWriter interface {
	RecordInventory(ctx context.Context, tx *gorm.DB, entry ledger.InventoryEntry) (*models.InventoryLog, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the only writer of product stock. Every movement locks the
// touched rows, writes the counter with a compare-and-swap and appends one
// ledger row per product.
type Service interface {
	Reserve(ctx context.Context, cmd ReserveCommand) (*ReservationReceipt, error)
	ReserveWithTx(ctx context.Context, tx *gorm.DB, cmd ReserveCommand) (*ReservationReceipt, error)
	CheckAvailabilityWithTx(ctx context.Context, tx *gorm.DB, lines []Line) error
	Release(ctx context.Context, cmd ReleaseCommand) error
	ReleaseWithTx(ctx context.Context, tx *gorm.DB, cmd ReleaseCommand) error
	Adjust(ctx context.Context, cmd AdjustCommand) (int, error)
	AdjustWithTx(ctx context.Context, tx *gorm.DB, cmd AdjustCommand) (int, error)
}

// ServiceParams wires the inventory manager.
type ServiceParams struct {
	Repo    Repository
	Ledger  ledgerWriter
	Outbox  outboxEmitter
	Tx      txRunner
	Metrics *metrics.CommerceMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	ledger  ledgerWriter
	outbox  outboxEmitter
	tx      txRunner
	metrics *metrics.CommerceMetrics
	logg    *logger.Logger
}

// NewService validates dependencies and returns the inventory manager.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    params.Repo,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		tx:      params.Tx,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) Reserve(ctx context.Context, cmd ReserveCommand) (*ReservationReceipt, error) {
	if _, err := normalizeLines(cmd.Lines); err != nil {
		return nil, err
	}
	var receipt *ReservationReceipt
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		receipt, err = s.ReserveWithTx(ctx, tx, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *service) ReserveWithTx(ctx context.Context, tx *gorm.DB, cmd ReserveCommand) (*ReservationReceipt, error) {
	lines, err := normalizeLines(cmd.Lines)
	if err != nil {
		return nil, err
	}
	products, err := s.lock(ctx, tx, lines)
	if err != nil {
		return nil, err
	}
	if err := checkStock(lines, products); err != nil {
		return nil, err
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "order reservation"
	}
	receipt := &ReservationReceipt{}
	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		product := products[line.ProductID]
		next := product.StockQuantity - line.Quantity
		if err := repo.CompareAndSetStock(ctx, product.ID, product.StockQuantity, next); err != nil {
			return nil, stockWriteError(err)
		}
		entry, err := s.ledger.RecordInventory(ctx, tx, ledger.InventoryEntry{
			ProductID: product.ID,
			Change:    -line.Quantity,
			Previous:  product.StockQuantity,
			New:       next,
			Type:      enums.InventoryChangeSale,
			Reason:    reason,
			Reference: cmd.Reference,
			Actor:     &cmd.Actor,
		})
		if err != nil {
			return nil, err
		}
		receipt.Entries = append(receipt.Entries, *entry)

		if product.IsActive && next <= product.LowStockThreshold {
			if err := s.emitLowStock(ctx, tx, product, next, cmd.Actor); err != nil {
				return nil, err
			}
			receipt.LowStock = append(receipt.LowStock, product.ID)
		}
	}
	return receipt, nil
}

// CheckAvailabilityWithTx verifies stock without taking it.
func (s *service) CheckAvailabilityWithTx(ctx context.Context, tx *gorm.DB, lines []Line) error {
	normalized, err := normalizeLines(lines)
	if err != nil {
		return err
	}
	found, err := s.repo.WithTx(tx).FindProducts(ctx, productIDs(normalized))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load products")
	}
	products, err := indexProducts(normalized, found)
	if err != nil {
		return err
	}
	return checkStock(normalized, products)
}

func (s *service) Release(ctx context.Context, cmd ReleaseCommand) error {
	if _, err := normalizeLines(cmd.Lines); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReleaseWithTx(ctx, tx, cmd)
	})
}

func (s *service) ReleaseWithTx(ctx context.Context, tx *gorm.DB, cmd ReleaseCommand) error {
	lines, err := normalizeLines(cmd.Lines)
	if err != nil {
		return err
	}
	products, err := s.lock(ctx, tx, lines)
	if err != nil {
		return err
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "order cancelled"
	}
	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		product := products[line.ProductID]
		next := product.StockQuantity + line.Quantity
		if err := repo.CompareAndSetStock(ctx, product.ID, product.StockQuantity, next); err != nil {
			return stockWriteError(err)
		}
		if _, err := s.ledger.RecordInventory(ctx, tx, ledger.InventoryEntry{
			ProductID: product.ID,
			Change:    line.Quantity,
			Previous:  product.StockQuantity,
			New:       next,
			Type:      enums.InventoryChangeCancellation,
			Reason:    reason,
			Reference: cmd.Reference,
			Actor:     &cmd.Actor,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Adjust(ctx context.Context, cmd AdjustCommand) (int, error) {
	if err := validateAdjust(cmd); err != nil {
		return 0, err
	}
	var quantity int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		quantity, err = s.AdjustWithTx(ctx, tx, cmd)
		return err
	})
	if err != nil {
		return 0, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": cmd.ProductID.String(),
			"delta":      cmd.Delta,
			"quantity":   quantity,
		})
		s.logg.Info(logCtx, "stock adjusted")
	}
	return quantity, nil
}

func (s *service) AdjustWithTx(ctx context.Context, tx *gorm.DB, cmd AdjustCommand) (int, error) {
	if err := validateAdjust(cmd); err != nil {
		return 0, err
	}
	changeType := cmd.Type
	if changeType == "" {
		changeType = defaultAdjustType(cmd.Delta)
	}

	products, err := s.lock(ctx, tx, []Line{{ProductID: cmd.ProductID, Quantity: 1}})
	if err != nil {
		return 0, err
	}
	product := products[cmd.ProductID]
	next := product.StockQuantity + cmd.Delta
	if next < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeInsufficientStock, "adjustment would make stock negative").
			WithDetails([]Shortfall{{ProductID: product.ID, Requested: -cmd.Delta, Available: product.StockQuantity}})
	}
	if err := s.repo.WithTx(tx).CompareAndSetStock(ctx, product.ID, product.StockQuantity, next); err != nil {
		return 0, stockWriteError(err)
	}
	if _, err := s.ledger.RecordInventory(ctx, tx, ledger.InventoryEntry{
		ProductID: product.ID,
		Change:    cmd.Delta,
		Previous:  product.StockQuantity,
		New:       next,
		Type:      changeType,
		Reason:    cmd.Reason,
		Reference: &ledger.Reference{Type: ledger.ReferenceManualAdjustment, ID: product.ID},
		Actor:     &cmd.Actor,
	}); err != nil {
		return 0, err
	}
	if cmd.Delta < 0 && product.IsActive && next <= product.LowStockThreshold {
		if err := s.emitLowStock(ctx, tx, product, next, cmd.Actor); err != nil {
			return 0, err
		}
	}
	return next, nil
}

func (s *service) lock(ctx context.Context, tx *gorm.DB, lines []Line) (map[uuid.UUID]models.Product, error) {
	found, err := s.repo.WithTx(tx).LockProducts(ctx, productIDs(lines))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lock products")
	}
	return indexProducts(lines, found)
}

func (s *service) emitLowStock(ctx context.Context, tx *gorm.DB, product models.Product, quantity int, actor ledger.Actor) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventLowStockSignal,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Actor:         actorRef(actor),
		Data: payloads.LowStockSignalEvent{
			ProductID: product.ID,
			Quantity:  quantity,
			Threshold: product.LowStockThreshold,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "queue low stock signal")
	}
	s.metrics.IncLowStock()
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID.String(),
			"quantity":   quantity,
			"threshold":  product.LowStockThreshold,
		})
		s.logg.Warn(logCtx, "product at or below low stock threshold")
	}
	return nil
}

func actorRef(actor ledger.Actor) *outbox.ActorRef {
	if actor.Role == "" {
		return nil
	}
	return &outbox.ActorRef{ID: actor.ID, Role: string(actor.Role)}
}

// normalizeLines validates each line and merges duplicates, returning them in
// product id order.
func normalizeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	totals := make(map[uuid.UUID]int, len(lines))
	for i, line := range lines {
		if err := validation.Struct(line); err != nil {
			if typed := pkgerrors.As(err); typed != nil {
				return nil, typed.WithDetails(map[string]any{"line": i, "fields": typed.Details()})
			}
			return nil, err
		}
		totals[line.ProductID] += line.Quantity
	}
	merged := make([]Line, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged, nil
}

func productIDs(lines []Line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func indexProducts(lines []Line, found []models.Product) (map[uuid.UUID]models.Product, error) {
	byID := make(map[uuid.UUID]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	for _, line := range lines {
		if _, ok := byID[line.ProductID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
	}
	return byID, nil
}

// checkStock evaluates every line before any write so the caller sees the full
// list of shortfalls.
func checkStock(lines []Line, products map[uuid.UUID]models.Product) error {
	var shortfalls []Shortfall
	for _, line := range lines {
		product := products[line.ProductID]
		if product.StockQuantity < line.Quantity {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: product.ID,
				Requested: line.Quantity,
				Available: product.StockQuantity,
			})
		}
	}
	if len(shortfalls) > 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(shortfalls)
	}
	return nil
}

// Shortfalls extracts the per-line details from an INSUFFICIENT_STOCK error.
func Shortfalls(err error) []Shortfall {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		return nil
	}
	shortfalls, _ := typed.Details().([]Shortfall)
	return shortfalls
}

func stockWriteError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update product stock")
}

func validateAdjust(cmd AdjustCommand) error {
	if err := validation.Struct(cmd); err != nil {
		return err
	}
	if cmd.Type != "" {
		switch cmd.Type {
		case enums.InventoryChangeRestock, enums.InventoryChangeAdjustment, enums.InventoryChangeDamage:
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("change type %q is not a manual adjustment", cmd.Type))
		}
		if cmd.Type == enums.InventoryChangeRestock && cmd.Delta < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "restock must add stock")
		}
		if cmd.Type == enums.InventoryChangeDamage && cmd.Delta > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "damage must remove stock")
		}
	}
	return nil
}

func defaultAdjustType(delta int) enums.InventoryChangeType {
	if delta > 0 {
		return enums.InventoryChangeRestock
	}
	return enums.InventoryChangeAdjustment
}
