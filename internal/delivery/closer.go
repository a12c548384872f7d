package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderCloser retires the open assignment of an order the order engine
// cancels directly, so riders stop seeing it as active.
type OrderCloser struct {
	repo Repository
}

func NewOrderCloser(repo Repository) (*OrderCloser, error) {
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	return &OrderCloser{repo: repo}, nil
}

// CloseForOrderWithTx runs inside the cancelling transaction. Orders without
// an assignment, or whose assignment is already terminal, are left alone.
func (c *OrderCloser) CloseForOrderWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
	repo := c.repo.WithTx(tx)
	for _, step := range closeTargets {
		n, err := repo.CloseByOrder(ctx, orderID, step.from, step.to, reason)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
	return nil
}
