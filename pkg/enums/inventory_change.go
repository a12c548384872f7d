package enums

import (
	"fmt"
	"slices"
)

// InventoryChangeType labels an inventory ledger row.
type InventoryChangeType string

const (
	InventoryChangeSale         InventoryChangeType = "sale"
	InventoryChangeCancellation InventoryChangeType = "cancellation"
	InventoryChangeRestock      InventoryChangeType = "restock"
	InventoryChangeAdjustment   InventoryChangeType = "adjustment"
	InventoryChangeDamage       InventoryChangeType = "damage"
)

var validInventoryChangeTypes = []InventoryChangeType{
	InventoryChangeSale,
	InventoryChangeCancellation,
	InventoryChangeRestock,
	InventoryChangeAdjustment,
	InventoryChangeDamage,
}

// String implements fmt.Stringer.
func (i InventoryChangeType) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InventoryChangeType.
func (i InventoryChangeType) IsValid() bool {
	return slices.Contains(validInventoryChangeTypes, i)
}

// ParseInventoryChangeType converts raw input into a InventoryChangeType.
func ParseInventoryChangeType(value string) (InventoryChangeType, error) {
	if v := InventoryChangeType(value); v.IsValid() {
		return v, nil
	}
	return "", fmt.Errorf("invalid inventory change type %q", value)
}
