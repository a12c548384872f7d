package enums

import (
	"fmt"
	"slices"
)

// LoyaltyEntryType labels a loyalty ledger row.
type LoyaltyEntryType string

const (
	LoyaltyEntryEarned             LoyaltyEntryType = "earned"
	LoyaltyEntryRedeemed           LoyaltyEntryType = "redeemed"
	LoyaltyEntryRedemptionReversal LoyaltyEntryType = "redemption_reversal"
	LoyaltyEntryAdjustment         LoyaltyEntryType = "adjustment"
)

var validLoyaltyEntryTypes = []LoyaltyEntryType{
	LoyaltyEntryEarned,
	LoyaltyEntryRedeemed,
	LoyaltyEntryRedemptionReversal,
	LoyaltyEntryAdjustment,
}

// String implements fmt.Stringer.
func (l LoyaltyEntryType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LoyaltyEntryType.
func (l LoyaltyEntryType) IsValid() bool {
	return slices.Contains(validLoyaltyEntryTypes, l)
}

// ParseLoyaltyEntryType converts raw input into a LoyaltyEntryType.
func ParseLoyaltyEntryType(value string) (LoyaltyEntryType, error) {
	if v := LoyaltyEntryType(value); v.IsValid() {
		return v, nil
	}
	return "", fmt.Errorf("invalid loyalty entry type %q", value)
}
