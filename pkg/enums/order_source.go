package enums

import (
	"fmt"
	"slices"
)

// OrderSource identifies the channel that created an order.
type OrderSource string

const (
	OrderSourceOnline       OrderSource = "online"
	OrderSourcePOS          OrderSource = "pos"
	OrderSourceSubscription OrderSource = "subscription"
)

var validOrderSources = []OrderSource{
	OrderSourceOnline,
	OrderSourcePOS,
	OrderSourceSubscription,
}

// String implements fmt.Stringer.
func (o OrderSource) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderSource.
func (o OrderSource) IsValid() bool {
	return slices.Contains(validOrderSources, o)
}

// ParseOrderSource converts raw input into a OrderSource.
func ParseOrderSource(value string) (OrderSource, error) {
	if v := OrderSource(value); v.IsValid() {
		return v, nil
	}
	return "", fmt.Errorf("invalid order source %q", value)
}
