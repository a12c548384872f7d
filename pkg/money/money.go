// Package money converts between peso decimals and integer centavos.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToPesos renders centavos as a peso amount with two decimal places.
func ToPesos(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// FromPesos converts a peso amount to centavos, dropping fractions of a centavo.
func FromPesos(pesos decimal.Decimal) int64 {
	return pesos.Shift(2).Truncate(0).IntPart()
}

// ParsePesos parses a decimal peso string such as "20" or "19.50".
func ParsePesos(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse pesos %q: %w", value, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("pesos %q must not be negative", value)
	}
	return FromPesos(d), nil
}

// PointsValue is the centavo value of points at the given peso-per-point rate.
func PointsValue(points int, pesoPerPoint decimal.Decimal) int64 {
	if points <= 0 || !pesoPerPoint.IsPositive() {
		return 0
	}
	return FromPesos(decimal.NewFromInt(int64(points)).Mul(pesoPerPoint))
}

// Format renders centavos for logs and messages, e.g. "₱70.00".
func Format(cents int64) string {
	return "₱" + ToPesos(cents).StringFixed(2)
}

// PointsCoveredBy is the largest number of points whose value does not exceed cents.
func PointsCoveredBy(cents int64, pesoPerPoint decimal.Decimal) int {
	if cents <= 0 || !pesoPerPoint.IsPositive() {
		return 0
	}
	points := int(ToPesos(cents).Div(pesoPerPoint).Floor().IntPart())
	for points > 0 && PointsValue(points, pesoPerPoint) > cents {
		points--
	}
	for PointsValue(points+1, pesoPerPoint) <= cents {
		points++
	}
	return points
}
