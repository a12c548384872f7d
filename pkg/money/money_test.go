package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPointsValue(t *testing.T) {
	cases := []struct {
		points int
		rate   string
		want   int64
	}{
		{points: 120, rate: "1", want: 12000},
		{points: 120, rate: "0.25", want: 3000},
		{points: 3, rate: "0.333", want: 99},
		{points: 0, rate: "1", want: 0},
		{points: 10, rate: "0", want: 0},
	}
	for _, tc := range cases {
		got := PointsValue(tc.points, decimal.RequireFromString(tc.rate))
		if got != tc.want {
			t.Fatalf("PointsValue(%d, %s) = %d want %d", tc.points, tc.rate, got, tc.want)
		}
	}
}

func TestParsePesos(t *testing.T) {
	if got, err := ParsePesos("20"); err != nil || got != 2000 {
		t.Fatalf("expected 2000 cents, got %d (%v)", got, err)
	}
	if got, err := ParsePesos("19.505"); err != nil || got != 1950 {
		t.Fatalf("expected truncation to 1950, got %d (%v)", got, err)
	}
	if _, err := ParsePesos("-1"); err == nil {
		t.Fatal("expected negative amount to fail")
	}
	if _, err := ParsePesos("twenty"); err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestFormat(t *testing.T) {
	if got := Format(7000); got != "₱70.00" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := ToPesos(2550).String(); got != "25.5" {
		t.Fatalf("unexpected pesos %q", got)
	}
}

func TestPointsCoveredBy(t *testing.T) {
	cases := []struct {
		cents int64
		rate  string
		want  int
	}{
		{cents: 7000, rate: "1", want: 70},
		{cents: 7050, rate: "0.25", want: 282},
		{cents: 99, rate: "0.333", want: 3},
		{cents: 0, rate: "1", want: 0},
		{cents: 500, rate: "0", want: 0},
	}
	for _, tc := range cases {
		rate := decimal.RequireFromString(tc.rate)
		got := PointsCoveredBy(tc.cents, rate)
		if got != tc.want {
			t.Fatalf("PointsCoveredBy(%d, %s) = %d want %d", tc.cents, tc.rate, got, tc.want)
		}
		if PointsValue(got, rate) > tc.cents {
			t.Fatalf("covered points exceed cap for %d", tc.cents)
		}
	}
}
