package sizing

import (
	"testing"

	"github.com/shopspring/decimal"

	"tradelink/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSideFor(t *testing.T) {
	tests := []struct {
		isLong  bool
		isClose bool
		want    models.Side
	}{
		{true, false, models.SideBuy},
		{true, true, models.SideSell},
		{false, false, models.SideSell},
		{false, true, models.SideBuy},
	}
	for _, tt := range tests {
		if got := SideFor(tt.isLong, tt.isClose); got != tt.want {
			t.Errorf("SideFor(%v,%v)=%s want %s", tt.isLong, tt.isClose, got, tt.want)
		}
	}
}

func TestLeverageFor(t *testing.T) {
	table := map[string]int{"binance": 10}
	if got := LeverageFor(table, "binance"); got != 10 {
		t.Errorf("LeverageFor binance = %d want 10", got)
	}
	if got := LeverageFor(table, "Binance"); got != 10 {
		t.Errorf("LeverageFor should be case-insensitive, got %d", got)
	}
	if got := LeverageFor(table, "bybit"); got != DefaultLeverage {
		t.Errorf("LeverageFor unknown exchange = %d want %d", got, DefaultLeverage)
	}
	if got := LeverageFor(nil, "binance"); got != DefaultLeverage {
		t.Errorf("LeverageFor nil table = %d want %d", got, DefaultLeverage)
	}
}

func TestComputeQuantityRejectsBelowMinimum(t *testing.T) {
	cases := []struct {
		collateral string
		price      string
	}{
		{"0", "100"},
		{"-5", "100"},
		{"49.999", "100"},
		{"0.5", "100000"},
		{"100", "0"},
		{"100", "-1"},
	}
	for _, c := range cases {
		got := ComputeQuantity(d(c.collateral), d(c.price), 20, 4)
		if !got.IsZero() {
			t.Errorf("ComputeQuantity(%s, %s) = %s want 0", c.collateral, c.price, got)
		}
	}
}

func TestComputeQuantityTruncates(t *testing.T) {
	tests := []struct {
		collateral string
		price      string
		leverage   int
		precision  int
		want       string
	}{
		// 50*20/30000 = 0.0333... -> 0.033
		{"50", "30000", 20, 3, "0.033"},
		// 100*20/3 = 666.666... -> 666.6
		{"100", "3", 20, 1, "666.6"},
		// exact division, no truncation needed
		{"50", "1000", 20, 4, "1"},
		// precision 0 floors to whole units
		{"75", "4", 20, 0, "375"},
		// truncation, never rounding up: 59*20/7 = 168.571... -> 168.57
		{"59", "7", 20, 2, "168.57"},
	}
	for _, tt := range tests {
		got := ComputeQuantity(d(tt.collateral), d(tt.price), tt.leverage, tt.precision)
		if !got.Equal(d(tt.want)) {
			t.Errorf("ComputeQuantity(%s,%s,%d,%d)=%s want %s",
				tt.collateral, tt.price, tt.leverage, tt.precision, got, tt.want)
		}
		// result scaled by 10^precision must be an integer
		if !got.Shift(int32(tt.precision)).Equal(got.Shift(int32(tt.precision)).Truncate(0)) {
			t.Errorf("ComputeQuantity(%s,%s) result %s not aligned to precision %d",
				tt.collateral, tt.price, got, tt.precision)
		}
	}
}

func TestComputeQuantityNegativePrecision(t *testing.T) {
	got := ComputeQuantity(d("100"), d("5"), 20, -3)
	if !got.Equal(d("400")) {
		t.Errorf("negative precision should clamp to 0, got %s", got)
	}
}
