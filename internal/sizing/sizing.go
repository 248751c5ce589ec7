package sizing

import (
	"strings"

	"github.com/shopspring/decimal"

	"tradelink/logger"
	"tradelink/models"
)

// DefaultLeverage is applied when no entry exists in the configured
// leverage table for an exchange.
const DefaultLeverage = 20

// MinCollateral is the smallest collateral, in quote units, the connector
// will size an order for. Anything below is rejected outright.
var MinCollateral = decimal.NewFromInt(50)

// SideFor maps a trade intent direction to an exchange order side.
// Closing a long sells and closing a short buys; opening is the inverse.
func SideFor(isLong, isClose bool) models.Side {
	if isLong != isClose {
		return models.SideBuy
	}
	return models.SideSell
}

// LeverageFor looks up the leverage for an exchange in the configured
// table, falling back to DefaultLeverage when the table has no entry.
func LeverageFor(table map[string]int, exchange string) int {
	if lev, ok := table[strings.ToLower(exchange)]; ok && lev > 0 {
		return lev
	}
	return DefaultLeverage
}

// ComputeQuantity converts collateral at the given leverage into a base
// quantity truncated to the symbol's quantity precision. Truncation rather
// than rounding guarantees the result never exceeds what the collateral can
// fund. Zero is returned when the inputs cannot produce a valid order:
// non-positive collateral or price, or collateral below MinCollateral.
//
// Reference: collateral 100, price 50000, leverage 20, precision 3 gives
// 100*20/50000 = 0.040.
func ComputeQuantity(collateral, price decimal.Decimal, leverage, precision int) decimal.Decimal {
	log := logger.GetLogger().WithComponent("sizing")

	if collateral.LessThanOrEqual(decimal.Zero) || price.LessThanOrEqual(decimal.Zero) {
		log.WithFields(logger.Fields{
			"collateral": collateral.String(),
			"price":      price.String(),
		}).Warn("non-positive collateral or price, rejecting")
		return decimal.Zero
	}

	if collateral.LessThan(MinCollateral) {
		log.WithFields(logger.Fields{
			"collateral": collateral.String(),
			"minimum":    MinCollateral.String(),
		}).Warn("collateral below minimum, rejecting")
		return decimal.Zero
	}

	if precision < 0 {
		precision = 0
	}

	qty := collateral.Mul(decimal.NewFromInt(int64(leverage))).Div(price)
	return qty.Truncate(int32(precision))
}
