package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order on the exchange.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// MarginType is the margin mode applied to a symbol's positions.
type MarginType string

const (
	MarginTypeIsolated MarginType = "ISOLATED"
	MarginTypeCrossed  MarginType = "CROSSED"
)

// TradeIntent represents an internal trading decision before it is
// translated into exchange order parameters. Size is the desired notional
// exposure in quote units.
type TradeIntent struct {
	IsLong  bool
	Market  string
	Size    decimal.Decimal
	IsClose bool
}

// SymbolMetadata carries the exchange-imposed constraints for one symbol.
// MinQty and MinNotional default to zero when the exchange omits the
// corresponding filter.
type SymbolMetadata struct {
	Symbol            string
	QuantityPrecision int
	MinQty            decimal.Decimal
	MinNotional       decimal.Decimal
}

// OrderDescriptor is a ready-to-submit order. Quantity always satisfies the
// symbol's minimum quantity and minimum notional at computation time.
type OrderDescriptor struct {
	Side     Side
	Symbol   string
	Quantity decimal.Decimal
}

// SymbolConfig is the account-level leverage and margin mode currently set
// for a symbol on the exchange.
type SymbolConfig struct {
	Leverage   int
	MarginType MarginType
}

// OrderReport records the outcome of a submitted order for the audit trail.
type OrderReport struct {
	ID            string    `json:"id"`
	OrderID       int64     `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Status        string    `json:"status"`
	Quantity      string    `json:"quantity"`
	ExecutedQty   string    `json:"executed_qty"`
	AvgPrice      string    `json:"avg_price"`
	ReduceOnly    bool      `json:"reduce_only"`
	Timestamp     time.Time `json:"timestamp"`
}

// AccountInfo is the subset of futures account state the connector checks
// before trading.
type AccountInfo struct {
	CanTrade bool
}

// Position is an open futures position as reported by the exchange.
type Position struct {
	Symbol        string
	Amount        decimal.Decimal
	EntryPrice    decimal.Decimal
	Leverage      int
	MarginType    MarginType
	UnrealizedPnL decimal.Decimal
}
