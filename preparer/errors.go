package preparer

import (
	"errors"
	"fmt"
)

// ErrUnsupportedMarket marks a market that cannot be traded: either no
// symbol mapping exists or the exchange does not list the symbol. The
// market stays blacklisted until the periodic reset clears it.
var ErrUnsupportedMarket = errors.New("market not supported")

// ErrAccountNotTradable is returned by Submit when the exchange account is
// not permitted to trade.
var ErrAccountNotTradable = errors.New("account not permitted to trade")

// SizingError reports an infeasible trade: the computed quantity violates a
// sizing constraint. It does not blacklist the market; a larger intent for
// the same market may well succeed.
type SizingError struct {
	Market string
	Symbol string
	Reason string
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("sizing rejected for %s (%s): %s", e.Market, e.Symbol, e.Reason)
}

// FetchError wraps a transient exchange or network failure during metadata,
// price or configuration calls. The market is NOT blacklisted; callers
// choose whether to retry.
type FetchError struct {
	Op     string
	Market string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Market, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
