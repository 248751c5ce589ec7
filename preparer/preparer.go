package preparer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	appconfig "tradelink/config"
	"tradelink/exchange"
	"tradelink/internal/sizing"
	"tradelink/internal/symbols"
	"tradelink/logger"
	"tradelink/models"
)

// ExchangeClient is the exchange metadata/account collaborator the pipeline
// drives. exchange.Binance satisfies it.
type ExchangeClient interface {
	SymbolMetadata(ctx context.Context, symbol string) (*models.SymbolMetadata, error)
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	SymbolConfig(ctx context.Context, symbol string) (*models.SymbolConfig, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginType(ctx context.Context, symbol string, mt models.MarginType) error
	SubmitOrder(ctx context.Context, desc *models.OrderDescriptor, reduceOnly bool) (*models.OrderReport, error)
	AccountInfo(ctx context.Context) (*models.AccountInfo, error)
}

// Auditor records submitted orders. audit.Trail satisfies it.
type Auditor interface {
	Record(report models.OrderReport) error
}

// Preparer owns the order preparation pipeline together with the process
// state the pipeline accumulates: the unsupported-market set and the
// per-symbol configuration memo.
type Preparer struct {
	config     *appconfig.Config
	client     ExchangeClient
	auditor    Auditor
	log        *logger.Log
	leverage   int
	marginType models.MarginType

	mu          sync.Mutex
	unsupported map[string]struct{}
	// configured records symbols whose leverage or margin mode this process
	// has corrected. It is a write memo, not a cache of exchange truth.
	configured map[string]struct{}
}

// New creates a Preparer. The auditor may be nil when no audit trail is
// wanted (tests).
func New(cfg *appconfig.Config, client ExchangeClient, auditor Auditor) *Preparer {
	return &Preparer{
		config:      cfg,
		client:      client,
		auditor:     auditor,
		log:         logger.GetLogger(),
		leverage:    sizing.LeverageFor(cfg.Trading.Leverage, cfg.Exchange.Name),
		marginType:  models.MarginType(strings.ToUpper(cfg.Trading.MarginType)),
		unsupported: make(map[string]struct{}),
		configured:  make(map[string]struct{}),
	}
}

// Prepare translates a trade intent into an exchange-compliant order
// descriptor. Failure outcomes are typed: ErrUnsupportedMarket blacklists
// the market until the next reset, *SizingError reports an infeasible trade
// without blacklisting, and *FetchError reports a transient exchange
// failure the caller may retry.
func (p *Preparer) Prepare(ctx context.Context, intent models.TradeIntent) (*models.OrderDescriptor, error) {
	start := time.Now()
	log := p.log.WithComponent("preparer").WithFields(logger.Fields{"market": intent.Market})

	if p.isUnsupported(intent.Market) {
		log.Debug("market in unsupported set, short-circuiting")
		return nil, fmt.Errorf("%s: %w", intent.Market, ErrUnsupportedMarket)
	}

	symbol, ok := symbols.Resolve(intent.Market)
	if !ok {
		p.markUnsupported(intent.Market)
		log.Warn("no symbol mapping for market")
		return nil, fmt.Errorf("%s: %w", intent.Market, ErrUnsupportedMarket)
	}
	log = log.WithFields(logger.Fields{"symbol": symbol})

	meta, err := p.client.SymbolMetadata(ctx, symbol)
	if err != nil {
		if errors.Is(err, exchange.ErrSymbolNotListed) {
			p.markUnsupported(intent.Market)
			log.Warn("symbol not listed on exchange")
			return nil, fmt.Errorf("%s: %w", intent.Market, ErrUnsupportedMarket)
		}
		log.WithError(err).Warn("symbol metadata fetch failed")
		return nil, &FetchError{Op: "symbol metadata", Market: intent.Market, Err: err}
	}

	price, err := p.client.MarkPrice(ctx, symbol)
	if err != nil {
		log.WithError(err).Warn("mark price fetch failed")
		return nil, &FetchError{Op: "mark price", Market: intent.Market, Err: err}
	}

	side := sizing.SideFor(intent.IsLong, intent.IsClose)
	collateral := intent.Size.Div(decimal.NewFromInt(int64(p.leverage)))
	quantity := sizing.ComputeQuantity(collateral, price, p.leverage, meta.QuantityPrecision)

	if quantity.LessThanOrEqual(decimal.Zero) {
		logger.IncrementOrderRejected()
		return nil, &SizingError{Market: intent.Market, Symbol: symbol, Reason: "collateral rejected"}
	}

	if quantity.LessThan(meta.MinQty) {
		logger.IncrementOrderRejected()
		log.WithFields(logger.Fields{
			"quantity": quantity.String(),
			"min_qty":  meta.MinQty.String(),
		}).Warn("quantity below exchange minimum")
		return nil, &SizingError{Market: intent.Market, Symbol: symbol,
			Reason: fmt.Sprintf("quantity %s below minimum %s", quantity, meta.MinQty)}
	}

	if notional := quantity.Mul(price); notional.LessThan(meta.MinNotional) {
		logger.IncrementOrderRejected()
		log.WithFields(logger.Fields{
			"notional":     notional.String(),
			"min_notional": meta.MinNotional.String(),
		}).Warn("notional below exchange minimum")
		return nil, &SizingError{Market: intent.Market, Symbol: symbol,
			Reason: fmt.Sprintf("notional %s below minimum %s", notional, meta.MinNotional)}
	}

	if op, err := p.reconcileSymbolConfig(ctx, symbol, log); err != nil {
		return nil, &FetchError{Op: op, Market: intent.Market, Err: err}
	}

	logger.IncrementOrderPrepared()
	log.WithFields(logger.Fields{
		"side":     string(side),
		"quantity": quantity.String(),
	}).Info("order prepared")
	logger.LogPerformanceEntry(log, "preparer", "prepare", time.Since(start), logger.Fields{"symbol": symbol})

	return &models.OrderDescriptor{Side: side, Symbol: symbol, Quantity: quantity}, nil
}

// reconcileSymbolConfig fetches the account's current leverage/margin mode
// for the symbol and corrects whichever drifted from the configured
// defaults. On failure the first return value names the operation that
// failed. Two concurrent preparations for the same symbol may both issue
// corrections; the writes are idempotent on the exchange side.
func (p *Preparer) reconcileSymbolConfig(ctx context.Context, symbol string, log *logger.Entry) (string, error) {
	current, err := p.client.SymbolConfig(ctx, symbol)
	if err != nil {
		log.WithError(err).Warn("symbol config fetch failed")
		return "symbol config", err
	}

	if current.Leverage != p.leverage {
		if err := p.client.SetLeverage(ctx, symbol, p.leverage); err != nil {
			log.WithError(err).Warn("leverage correction failed")
			return "set leverage", err
		}
		p.recordConfigured(symbol)
		log.WithFields(logger.Fields{
			"from": current.Leverage,
			"to":   p.leverage,
		}).Info("leverage corrected")
	}

	if current.MarginType != p.marginType {
		if err := p.client.SetMarginType(ctx, symbol, p.marginType); err != nil {
			log.WithError(err).Warn("margin type correction failed")
			return "set margin type", err
		}
		p.recordConfigured(symbol)
		log.WithFields(logger.Fields{
			"from": string(current.MarginType),
			"to":   string(p.marginType),
		}).Info("margin type corrected")
	}

	return "", nil
}

// Submit sends a prepared order to the exchange and appends the result to
// the audit trail. Submission failures are the one pipeline error that
// propagates to the caller.
func (p *Preparer) Submit(ctx context.Context, desc *models.OrderDescriptor, reduceOnly bool) (*models.OrderReport, error) {
	log := p.log.WithComponent("preparer").WithFields(logger.Fields{"symbol": desc.Symbol})

	acct, err := p.client.AccountInfo(ctx)
	if err != nil {
		log.WithError(err).Warn("account info fetch failed")
		return nil, &FetchError{Op: "account info", Market: desc.Symbol, Err: err}
	}
	if !acct.CanTrade {
		log.Error("account cannot trade")
		return nil, ErrAccountNotTradable
	}

	report, err := p.client.SubmitOrder(ctx, desc, reduceOnly)
	if err != nil {
		log.WithError(err).Error("order submission failed")
		return nil, err
	}

	if p.auditor != nil {
		if err := p.auditor.Record(*report); err != nil {
			log.WithError(err).Warn("failed to record order in audit trail")
		}
	}

	return report, nil
}

// ResetLoop clears the unsupported-market set on the configured interval
// until the context is cancelled. Run it in its own goroutine.
func (p *Preparer) ResetLoop(ctx context.Context) {
	log := p.log.WithComponent("preparer").WithFields(logger.Fields{"worker": "unsupported_reset"})
	interval := p.config.Trading.ResetInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithFields(logger.Fields{"interval": interval.String()}).Info("unsupported-market reset loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info("reset loop stopped")
			return
		case <-ticker.C:
			n := p.ResetUnsupported()
			log.WithFields(logger.Fields{"cleared": n}).Info("unsupported-market set cleared")
		}
	}
}

// ResetUnsupported clears the unsupported-market set and returns how many
// entries were dropped.
func (p *Preparer) ResetUnsupported() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.unsupported)
	p.unsupported = make(map[string]struct{})
	return n
}

// Unsupported reports whether the market is currently blacklisted.
func (p *Preparer) Unsupported(market string) bool {
	return p.isUnsupported(market)
}

// Configured reports whether this process has corrected the symbol's
// leverage or margin mode.
func (p *Preparer) Configured(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.configured[symbol]
	return ok
}

func (p *Preparer) isUnsupported(market string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.unsupported[market]
	return ok
}

func (p *Preparer) markUnsupported(market string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unsupported[market] = struct{}{}
}

func (p *Preparer) recordConfigured(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configured[symbol] = struct{}{}
}
