package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	futures "github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	appconfig "tradelink/config"
	"tradelink/logger"
	"tradelink/models"
)

// ErrSymbolNotListed is returned when the exchange does not list a symbol in
// its trading rules. Callers treat it as a permanent condition.
var ErrSymbolNotListed = errors.New("symbol not listed on exchange")

// Binance wraps the binance-go futures client with a pooled transport, a
// request rate limiter and a fixed recvWindow applied to every signed call.
type Binance struct {
	config  *appconfig.Config
	client  *futures.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewBinance creates a Binance client from configuration. Credentials must
// be present; callers are expected to have validated them at startup.
func NewBinance(cfg *appconfig.Config) *Binance {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Exchange.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Exchange.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Exchange.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Exchange.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Exchange.RequestTimeout,
	}

	client := futures.NewClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	client.HTTPClient = httpClient
	if cfg.Exchange.BaseURL != "" {
		client.SetApiEndpoint(cfg.Exchange.BaseURL)
	}

	burst := cfg.Exchange.RateLimit.BurstSize
	if burst <= 0 {
		burst = cfg.Exchange.RateLimit.RequestsPerSecond
	}

	b := &Binance{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.Exchange.RateLimit.RequestsPerSecond), burst),
		log:     log,
	}

	log.WithComponent("binance_client").WithFields(logger.Fields{
		"max_idle_conns":     cfg.Exchange.ConnectionPool.MaxIdleConns,
		"max_conns_per_host": cfg.Exchange.ConnectionPool.MaxConnsPerHost,
		"timeout":            cfg.Exchange.RequestTimeout,
		"recv_window_ms":     cfg.Exchange.RecvWindow,
	}).Info("binance client initialized")

	return b
}

func (b *Binance) wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (b *Binance) recvWindowOpt() futures.RequestOption {
	return futures.WithRecvWindow(b.config.Exchange.RecvWindow)
}

// SymbolMetadata fetches exchange-wide trading rules and extracts the
// quantity constraints for one symbol. Absent filters default to zero,
// which effectively disables the corresponding check.
func (b *Binance) SymbolMetadata(ctx context.Context, symbol string) (*models.SymbolMetadata, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, b.wrapAPIError("exchange info", symbol, err)
	}

	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Symbol != symbol {
			continue
		}
		meta := &models.SymbolMetadata{
			Symbol:            s.Symbol,
			QuantityPrecision: s.QuantityPrecision,
		}
		if f := s.LotSizeFilter(); f != nil {
			if v, err := decimal.NewFromString(f.MinQuantity); err == nil {
				meta.MinQty = v
			}
		}
		if f := s.MinNotionalFilter(); f != nil {
			if v, err := decimal.NewFromString(f.Notional); err == nil {
				meta.MinNotional = v
			}
		}
		return meta, nil
	}

	return nil, fmt.Errorf("%s: %w", symbol, ErrSymbolNotListed)
}

// MarkPrice returns the current mark price for the symbol. The mark price
// is the margin/liquidation reference, not the last trade.
func (b *Binance) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := b.wait(ctx); err != nil {
		return decimal.Zero, err
	}

	prices, err := b.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, b.wrapAPIError("premium index", symbol, err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("premium index for %s: empty response", symbol)
	}

	price, err := decimal.NewFromString(prices[0].MarkPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse mark price %q for %s: %w", prices[0].MarkPrice, symbol, err)
	}
	return price, nil
}

// SymbolConfig reads the leverage and margin mode currently applied to the
// symbol from the position-risk endpoint.
func (b *Binance) SymbolConfig(ctx context.Context, symbol string) (*models.SymbolConfig, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	risks, err := b.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx, b.recvWindowOpt())
	if err != nil {
		return nil, b.wrapAPIError("position risk", symbol, err)
	}
	if len(risks) == 0 {
		return nil, fmt.Errorf("position risk for %s: empty response", symbol)
	}

	cfg := &models.SymbolConfig{}
	if _, err := fmt.Sscanf(risks[0].Leverage, "%d", &cfg.Leverage); err != nil {
		return nil, fmt.Errorf("parse leverage %q for %s: %w", risks[0].Leverage, symbol, err)
	}
	cfg.MarginType = parseMarginType(risks[0].MarginType)
	return cfg, nil
}

// SetLeverage changes the symbol's leverage on the account.
func (b *Binance) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := b.wait(ctx); err != nil {
		return err
	}

	if _, err := b.client.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx, b.recvWindowOpt()); err != nil {
		return b.wrapAPIError("change leverage", symbol, err)
	}

	b.log.WithComponent("binance_client").WithFields(logger.Fields{
		"symbol":   symbol,
		"leverage": leverage,
	}).Info("leverage updated")
	return nil
}

// SetMarginType changes the symbol's margin mode on the account.
func (b *Binance) SetMarginType(ctx context.Context, symbol string, mt models.MarginType) error {
	if err := b.wait(ctx); err != nil {
		return err
	}

	if err := b.client.NewChangeMarginTypeService().
		Symbol(symbol).
		MarginType(futures.MarginType(mt)).
		Do(ctx, b.recvWindowOpt()); err != nil {
		return b.wrapAPIError("change margin type", symbol, err)
	}

	b.log.WithComponent("binance_client").WithFields(logger.Fields{
		"symbol":      symbol,
		"margin_type": string(mt),
	}).Info("margin type updated")
	return nil
}

// SubmitOrder sends a MARKET order working against the mark price. The
// generated client order id ties the exchange response to the audit trail.
func (b *Binance) SubmitOrder(ctx context.Context, desc *models.OrderDescriptor, reduceOnly bool) (*models.OrderReport, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	clientOrderID := uuid.NewString()
	resp, err := b.client.NewCreateOrderService().
		Symbol(desc.Symbol).
		Side(futures.SideType(desc.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(desc.Quantity.String()).
		ReduceOnly(reduceOnly).
		WorkingType(futures.WorkingTypeMarkPrice).
		NewClientOrderID(clientOrderID).
		Do(ctx, b.recvWindowOpt())
	if err != nil {
		return nil, b.wrapAPIError("create order", desc.Symbol, err)
	}

	report := &models.OrderReport{
		ID:            uuid.NewString(),
		OrderID:       resp.OrderID,
		ClientOrderID: clientOrderID,
		Symbol:        desc.Symbol,
		Side:          string(desc.Side),
		Status:        string(resp.Status),
		Quantity:      desc.Quantity.String(),
		ExecutedQty:   resp.ExecutedQuantity,
		AvgPrice:      resp.AvgPrice,
		ReduceOnly:    reduceOnly,
		Timestamp:     time.Now().UTC(),
	}

	b.log.WithComponent("binance_client").WithFields(logger.Fields{
		"symbol":   desc.Symbol,
		"side":     string(desc.Side),
		"quantity": desc.Quantity.String(),
		"order_id": resp.OrderID,
		"status":   string(resp.Status),
	}).Info("order submitted")
	logger.IncrementOrderSubmitted()

	return report, nil
}

// AccountInfo returns the tradability flag for the futures account.
func (b *Binance) AccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	acct, err := b.client.NewGetAccountService().Do(ctx, b.recvWindowOpt())
	if err != nil {
		return nil, b.wrapAPIError("account info", "", err)
	}
	return &models.AccountInfo{CanTrade: acct.CanTrade}, nil
}

// Positions returns the open positions for a symbol, or all symbols when
// symbol is empty. Flat entries (zero amount) are skipped.
func (b *Binance) Positions(ctx context.Context, symbol string) ([]models.Position, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	svc := b.client.NewGetPositionRiskService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	risks, err := svc.Do(ctx, b.recvWindowOpt())
	if err != nil {
		return nil, b.wrapAPIError("position risk", symbol, err)
	}

	positions := make([]models.Position, 0, len(risks))
	for _, r := range risks {
		amount, err := decimal.NewFromString(r.PositionAmt)
		if err != nil || amount.IsZero() {
			continue
		}
		pos := models.Position{
			Symbol:     r.Symbol,
			Amount:     amount,
			MarginType: parseMarginType(r.MarginType),
		}
		if v, err := decimal.NewFromString(r.EntryPrice); err == nil {
			pos.EntryPrice = v
		}
		if v, err := decimal.NewFromString(r.UnRealizedProfit); err == nil {
			pos.UnrealizedPnL = v
		}
		fmt.Sscanf(r.Leverage, "%d", &pos.Leverage)
		positions = append(positions, pos)
	}
	return positions, nil
}

// wrapAPIError attaches the exchange error code and message when the error
// came from the Binance API, so downstream logs carry the diagnostics.
func (b *Binance) wrapAPIError(op, symbol string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		b.log.WithComponent("binance_client").WithFields(logger.Fields{
			"operation": op,
			"symbol":    symbol,
			"code":      apiErr.Code,
			"message":   apiErr.Message,
		}).Warn("binance api error")
		return fmt.Errorf("%s %s: code=%d msg=%q: %w", op, symbol, apiErr.Code, apiErr.Message, err)
	}
	return fmt.Errorf("%s %s: %w", op, symbol, err)
}

func parseMarginType(v string) models.MarginType {
	if strings.HasPrefix(strings.ToLower(v), "cross") {
		return models.MarginTypeCrossed
	}
	return models.MarginTypeIsolated
}
