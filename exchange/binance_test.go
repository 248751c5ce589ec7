package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	appconfig "tradelink/config"
	"tradelink/models"
)

func testConfig(baseURL string) *appconfig.Config {
	return &appconfig.Config{
		Exchange: appconfig.ExchangeConfig{
			Name:           "binance",
			BaseURL:        baseURL,
			APIKey:         "test-key",
			APISecret:      "test-secret",
			RequestTimeout: 2 * time.Second,
			RecvWindow:     5000,
			RateLimit:      appconfig.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 100},
			ConnectionPool: appconfig.ConnectionPoolConfig{
				MaxIdleConns:    1,
				MaxConnsPerHost: 1,
				IdleConnTimeout: time.Second,
			},
		},
	}
}

func newTestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if body, ok := routes[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
}

const exchangeInfoBody = `{
	"timezone": "UTC",
	"serverTime": 1700000000000,
	"symbols": [
		{
			"symbol": "BTCUSDT",
			"status": "TRADING",
			"quantityPrecision": 3,
			"pricePrecision": 2,
			"filters": [
				{"filterType": "LOT_SIZE", "minQty": "0.001", "maxQty": "1000", "stepSize": "0.001"},
				{"filterType": "MIN_NOTIONAL", "notional": "100"}
			]
		},
		{
			"symbol": "ETHUSDT",
			"status": "TRADING",
			"quantityPrecision": 2,
			"pricePrecision": 2,
			"filters": []
		}
	]
}`

func TestSymbolMetadata(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/fapi/v1/exchangeInfo": exchangeInfoBody,
	})
	defer srv.Close()

	b := NewBinance(testConfig(srv.URL))
	meta, err := b.SymbolMetadata(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("SymbolMetadata: %v", err)
	}
	if meta.QuantityPrecision != 3 {
		t.Errorf("precision = %d want 3", meta.QuantityPrecision)
	}
	if !meta.MinQty.Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("minQty = %s want 0.001", meta.MinQty)
	}
	if !meta.MinNotional.Equal(decimal.RequireFromString("100")) {
		t.Errorf("minNotional = %s want 100", meta.MinNotional)
	}
}

func TestSymbolMetadataPermissiveDefaults(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/fapi/v1/exchangeInfo": exchangeInfoBody,
	})
	defer srv.Close()

	b := NewBinance(testConfig(srv.URL))
	meta, err := b.SymbolMetadata(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("SymbolMetadata: %v", err)
	}
	if !meta.MinQty.IsZero() || !meta.MinNotional.IsZero() {
		t.Errorf("absent filters should default to zero, got minQty=%s minNotional=%s",
			meta.MinQty, meta.MinNotional)
	}
}

func TestSymbolMetadataNotListed(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/fapi/v1/exchangeInfo": exchangeInfoBody,
	})
	defer srv.Close()

	b := NewBinance(testConfig(srv.URL))
	_, err := b.SymbolMetadata(context.Background(), "FOOUSDT")
	if !errors.Is(err, ErrSymbolNotListed) {
		t.Fatalf("expected ErrSymbolNotListed, got %v", err)
	}
}

func TestMarkPrice(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/fapi/v1/premiumIndex": `{"symbol":"BTCUSDT","markPrice":"43210.50000000","indexPrice":"43211.1","time":1700000000000}`,
	})
	defer srv.Close()

	b := NewBinance(testConfig(srv.URL))
	price, err := b.MarkPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("MarkPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("43210.5")) {
		t.Errorf("mark price = %s want 43210.5", price)
	}
}

func TestSymbolConfig(t *testing.T) {
	riskBody := `[{"symbol":"BTCUSDT","positionAmt":"0","entryPrice":"0.0","markPrice":"43000","unRealizedProfit":"0","leverage":"7","marginType":"cross"}]`
	srv := newTestServer(t, map[string]string{
		"/fapi/v2/positionRisk": riskBody,
		"/fapi/v3/positionRisk": riskBody,
	})
	defer srv.Close()

	b := NewBinance(testConfig(srv.URL))
	cfg, err := b.SymbolConfig(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("SymbolConfig: %v", err)
	}
	if cfg.Leverage != 7 {
		t.Errorf("leverage = %d want 7", cfg.Leverage)
	}
	if cfg.MarginType != models.MarginTypeCrossed {
		t.Errorf("margin type = %s want CROSSED", cfg.MarginType)
	}
}

func TestSubmitOrder(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/fapi/v1/order": `{"orderId":12345,"symbol":"BTCUSDT","status":"NEW","side":"BUY","executedQty":"0","avgPrice":"0.0"}`,
	})
	defer srv.Close()

	b := NewBinance(testConfig(srv.URL))
	desc := &models.OrderDescriptor{
		Side:     models.SideBuy,
		Symbol:   "BTCUSDT",
		Quantity: decimal.RequireFromString("0.033"),
	}
	report, err := b.SubmitOrder(context.Background(), desc, false)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if report.OrderID != 12345 {
		t.Errorf("order id = %d want 12345", report.OrderID)
	}
	if report.ClientOrderID == "" || report.ID == "" {
		t.Error("report ids must be populated")
	}
	if report.Quantity != "0.033" {
		t.Errorf("quantity = %s want 0.033", report.Quantity)
	}
}

func TestSubmitOrderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2019,"msg":"Margin is insufficient."}`))
	}))
	defer srv.Close()

	b := NewBinance(testConfig(srv.URL))
	desc := &models.OrderDescriptor{
		Side:     models.SideSell,
		Symbol:   "BTCUSDT",
		Quantity: decimal.RequireFromString("1"),
	}
	if _, err := b.SubmitOrder(context.Background(), desc, true); err == nil {
		t.Fatal("expected submission error to propagate")
	}
}

func TestPositionsSkipsFlat(t *testing.T) {
	riskBody := `[
		{"symbol":"BTCUSDT","positionAmt":"0","entryPrice":"0","unRealizedProfit":"0","leverage":"20","marginType":"isolated"},
		{"symbol":"ETHUSDT","positionAmt":"-1.5","entryPrice":"2000","unRealizedProfit":"12.3","leverage":"10","marginType":"isolated"}
	]`
	srv := newTestServer(t, map[string]string{
		"/fapi/v2/positionRisk": riskBody,
		"/fapi/v3/positionRisk": riskBody,
	})
	defer srv.Close()

	b := NewBinance(testConfig(srv.URL))
	positions, err := b.Positions(context.Background(), "")
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("positions = %d want 1", len(positions))
	}
	if positions[0].Symbol != "ETHUSDT" || positions[0].Leverage != 10 {
		t.Errorf("unexpected position: %+v", positions[0])
	}
}
