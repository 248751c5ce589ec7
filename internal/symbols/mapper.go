package symbols

import "strings"

// table maps internal market identifiers to Binance USDT-M futures symbols.
// Markets absent from this table are not tradable through the connector.
var table = map[string]string{
	"BTC-USDT":   "BTCUSDT",
	"ETH-USDT":   "ETHUSDT",
	"BNB-USDT":   "BNBUSDT",
	"SOL-USDT":   "SOLUSDT",
	"XRP-USDT":   "XRPUSDT",
	"ADA-USDT":   "ADAUSDT",
	"DOGE-USDT":  "DOGEUSDT",
	"AVAX-USDT":  "AVAXUSDT",
	"DOT-USDT":   "DOTUSDT",
	"LINK-USDT":  "LINKUSDT",
	"LTC-USDT":   "LTCUSDT",
	"MATIC-USDT": "MATICUSDT",
	"NEAR-USDT":  "NEARUSDT",
	"ATOM-USDT":  "ATOMUSDT",
	"ARB-USDT":   "ARBUSDT",
	"OP-USDT":    "OPUSDT",
	"SUI-USDT":   "SUIUSDT",
	"APT-USDT":   "APTUSDT",
	"PEPE-USDT":  "1000PEPEUSDT",
	"SHIB-USDT":  "1000SHIBUSDT",
	"BONK-USDT":  "1000BONKUSDT",
}

// Resolve converts an internal market identifier to its Binance futures
// symbol. Identifiers are matched case-insensitively and "BTC-USDT",
// "BTC/USDT" and "BTC_USDT" separators are all accepted. The second return
// value reports whether the market is known.
func Resolve(market string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(market))
	key = strings.ReplaceAll(key, "/", "-")
	key = strings.ReplaceAll(key, "_", "-")
	sym, ok := table[key]
	return sym, ok
}

// Known reports whether the market maps to a tradable symbol.
func Known(market string) bool {
	_, ok := Resolve(market)
	return ok
}
