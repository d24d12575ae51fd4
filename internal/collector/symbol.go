package collector

import (
	"strings"

	"StockPilot/internal/model"
)

// MapSymbol derives the provider-facing ticker from a caller symbol and market.
// HK tickers get ".HK"; CN tickers get ".SS" (Shanghai, codes starting with 6)
// or ".SZ" (Shenzhen). US tickers pass through.
func MapSymbol(symbol string, market model.Market) string {
	switch market {
	case model.MarketHK:
		if !strings.HasSuffix(symbol, ".HK") {
			return symbol + ".HK"
		}
	case model.MarketCN:
		if strings.HasPrefix(symbol, "6") {
			return symbol + ".SS"
		}
		return symbol + ".SZ"
	}
	return symbol
}
