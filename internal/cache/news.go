package cache

import (
	"context"
	"fmt"
	"strings"

	"StockPilot/internal/collector"
	"StockPilot/internal/model"
)

// GetNews refreshes the key's headlines from the provider when it can and
// returns the stored set, most recent first. Provider failures only mean the
// stored set is returned as-is.
func (s *Service) GetNews(ctx context.Context, symbol string, market model.Market) ([]model.NewsItem, error) {
	symbol = model.NormalizeSymbol(symbol)

	heads, err := s.fetcher.FetchNews(ctx, collector.MapSymbol(symbol, market), model.MaxNewsPerKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Str("market", string(market)).Msg("fetch news")
	}

	items := make([]model.NewsItem, 0, len(heads))
	for _, h := range heads {
		text := strings.TrimSpace(h.Title)
		if text == "" || h.PublishedAt.IsZero() {
			continue
		}
		items = append(items, model.NewsItem{
			Symbol: symbol, Market: market, PublishedAt: h.PublishedAt,
			Text: text, URL: h.URL, Source: h.Source,
		})
	}
	if len(items) > 0 {
		if err := s.store.AddNewsItems(ctx, symbol, market, items); err != nil {
			return nil, fmt.Errorf("store news: %w", err)
		}
	}

	news, err := s.store.LoadNews(ctx, symbol, market)
	if err != nil {
		return nil, fmt.Errorf("load news: %w", err)
	}
	return news, nil
}
