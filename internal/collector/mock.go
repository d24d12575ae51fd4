package collector

import (
	"context"
	"sync"
	"time"

	"StockPilot/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Calls are recorded so tests can assert on the requested windows.
type MockFetcher struct {
	mu sync.Mutex

	Price     float64
	DailyData []model.Bar
	Quote     *model.LiveQuote
	News      []model.Headline

	DailyErr error
	QuoteErr error
	NewsErr  error

	DailyCalls []DailyCall
	QuoteCalls int
}

// DailyCall is one recorded FetchDailySeries request.
type DailyCall struct {
	Symbol     string
	Start, End time.Time
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailySeries(_ context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DailyCalls = append(m.DailyCalls, DailyCall{Symbol: symbol, Start: start, End: end})
	if m.DailyErr != nil {
		return nil, m.DailyErr
	}
	data := m.DailyData
	if data == nil && m.Price > 0 {
		data = generateMockBars(m.Price, start, end)
	}
	out := make([]model.Bar, 0, len(data))
	for _, b := range data {
		if !b.Date.Before(model.Date(start)) && b.Date.Before(model.Date(end)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MockFetcher) FetchLiveQuote(_ context.Context, _ string) (*model.LiveQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuoteCalls++
	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}
	if m.Quote != nil {
		q := *m.Quote
		return &q, nil
	}
	if m.Price > 0 {
		return &model.LiveQuote{Open: m.Price, High: m.Price, Low: m.Price, Close: m.Price}, nil
	}
	return nil, ErrNoQuote
}

func (m *MockFetcher) FetchNews(_ context.Context, _ string, limit int) ([]model.Headline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NewsErr != nil {
		return nil, m.NewsErr
	}
	if len(m.News) > limit {
		return m.News[:limit], nil
	}
	return m.News, nil
}

// Calls returns a copy of the recorded daily series requests.
func (m *MockFetcher) Calls() []DailyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DailyCall(nil), m.DailyCalls...)
}

// generateMockBars emits one weekday bar per day in [start, end).
func generateMockBars(basePrice float64, start, end time.Time) []model.Bar {
	var bars []model.Bar
	i := 0
	for d := model.Date(start); d.Before(model.Date(end)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i%10-5)*0.001)
		bars = append(bars, model.Bar{
			Date:   d,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		})
		i++
	}
	return bars
}
