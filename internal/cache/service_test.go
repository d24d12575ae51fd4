package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPilot/internal/collector"
	"StockPilot/internal/logging"
	"StockPilot/internal/model"
	"StockPilot/internal/store"
)

// Wednesday 2024-03-13; New York is on EDT (UTC-4).
var (
	usPre    = time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	usOpen   = time.Date(2024, 3, 13, 14, 0, 0, 0, time.UTC)
	usClosed = time.Date(2024, 3, 13, 21, 0, 0, 0, time.UTC)
	saturday = time.Date(2024, 3, 16, 15, 0, 0, 0, time.UTC)
)

func d(day int) time.Time {
	return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
}

func bar(day int, close float64) model.Bar {
	return model.Bar{Date: d(day), Open: close - 1, High: close + 1, Low: close - 2, Close: close, Volume: 1000}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(dur time.Duration) { c.t = c.t.Add(dur) }

func newTestService(t *testing.T, f collector.Fetcher, opts ...Option) (*Service, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st, f, logging.Nop(), opts...), st
}

func TestGetPriceData_RequestsInclusiveEnd(t *testing.T) {
	f := &collector.MockFetcher{DailyData: []model.Bar{bar(4, 10), bar(5, 11), bar(8, 12), bar(11, 13)}}
	svc, _ := newTestService(t, f)

	rows, err := svc.GetPriceData(context.Background(), " 0700 ", model.MarketHK, d(4), d(8))
	require.NoError(t, err)

	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "0700.HK", calls[0].Symbol)
	assert.Equal(t, d(4), calls[0].Start)
	assert.Equal(t, d(9), calls[0].End)

	require.Len(t, rows, 3)
	for i, want := range []int{4, 5, 8} {
		assert.Equal(t, d(want), rows[i].Date)
		assert.Equal(t, "0700", rows[i].Symbol)
		assert.Equal(t, model.MarketHK, rows[i].Market)
	}
	assert.Equal(t, 12.0, rows[2].Close)
}

func TestGetPriceData_DuplicateDatesLastWins(t *testing.T) {
	f := &collector.MockFetcher{DailyData: []model.Bar{bar(4, 10), bar(4, 20)}}
	svc, _ := newTestService(t, f)

	rows, err := svc.GetPriceData(context.Background(), "AAPL", model.MarketUS, d(4), d(4))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 20.0, rows[0].Close)
}

func TestGetPriceData_OverwritesStaleRows(t *testing.T) {
	f := &collector.MockFetcher{DailyData: []model.Bar{bar(4, 30)}}
	svc, st := newTestService(t, f)
	ctx := context.Background()
	require.NoError(t, st.UpsertPrices(ctx, []model.PriceRow{
		model.RowFromBar("AAPL", model.MarketUS, bar(4, 10)),
		model.RowFromBar("AAPL", model.MarketUS, bar(1, 5)),
	}))

	rows, err := svc.GetPriceData(ctx, "aapl", model.MarketUS, d(1), d(5))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 5.0, rows[0].Close)
	assert.Equal(t, 30.0, rows[1].Close)
}

func TestGetPriceData_PropagatesRemoteError(t *testing.T) {
	boom := errors.New("connection reset")
	f := &collector.MockFetcher{DailyErr: boom}
	svc, _ := newTestService(t, f)

	_, err := svc.GetPriceData(context.Background(), "AAPL", model.MarketUS, d(1), d(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrRemote)
	assert.Equal(t, "fetch remote series: connection reset", err.Error())
}

func TestGetPriceData_EmptyIsNotAnError(t *testing.T) {
	svc, _ := newTestService(t, &collector.MockFetcher{})

	rows, err := svc.GetPriceData(context.Background(), "NOPE", model.MarketUS, d(1), d(5))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetPriceData_AlwaysFetchesByDefault(t *testing.T) {
	f := &collector.MockFetcher{DailyData: []model.Bar{bar(4, 10)}}
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.GetPriceData(ctx, "AAPL", model.MarketUS, d(4), d(4))
		require.NoError(t, err)
	}
	assert.Len(t, f.Calls(), 3)
}

func TestGetPriceData_SkipIfFresh(t *testing.T) {
	clock := &fakeClock{t: usOpen}
	f := &collector.MockFetcher{DailyData: []model.Bar{bar(11, 9), bar(12, 10), bar(13, 11)}}
	svc, _ := newTestService(t, f, WithFreshFor(time.Hour), WithClock(clock.Now))
	ctx := context.Background()

	_, err := svc.GetPriceData(ctx, "AAPL", model.MarketUS, d(11), d(13))
	require.NoError(t, err)
	rows, err := svc.GetPriceData(ctx, "AAPL", model.MarketUS, d(12), d(13))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, f.Calls(), 1, "covered window within fresh_for is served from the store")

	// A wider window is not covered by the mark.
	_, err = svc.GetPriceData(ctx, "AAPL", model.MarketUS, d(10), d(13))
	require.NoError(t, err)
	assert.Len(t, f.Calls(), 2)

	// Today's window goes stale once fresh_for elapses.
	clock.Advance(2 * time.Hour)
	_, err = svc.GetPriceData(ctx, "AAPL", model.MarketUS, d(10), d(13))
	require.NoError(t, err)
	assert.Len(t, f.Calls(), 3)
}

func TestGetPriceData_FinalWindowStaysFresh(t *testing.T) {
	clock := &fakeClock{t: usOpen}
	f := &collector.MockFetcher{DailyData: []model.Bar{bar(11, 9), bar(12, 10)}}
	svc, _ := newTestService(t, f, WithFreshFor(time.Minute), WithClock(clock.Now))
	ctx := context.Background()

	// Fetched on the 13th for a window ending on the 12th: final.
	_, err := svc.GetPriceData(ctx, "AAPL", model.MarketUS, d(11), d(12))
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	rows, err := svc.GetPriceData(ctx, "AAPL", model.MarketUS, d(11), d(12))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, f.Calls(), 1)
}

func TestGetNews(t *testing.T) {
	at := func(m int) time.Time { return time.Date(2024, 3, 13, 12, m, 0, 0, time.UTC) }
	f := &collector.MockFetcher{News: []model.Headline{
		{PublishedAt: at(1), Title: "Earnings beat", URL: "https://example.com/1", Source: "Wire"},
		{PublishedAt: at(2), Title: "   "},
		{PublishedAt: at(3), Title: "Guidance raised"},
	}}
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	news, err := svc.GetNews(ctx, "aapl", model.MarketUS)
	require.NoError(t, err)
	require.Len(t, news, 2)
	assert.Equal(t, "Guidance raised", news[0].Text)
	assert.Equal(t, "Earnings beat", news[1].Text)
	assert.Equal(t, "Wire", news[1].Source)

	// Provider failure still returns the stored set.
	f.NewsErr = errors.New("timeout")
	news, err = svc.GetNews(ctx, "AAPL", model.MarketUS)
	require.NoError(t, err)
	assert.Len(t, news, 2)
}
