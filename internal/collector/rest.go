package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"StockPilot/internal/model"
)

// RESTFetcher implements Fetcher against a generic bar/quote REST service.
// Records are decoded loosely: field names match case-insensitively and
// numbers may arrive as JSON numbers or strings.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
	Logger  zerolog.Logger
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration, ratePerSec float64, logger zerolog.Logger) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
		Limiter: newLimiter(ratePerSec),
		Logger:  logger,
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// errNotFound marks a 404 from the service.
type errNotFound struct{ endpoint string }

func (e errNotFound) Error() string { return "rest: not found: " + e.endpoint }

func (f *RESTFetcher) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := f.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rest rate limit wait: %w", err)
	}
	endpoint := fmt.Sprintf("%s%s?%s", f.BaseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}

	f.Logger.Debug().Str("url", endpoint).Msg("rest request")
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("rest fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound{endpoint: path}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rest fetch %s: status %d, body: %s", path, resp.StatusCode, truncate(body, 200))
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("rest decode %s: %w", path, err)
	}
	return nil
}

func barFromRecord(rec map[string]interface{}) (model.Bar, bool) {
	raw, ok := field(rec, "date", "timestamp", "time", "t")
	if !ok {
		return model.Bar{}, false
	}
	ts, ok := toTime(raw)
	if !ok {
		return model.Bar{}, false
	}
	num := func(names ...string) interface{} {
		v, _ := field(rec, names...)
		return v
	}
	return NormalizeBar(model.Bar{
		Date:   model.Date(ts),
		Open:   toFloat(num("open", "o")),
		High:   toFloat(num("high", "h")),
		Low:    toFloat(num("low", "l")),
		Close:  toFloat(num("close", "c", "price")),
		Volume: toInt(num("volume", "v", "vol")),
	}), true
}

// FetchDailySeries calls GET /api/v1/bars/daily?symbol=&start=&end= where end is exclusive.
func (f *RESTFetcher) FetchDailySeries(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("start", model.FormatDate(start))
	params.Set("end", model.FormatDate(end))

	var records []map[string]interface{}
	if err := f.get(ctx, "/api/v1/bars/daily", params, &records); err != nil {
		if _, ok := err.(errNotFound); ok {
			return nil, nil
		}
		return nil, err
	}

	bars := make([]model.Bar, 0, len(records))
	for _, rec := range records {
		b, ok := barFromRecord(rec)
		if !ok {
			f.Logger.Warn().Str("symbol", symbol).Msg("skipping bar without a usable date")
			continue
		}
		if b.Date.Before(model.Date(start)) || !b.Date.Before(model.Date(end)) {
			continue
		}
		bars = append(bars, b)
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// FetchLiveQuote calls GET /api/v1/quote?symbol=.
func (f *RESTFetcher) FetchLiveQuote(ctx context.Context, symbol string) (*model.LiveQuote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var rec map[string]interface{}
	if err := f.get(ctx, "/api/v1/quote", params, &rec); err != nil {
		if _, ok := err.(errNotFound); ok {
			return nil, ErrNoQuote
		}
		return nil, err
	}
	num := func(names ...string) interface{} {
		v, _ := field(rec, names...)
		return v
	}
	q := model.LiveQuote{
		Open:   toFloat(num("open", "o")),
		High:   toFloat(num("high", "dayHigh", "h")),
		Low:    toFloat(num("low", "dayLow", "l")),
		Close:  toFloat(num("close", "price", "last", "c")),
		Volume: toInt(num("volume", "v", "vol")),
	}
	if q.Open == 0 && q.Close == 0 {
		return nil, ErrNoQuote
	}
	q = NormalizeQuote(q)
	return &q, nil
}

// FetchNews calls GET /api/v1/news?symbol=&limit=.
func (f *RESTFetcher) FetchNews(ctx context.Context, symbol string, limit int) ([]model.Headline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	var records []map[string]interface{}
	if err := f.get(ctx, "/api/v1/news", params, &records); err != nil {
		if _, ok := err.(errNotFound); ok {
			return nil, nil
		}
		return nil, err
	}
	out := make([]model.Headline, 0, len(records))
	for _, rec := range records {
		raw, _ := field(rec, "published_at", "publishedAt", "time", "date")
		ts, ok := toTime(raw)
		if !ok {
			continue
		}
		str := func(names ...string) string {
			v, _ := field(rec, names...)
			s, _ := v.(string)
			return strings.TrimSpace(s)
		}
		out = append(out, model.Headline{
			PublishedAt: ts,
			Title:       str("title", "headline", "text"),
			URL:         str("url", "link"),
			Source:      str("source", "publisher"),
		})
	}
	return out, nil
}
