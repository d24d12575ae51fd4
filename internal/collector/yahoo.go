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
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"StockPilot/internal/model"
)

// DefaultYahooBaseURL is the public Yahoo Finance query host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance public chart and search APIs.
type YahooFetcher struct {
	BaseURL string
	Client  *http.Client
	Limiter *rate.Limiter
	Logger  zerolog.Logger
}

// NewYahooFetcher creates a Yahoo fetcher with optional proxy support.
// ratePerSec <= 0 disables rate limiting.
func NewYahooFetcher(proxyURL string, timeout time.Duration, ratePerSec float64, logger zerolog.Logger) *YahooFetcher {
	return &YahooFetcher{
		BaseURL: DefaultYahooBaseURL,
		Client:  newHTTPClient(proxyURL, timeout),
		Limiter: newLimiter(ratePerSec),
		Logger:  logger,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset            int64   `json:"gmtoffset"`
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketVolume  float64 `json:"regularMarketVolume"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []interface{}, i int) interface{} {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func (f *YahooFetcher) get(ctx context.Context, u string, out interface{}) error {
	if err := f.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("yahoo rate limit wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	f.Logger.Debug().Str("url", u).Msg("yahoo request")
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("yahoo decode: %w", err)
	}
	return nil
}

// fetchChart returns the bars of a chart request plus the chart meta.
// Bar dates are computed in the exchange's own UTC offset.
func (f *YahooFetcher) fetchChart(ctx context.Context, symbol string, params url.Values) ([]model.Bar, *yahooChart, error) {
	params.Set("interval", "1d")
	params.Set("includePrePost", "false")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(symbol), params.Encode())

	var chart yahooChart
	if err := f.get(ctx, u, &chart); err != nil {
		return nil, nil, err
	}
	if chart.Chart.Error != nil {
		return nil, nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, &chart, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, &chart, nil
	}
	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o := toFloat(at(quote.Open, i))
		h := toFloat(at(quote.High, i))
		l := toFloat(at(quote.Low, i))
		c := toFloat(at(quote.Close, i))
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		bars = append(bars, NormalizeBar(model.Bar{
			Date:   model.Date(local),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: toInt(at(quote.Volume, i)),
		}))
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, &chart, nil
}

// FetchDailySeries requests [start, end) using the chart API's exclusive period2.
func (f *YahooFetcher) FetchDailySeries(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	bars, _, err := f.fetchChart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	// Yahoo sometimes appends the live bar past period2; honour the exclusive end.
	out := bars[:0]
	for _, b := range bars {
		if !b.Date.Before(model.Date(start)) && b.Date.Before(model.Date(end)) {
			out = append(out, b)
		}
	}
	return out, nil
}

// FetchLiveQuote combines today's daily bar with the regular-market fields of the chart meta.
func (f *YahooFetcher) FetchLiveQuote(ctx context.Context, symbol string) (*model.LiveQuote, error) {
	params := url.Values{}
	params.Set("range", "1d")
	bars, chart, err := f.fetchChart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}

	var q model.LiveQuote
	if len(bars) > 0 {
		last := bars[len(bars)-1]
		q = model.LiveQuote{Open: last.Open, High: last.High, Low: last.Low, Close: last.Close, Volume: last.Volume}
	}
	if chart != nil && len(chart.Chart.Result) > 0 {
		meta := chart.Chart.Result[0].Meta
		if meta.RegularMarketPrice > 0 {
			q.Close = meta.RegularMarketPrice
		}
		if meta.RegularMarketDayHigh > 0 {
			q.High = meta.RegularMarketDayHigh
		}
		if meta.RegularMarketDayLow > 0 {
			q.Low = meta.RegularMarketDayLow
		}
		if meta.RegularMarketVolume > 0 {
			q.Volume = int64(meta.RegularMarketVolume)
		}
	}
	if q.Close == 0 && q.Open == 0 {
		return nil, ErrNoQuote
	}
	q = NormalizeQuote(q)
	return &q, nil
}

type yahooSearch struct {
	News []struct {
		Title               string `json:"title"`
		Link                string `json:"link"`
		Publisher           string `json:"publisher"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
	} `json:"news"`
}

// FetchNews returns headlines from the search endpoint.
func (f *YahooFetcher) FetchNews(ctx context.Context, symbol string, limit int) ([]model.Headline, error) {
	params := url.Values{}
	params.Set("q", symbol)
	params.Set("quotesCount", "0")
	params.Set("newsCount", strconv.Itoa(limit))
	u := fmt.Sprintf("%s/v1/finance/search?%s", f.BaseURL, params.Encode())

	var res yahooSearch
	if err := f.get(ctx, u, &res); err != nil {
		return nil, err
	}
	out := make([]model.Headline, 0, len(res.News))
	for _, n := range res.News {
		if n.ProviderPublishTime == 0 {
			continue
		}
		out = append(out, model.Headline{
			PublishedAt: time.Unix(n.ProviderPublishTime, 0).UTC(),
			Title:       n.Title,
			URL:         n.Link,
			Source:      n.Publisher,
		})
	}
	return out, nil
}
