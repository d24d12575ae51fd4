package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPilot/internal/logging"
	"StockPilot/internal/model"
)

func newRESTTestServer(t *testing.T, handler http.HandlerFunc) *RESTFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRESTFetcher(srv.URL+"/", "secret", "", 5*time.Second, 0, logging.Nop())
}

func TestRESTFetchDailySeries_MixedCaseFields(t *testing.T) {
	f := newRESTTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/bars/daily", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-03-11", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-03-14", r.URL.Query().Get("end"))
		w.Write([]byte(`[
			{"Date":"2024-03-13","Open":"11","High":12.5,"Low":9.5,"Close":12,"Volume":200},
			{"date":"2024-03-12","OPEN":10,"HIGH":12,"LOW":9,"CLOSE":11,"VOLUME":100},
			{"timestamp":1710115200,"open":9},
			{"open":1}
		]`))
	})
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	bars, err := f.FetchDailySeries(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, "2024-03-11", model.FormatDate(bars[0].Date))
	assert.Equal(t, model.Bar{Date: bars[0].Date, Open: 9, High: 9, Low: 9, Close: 9}, bars[0])
	assert.Equal(t, model.Bar{Date: bars[1].Date, Open: 10, High: 12, Low: 9, Close: 11, Volume: 100}, bars[1])
	assert.Equal(t, model.Bar{Date: bars[2].Date, Open: 11, High: 12.5, Low: 9.5, Close: 12, Volume: 200}, bars[2])
}

func TestRESTFetchDailySeries_MillisecondTimestamps(t *testing.T) {
	f := newRESTTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"t":1710201600000,"o":10,"h":11,"l":9,"c":10.5,"v":300},
			{"t":1710288000000,"o":10.5,"h":12,"l":10,"c":11.5,"v":400}
		]`))
	})
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	bars, err := f.FetchDailySeries(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-03-12", model.FormatDate(bars[0].Date))
	assert.Equal(t, "2024-03-13", model.FormatDate(bars[1].Date))
	assert.Equal(t, 11.5, bars[1].Close)
	assert.Equal(t, int64(400), bars[1].Volume)
}

func TestRESTFetchDailySeries_NotFoundIsEmpty(t *testing.T) {
	f := newRESTTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	bars, err := f.FetchDailySeries(context.Background(), "NOPE", time.Now().AddDate(0, 0, -3), time.Now())
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestRESTFetchDailySeries_ServerError(t *testing.T) {
	f := newRESTTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	_, err := f.FetchDailySeries(context.Background(), "AAPL", time.Now().AddDate(0, 0, -3), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestRESTFetchLiveQuote(t *testing.T) {
	f := newRESTTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Open":10,"DayHigh":11,"DayLow":9.5,"Price":"13","Volume":500}`))
	})
	q, err := f.FetchLiveQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, model.LiveQuote{Open: 10, High: 11, Low: 9.5, Close: 13, Volume: 500}, *q)
}

func TestRESTFetchLiveQuote_Missing(t *testing.T) {
	f := newRESTTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := f.FetchLiveQuote(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, ErrNoQuote))
}

func TestRESTFetchNews(t *testing.T) {
	f := newRESTTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			{"Headline":"Beat estimates","PublishedAt":"2024-03-13T12:00:00Z","Link":"https://n/1"},
			{"title":"no time"}
		]`))
	})
	news, err := f.FetchNews(context.Background(), "AAPL", 3)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "Beat estimates", news[0].Title)
	assert.Equal(t, "https://n/1", news[0].URL)
}
