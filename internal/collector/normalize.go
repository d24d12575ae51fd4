package collector

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"StockPilot/internal/model"
)

// NormalizeBar fills OHLC fields the provider left out from the ones it did
// send and clamps volume at zero.
func NormalizeBar(b model.Bar) model.Bar {
	switch {
	case b.Close == 0 && b.Open != 0:
		b.Close = b.Open
	case b.Open == 0 && b.Close != 0:
		b.Open = b.Close
	}
	if b.High == 0 {
		b.High = math.Max(b.Open, b.Close)
	}
	if b.Low == 0 {
		b.Low = math.Min(b.Open, b.Close)
	}
	if b.Volume < 0 {
		b.Volume = 0
	}
	return b
}

// NormalizeQuote applies the same fill rules as NormalizeBar to a live quote.
func NormalizeQuote(q model.LiveQuote) model.LiveQuote {
	b := NormalizeBar(model.Bar{Open: q.Open, High: q.High, Low: q.Low, Close: q.Close, Volume: q.Volume})
	return model.LiveQuote{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func toInt(v interface{}) int64 {
	return int64(math.Round(toFloat(v)))
}

// field looks up the first of names in obj, ignoring key case.
func field(obj map[string]interface{}, names ...string) (interface{}, bool) {
	for _, name := range names {
		if v, ok := obj[name]; ok {
			return v, true
		}
	}
	for k, v := range obj {
		for _, name := range names {
			if strings.EqualFold(k, name) {
				return v, true
			}
		}
	}
	return nil, false
}

// msThreshold separates epoch seconds from epoch milliseconds; 1e11 seconds is
// past the year 5000 while 1e11 milliseconds is in 1973.
const msThreshold = 1e11

func fromEpoch(n int64) time.Time {
	if n >= msThreshold {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// toTime accepts unix seconds or milliseconds, YYYY-MM-DD or RFC3339 values.
func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if d, err := model.ParseDate(s); err == nil {
			return d, true
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts, true
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			return fromEpoch(n), true
		}
	case nil:
	default:
		if n := toFloat(t); n > 0 {
			return fromEpoch(int64(n)), true
		}
	}
	return time.Time{}, false
}
