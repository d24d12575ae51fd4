// Package calculator derives statistics from a window of daily price rows.
package calculator

import (
	"errors"
	"math"

	"StockPilot/internal/model"
)

// Summary describes a window of daily rows ordered by ascending date.
type Summary struct {
	Count          int     `json:"count"`
	MeanClose      float64 `json:"mean_close"`
	MeanVolume     float64 `json:"vol_mean"`
	ReturnPct      float64 `json:"return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	VolatilityPct  float64 `json:"volatility_pct"`

	High          float64  `json:"high"`
	Low           float64  `json:"low"`
	RangePosition float64  `json:"range_position"`
	MA20          *float64 `json:"ma20,omitempty"`
	RSI14         float64  `json:"rsi14"`
}

// Summarize computes the window statistics. Volatility is the sample standard
// deviation of daily close-to-close changes, in percent; it is 0 when there
// are fewer than two changes.
func Summarize(rows []model.PriceRow) (Summary, error) {
	if len(rows) == 0 {
		return Summary{}, errors.New("no rows to summarize")
	}

	var s Summary
	s.Count = len(rows)

	var sumClose, sumVol float64
	peak := math.Inf(-1)
	for _, r := range rows {
		sumClose += r.Close
		sumVol += float64(r.Volume)
		if r.Close > peak {
			peak = r.Close
		}
		if peak > 0 {
			if dd := (r.Close/peak - 1) * 100; dd < s.MaxDrawdownPct {
				s.MaxDrawdownPct = dd
			}
		}
	}
	s.MeanClose = sumClose / float64(s.Count)
	s.MeanVolume = sumVol / float64(s.Count)

	first, last := rows[0].Close, rows[len(rows)-1].Close
	if first != 0 {
		s.ReturnPct = (last/first - 1) * 100
	}

	s.VolatilityPct = volatility(extractCloses(rows))

	high, low, err := CalculateRange(rows)
	if err != nil {
		return Summary{}, err
	}
	s.High, s.Low = high, low
	if s.RangePosition, err = CalculateRangePosition(last, high, low); err != nil {
		return Summary{}, err
	}
	if ma, err := CalculateMA20(rows); err == nil {
		s.MA20 = &ma
	}
	if s.RSI14, err = CalculateRSI(rows, 14); err != nil {
		return Summary{}, err
	}
	return s, nil
}

func volatility(closes []float64) float64 {
	var changes []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		changes = append(changes, closes[i]/closes[i-1]-1)
	}
	if len(changes) < 2 {
		return 0
	}
	mean := 0.0
	for _, c := range changes {
		mean += c
	}
	mean /= float64(len(changes))
	ss := 0.0
	for _, c := range changes {
		ss += (c - mean) * (c - mean)
	}
	return math.Sqrt(ss/float64(len(changes)-1)) * 100
}
