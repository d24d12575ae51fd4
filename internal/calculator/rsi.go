package calculator

import (
	"errors"

	"StockPilot/internal/model"
)

// neutralRSI is reported when the window is too short to say anything.
const neutralRSI = 50.0

// CalculateRSI computes Wilder's RSI of the row closes over period.
// Fewer than period+1 rows yield neutralRSI.
func CalculateRSI(rows []model.PriceRow, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	closes := extractCloses(rows)
	if len(closes) <= period {
		return neutralRSI, nil
	}

	// Seed with the simple average of the first period moves.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		g, l := split(closes[i] - closes[i-1])
		avgGain += g
		avgLoss += l
	}
	n := float64(period)
	avgGain /= n
	avgLoss /= n

	for i := period + 1; i < len(closes); i++ {
		g, l := split(closes[i] - closes[i-1])
		avgGain = (avgGain*(n-1) + g) / n
		avgLoss = (avgLoss*(n-1) + l) / n
	}

	if avgLoss == 0 {
		return 100, nil
	}
	return 100 - 100/(1+avgGain/avgLoss), nil
}

// split returns a close-to-close change as (gain, loss), both non-negative.
func split(change float64) (float64, float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}
