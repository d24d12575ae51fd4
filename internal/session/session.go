// Package session maps a market and an instant to its trading session phase.
//
// The calendar is weekday-only: exchange holidays are not modelled, so a
// holiday that falls on a weekday reports the regular session windows.
package session

import (
	"time"
	_ "time/tzdata"

	"StockPilot/internal/model"
)

// window is a half-open local time-of-day range [start, end) in minutes after midnight.
type window struct {
	start, end int
}

type calendar struct {
	loc     *time.Location
	windows []window
}

func mustLoad(zone string) *time.Location {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		// tzdata is embedded, so this only happens with a corrupt build.
		panic("session: load " + zone + ": " + err.Error())
	}
	return loc
}

func hm(h, m int) int { return h*60 + m }

var calendars = map[model.Market]calendar{
	model.MarketUS: {
		loc:     mustLoad("America/New_York"),
		windows: []window{{hm(9, 30), hm(16, 0)}},
	},
	model.MarketHK: {
		loc:     mustLoad("Asia/Hong_Kong"),
		windows: []window{{hm(9, 30), hm(12, 0)}, {hm(13, 0), hm(16, 0)}},
	},
	model.MarketCN: {
		loc:     mustLoad("Asia/Shanghai"),
		windows: []window{{hm(9, 30), hm(11, 30)}, {hm(13, 0), hm(15, 0)}},
	},
}

func calendarFor(market model.Market) calendar {
	if c, ok := calendars[market]; ok {
		return c
	}
	return calendars[model.MarketUS]
}

// Location returns the market's local timezone. Unknown markets use New York.
func Location(market model.Market) *time.Location {
	return calendarFor(market).loc
}

// TradingDate returns the market-local calendar date of now as a midnight-UTC date.
func TradingDate(market model.Market, now time.Time) time.Time {
	return model.Date(now.In(Location(market)))
}

// Status reports the session phase of market at now, plus the market-local
// trading date. Anything before the first window is pre-market; gaps between
// windows and everything after the last window are closed.
func Status(market model.Market, now time.Time) (model.SessionStatus, time.Time) {
	local := now.In(Location(market))
	today := model.Date(local)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return model.SessionClosed, today
	}

	minute := local.Hour()*60 + local.Minute()
	ws := calendarFor(market).windows
	if minute < ws[0].start {
		return model.SessionPre, today
	}
	for _, w := range ws {
		if minute >= w.start && minute < w.end {
			return model.SessionOpen, today
		}
	}
	return model.SessionClosed, today
}
