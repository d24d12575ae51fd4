package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Market identifies the exchange calendar a symbol trades on.
type Market string

const (
	MarketUS Market = "US"
	MarketHK Market = "HK"
	MarketCN Market = "CN"
)

// ErrUnknownMarket is returned by ParseMarket for anything outside US/HK/CN.
var ErrUnknownMarket = errors.New("unknown market")

// ParseMarket normalizes a caller-supplied market code.
func ParseMarket(s string) (Market, error) {
	m := Market(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MarketUS, MarketHK, MarketCN:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMarket, s)
}

// SessionStatus is the trading session phase of a market at some instant.
type SessionStatus string

const (
	SessionPre    SessionStatus = "pre"
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

const dateLayout = "2006-01-02"

// Date truncates t to its calendar date in t's own location and returns it as
// midnight UTC, which is how every PriceRow date is represented.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a midnight-UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
