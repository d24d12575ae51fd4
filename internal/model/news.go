package model

import "time"

// MaxNewsPerKey is how many headlines the store keeps per (symbol, market).
const MaxNewsPerKey = 10

// NewsItem is one stored headline. (Symbol, Market, PublishedAt) is the primary key.
type NewsItem struct {
	Symbol      string    `json:"symbol"`
	Market      Market    `json:"market"`
	PublishedAt time.Time `json:"published_at"`
	Text        string    `json:"text"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// Headline is a news record as returned by a remote fetcher.
type Headline struct {
	PublishedAt time.Time
	Title       string
	URL         string
	Source      string
}
