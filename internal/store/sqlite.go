package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"StockPilot/internal/model"
)

// SQLiteStore persists price and news data to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets API reads proceed while the warmer writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prices (
			symbol TEXT NOT NULL,
			market TEXT NOT NULL,
			date   TEXT NOT NULL,
			open   REAL,
			high   REAL,
			low    REAL,
			close  REAL,
			volume INTEGER CHECK (volume >= 0),
			PRIMARY KEY (symbol, market, date)
		)`,

		`CREATE TABLE IF NOT EXISTS news (
			symbol       TEXT NOT NULL,
			market       TEXT NOT NULL,
			published_at INTEGER NOT NULL,
			text         TEXT NOT NULL CHECK (text <> ''),
			url          TEXT,
			source       TEXT,
			PRIMARY KEY (symbol, market, published_at)
		)`,

		`CREATE TABLE IF NOT EXISTS fetch_marks (
			symbol     TEXT NOT NULL,
			market     TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date   TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, market)
		)`,
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", strings.TrimSpace(st)[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) UpsertPrices(ctx context.Context, rows []model.PriceRow) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rows {
		date := model.FormatDate(r.Date)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM prices WHERE symbol = ? AND market = ? AND date = ?`,
			r.Symbol, string(r.Market), date,
		); err != nil {
			return fmt.Errorf("delete price %s/%s/%s: %w", r.Symbol, r.Market, date, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prices (symbol, market, date, open, high, low, close, volume)
			VALUES (?,?,?,?,?,?,?,?)`,
			r.Symbol, string(r.Market), date, r.Open, r.High, r.Low, r.Close, r.Volume,
		); err != nil {
			return fmt.Errorf("insert price %s/%s/%s: %w", r.Symbol, r.Market, date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func scanPrices(rows *sql.Rows) ([]model.PriceRow, error) {
	var out []model.PriceRow
	for rows.Next() {
		var (
			r      model.PriceRow
			market string
			date   string
		)
		if err := rows.Scan(&r.Symbol, &market, &date, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		d, err := model.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		r.Market = model.Market(market)
		r.Date = d
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) LoadPrices(ctx context.Context, symbol string, market model.Market, start, end time.Time) ([]model.PriceRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, market, date, open, high, low, close, volume
		FROM prices
		WHERE symbol = ? AND market = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		symbol, string(market), model.FormatDate(start), model.FormatDate(end),
	)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	defer rows.Close()
	return scanPrices(rows)
}

func (s *SQLiteStore) LoadPrice(ctx context.Context, symbol string, market model.Market, date time.Time) (model.PriceRow, bool, error) {
	rows, err := s.LoadPrices(ctx, symbol, market, date, date)
	if err != nil {
		return model.PriceRow{}, false, err
	}
	if len(rows) == 0 {
		return model.PriceRow{}, false, nil
	}
	return rows[0], true, nil
}

func (s *SQLiteStore) AddNewsItems(ctx context.Context, symbol string, market model.Market, items []model.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin news insert: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO news (symbol, market, published_at, text, url, source)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT (symbol, market, published_at) DO NOTHING`,
			symbol, string(market), it.PublishedAt.Unix(), it.Text, it.URL, it.Source,
		); err != nil {
			return fmt.Errorf("insert news %s/%s: %w", symbol, market, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM news
		WHERE symbol = ? AND market = ? AND published_at NOT IN (
			SELECT published_at FROM news
			WHERE symbol = ? AND market = ?
			ORDER BY published_at DESC
			LIMIT ?
		)`,
		symbol, string(market), symbol, string(market), model.MaxNewsPerKey,
	); err != nil {
		return fmt.Errorf("prune news %s/%s: %w", symbol, market, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit news insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadNews(ctx context.Context, symbol string, market model.Market) ([]model.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, market, published_at, text, COALESCE(url, ''), COALESCE(source, '')
		FROM news
		WHERE symbol = ? AND market = ?
		ORDER BY published_at DESC
		LIMIT ?`,
		symbol, string(market), model.MaxNewsPerKey,
	)
	if err != nil {
		return nil, fmt.Errorf("load news: %w", err)
	}
	defer rows.Close()

	var out []model.NewsItem
	for rows.Next() {
		var (
			it     model.NewsItem
			mkt    string
			unixTS int64
		)
		if err := rows.Scan(&it.Symbol, &mkt, &unixTS, &it.Text, &it.URL, &it.Source); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		it.Market = model.Market(mkt)
		it.PublishedAt = time.Unix(unixTS, 0).UTC()
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) MarkFetched(ctx context.Context, m model.FetchMark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_marks (symbol, market, start_date, end_date, fetched_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT (symbol, market) DO UPDATE SET
			start_date = excluded.start_date,
			end_date   = excluded.end_date,
			fetched_at = excluded.fetched_at`,
		m.Symbol, string(m.Market), model.FormatDate(m.Start), model.FormatDate(m.End), m.FetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("mark fetched %s/%s: %w", m.Symbol, m.Market, err)
	}
	return nil
}

func (s *SQLiteStore) LoadFetchMark(ctx context.Context, symbol string, market model.Market) (model.FetchMark, bool, error) {
	var (
		m          model.FetchMark
		mkt        string
		start, end string
		fetchedAt  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT symbol, market, start_date, end_date, fetched_at
		FROM fetch_marks WHERE symbol = ? AND market = ?`,
		symbol, string(market),
	).Scan(&m.Symbol, &mkt, &start, &end, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FetchMark{}, false, nil
	}
	if err != nil {
		return model.FetchMark{}, false, fmt.Errorf("load fetch mark: %w", err)
	}
	m.Market = model.Market(mkt)
	if m.Start, err = model.ParseDate(start); err != nil {
		return model.FetchMark{}, false, fmt.Errorf("parse mark start %q: %w", start, err)
	}
	if m.End, err = model.ParseDate(end); err != nil {
		return model.FetchMark{}, false, fmt.Errorf("parse mark end %q: %w", end, err)
	}
	m.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return m, true, nil
}

func (s *SQLiteStore) Close() error {
	s.logger.Info().Msg("closing sqlite store")
	return s.db.Close()
}
