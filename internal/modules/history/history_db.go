// Package history stores daily prices and serves them as the price-history provider.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/domain"
)

// HistoryDB provides access to the daily_prices table
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

var _ domain.PriceHistoryProvider = (*HistoryDB)(nil)

// NormalizeSymbol trims and upper-cases a ticker
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// day truncates t to midnight UTC
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GetDailyPrices returns prices for symbol within [start, end], oldest first.
// Zero bounds are open.
func (h *HistoryDB) GetDailyPrices(ctx context.Context, symbol string, start, end time.Time) ([]domain.DailyPrice, error) {
	query := `
		SELECT date, open, high, low, close, volume
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
	if !start.IsZero() {
		lo = day(start).Unix()
	}
	if !end.IsZero() {
		hi = day(end).Unix()
	}

	rows, err := h.db.QueryContext(ctx, query, NormalizeSymbol(symbol), lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.DailyPrice
	for rows.Next() {
		var p domain.DailyPrice
		var dateUnix int64
		var volume sql.NullInt64
		if err := rows.Scan(&dateUnix, &p.Open, &p.High, &p.Low, &p.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC()
		if volume.Valid {
			v := volume.Int64
			p.Volume = &v
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// UpsertPrices writes prices for symbol in one transaction, replacing bars
// already stored for the same day. It returns the number of bars written.
func (h *HistoryDB) UpsertPrices(ctx context.Context, symbol string, prices []domain.DailyPrice) (int, error) {
	const op = "upsert_prices"
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return 0, domain.ValidationError(op, "symbol", "symbol is required")
	}
	for i, p := range prices {
		if p.Date.IsZero() {
			return 0, domain.ValidationError(op, "date", "price %d has no date", i)
		}
		for _, v := range []float64{p.Open, p.High, p.Low, p.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return 0, domain.ValidationError(op, "prices", "price %d on %s has an invalid value %v", i, p.Date.Format("2006-01-02"), v)
			}
		}
	}
	if len(prices) == 0 {
		return 0, nil
	}

	now := time.Now().Unix()
	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_prices (symbol, date, open, high, low, close, volume, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				open = excluded.open,
				high = excluded.high,
				low = excluded.low,
				close = excluded.close,
				volume = excluded.volume,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			var volume sql.NullInt64
			if p.Volume != nil {
				volume = sql.NullInt64{Int64: *p.Volume, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, symbol, day(p.Date).Unix(), p.Open, p.High, p.Low, p.Close, volume, now); err != nil {
				return fmt.Errorf("failed to upsert price for %s: %w", p.Date.Format("2006-01-02"), err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO price_versions (symbol, version, updated_at)
			VALUES (?, 1, ?)
			ON CONFLICT(symbol) DO UPDATE SET
				version = version + 1,
				updated_at = excluded.updated_at
		`, symbol, now)
		if err != nil {
			return fmt.Errorf("failed to bump price version: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	h.log.Debug().Str("symbol", symbol).Int("count", len(prices)).Msg("Stored daily prices")
	return len(prices), nil
}

// SymbolSummary describes the stored range of one symbol
type SymbolSummary struct {
	Symbol string    `json:"symbol"`
	Count  int       `json:"count"`
	First  time.Time `json:"first"`
	Last   time.Time `json:"last"`
}

// ListSymbols returns every stored symbol with its date range
func (h *HistoryDB) ListSymbols(ctx context.Context) ([]SymbolSummary, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT symbol, COUNT(*), MIN(date), MAX(date)
		FROM daily_prices
		GROUP BY symbol
		ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var out []SymbolSummary
	for rows.Next() {
		var s SymbolSummary
		var first, last int64
		if err := rows.Scan(&s.Symbol, &s.Count, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan symbol summary: %w", err)
		}
		s.First = time.Unix(first, 0).UTC()
		s.Last = time.Unix(last, 0).UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return out, nil
}

// DataVersions returns the write counter of every symbol that has been
// upserted at least once.
func (h *HistoryDB) DataVersions(ctx context.Context) (map[string]int64, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT symbol, version FROM price_versions")
	if err != nil {
		return nil, fmt.Errorf("failed to read price versions: %w", err)
	}
	defer rows.Close()

	versions := make(map[string]int64)
	for rows.Next() {
		var symbol string
		var version int64
		if err := rows.Scan(&symbol, &version); err != nil {
			return nil, fmt.Errorf("failed to scan price version: %w", err)
		}
		versions[symbol] = version
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price versions: %w", err)
	}
	return versions, nil
}
