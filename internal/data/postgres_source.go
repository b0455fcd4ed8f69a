// Package data holds historical bar sources kept out of pkg/feed because
// they pull in a concrete driver (lib/pq) the feed package itself stays
// agnostic to.
package data

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/ridopark/benchtrade/pkg/feed"
	"github.com/ridopark/benchtrade/pkg/logging"
	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/rs/zerolog"
)

// PostgresBarSource reads OHLCV bars out of a Postgres/TimescaleDB
// `ohlcv_data` table. Grounded on the teacher's TimescaleDBProvider,
// renamed and rewritten against strategy.Bar (the period field folded out
// of the bar struct and carried as a query parameter instead).
type PostgresBarSource struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresBarSource opens and pings a Postgres connection.
func NewPostgresBarSource(connectionString string) (*PostgresBarSource, error) {
	logger := logging.GetLogger("postgres-source")

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info().Msg("connected to postgres bar source")

	return &PostgresBarSource{db: db, logger: logger}, nil
}

// GetBars returns every bar for symbol/period within [start, end], ascending.
func (p *PostgresBarSource) GetBars(symbol, period string, start, end time.Time) ([]strategy.Bar, error) {
	const query = `
		SELECT symbol, timestamp, open, high, low, close, volume
		FROM ohlcv_data
		WHERE symbol = $1 AND timeframe = $2 AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC
	`
	rows, err := p.db.Query(query, symbol, period, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query ohlcv_data: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// GetLastBar returns the most recent bar for symbol/period.
func (p *PostgresBarSource) GetLastBar(symbol, period string) (*strategy.Bar, error) {
	const query = `
		SELECT symbol, timestamp, open, high, low, close, volume
		FROM ohlcv_data
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`
	row := p.db.QueryRow(query, symbol, period)
	var bar strategy.Bar
	if err := row.Scan(&bar.Symbol, &bar.Timestamp, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no data found for symbol %s period %s", symbol, period)
		}
		return nil, fmt.Errorf("failed to get last bar: %w", err)
	}
	return &bar, nil
}

// GetBarsLimit returns the last limit bars for symbol/period, ascending.
func (p *PostgresBarSource) GetBarsLimit(symbol, period string, limit int) ([]strategy.Bar, error) {
	const query = `
		SELECT symbol, timestamp, open, high, low, close, volume
		FROM ohlcv_data
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT $3
	`
	rows, err := p.db.Query(query, symbol, period, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ohlcv_data: %w", err)
	}
	defer rows.Close()
	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func scanBars(rows *sql.Rows) ([]strategy.Bar, error) {
	var bars []strategy.Bar
	for rows.Next() {
		var bar strategy.Bar
		if err := rows.Scan(&bar.Symbol, &bar.Timestamp, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return bars, nil
}

// Close closes the underlying database connection.
func (p *PostgresBarSource) Close() error {
	return p.db.Close()
}

var _ feed.HistoricalDataProvider = (*PostgresBarSource)(nil)
