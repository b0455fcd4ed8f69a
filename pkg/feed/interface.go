// Package feed is the external-collaborator seam between a historical bar
// source (CSV, a database, a vendor API) and the engine's BarStore. It does
// not depend on pkg/backtester — it only produces strategy.Bar slices for
// the caller to hand to Engine.AddMarketData.
package feed

import (
	"time"

	"github.com/ridopark/benchtrade/pkg/strategy"
)

// HistoricalDataProvider is a source of historical OHLCV data, e.g. a
// Postgres/TimescaleDB table.
type HistoricalDataProvider interface {
	// GetBars retrieves bars for symbol within [start, end].
	GetBars(symbol string, period string, start, end time.Time) ([]strategy.Bar, error)

	// GetLastBar returns the most recent bar for symbol, if any.
	GetLastBar(symbol string, period string) (*strategy.Bar, error)

	// GetBarsLimit returns the last limit bars for symbol.
	GetBarsLimit(symbol string, period string, limit int) ([]strategy.Bar, error)
}

// Feed loads bars for a fixed set of symbols over a fixed window, ready to
// be handed to the engine's BarStore one symbol at a time.
type Feed interface {
	// Load returns every configured symbol's bars, keyed by symbol.
	Load() (map[string][]strategy.Bar, error)

	// Symbols returns the configured symbol set.
	Symbols() []string

	// Period returns the configured bar period hint (e.g. "1d").
	Period() string

	// Close releases any resources (database connections, open files).
	Close() error
}
