package feed

import (
	"fmt"
	"time"

	"github.com/ridopark/benchtrade/pkg/logging"
	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/rs/zerolog"
)

// HistoricalFeed loads every configured symbol's bars from a
// HistoricalDataProvider up front. Unlike the BarStore it feeds, it does
// not enforce per-timestamp lock-step across symbols — the BarStore's
// forward-aligned GetBars already tolerates a symbol missing a given bar,
// so trimming mismatched timestamps here would only throw away data the
// engine is perfectly able to use.
type HistoricalFeed struct {
	provider HistoricalDataProvider
	symbols  []string
	period   string
	start    time.Time
	end      time.Time
	logger   zerolog.Logger
}

// NewHistoricalFeed builds a feed that will pull symbols' bars from
// provider over [start, end] when Load is called.
func NewHistoricalFeed(provider HistoricalDataProvider, symbols []string, period string, start, end time.Time) *HistoricalFeed {
	return &HistoricalFeed{
		provider: provider,
		symbols:  symbols,
		period:   period,
		start:    start,
		end:      end,
		logger:   logging.GetLogger("historical-feed"),
	}
}

// Load pulls bars for every configured symbol and returns them keyed by
// symbol, ready for the caller to hand to Engine.AddMarketData.
func (hf *HistoricalFeed) Load() (map[string][]strategy.Bar, error) {
	out := make(map[string][]strategy.Bar, len(hf.symbols))
	for _, symbol := range hf.symbols {
		hf.logger.Debug().Str("symbol", symbol).Msg("loading bars for symbol")
		bars, err := hf.provider.GetBars(symbol, hf.period, hf.start, hf.end)
		if err != nil {
			return nil, fmt.Errorf("failed to load bars for symbol %s: %w", symbol, err)
		}
		out[symbol] = bars
		hf.logger.Debug().Str("symbol", symbol).Int("bars_loaded", len(bars)).Msg("bars loaded")
	}
	return out, nil
}

func (hf *HistoricalFeed) Symbols() []string {
	return hf.symbols
}

func (hf *HistoricalFeed) Period() string {
	return hf.period
}

func (hf *HistoricalFeed) Close() error {
	return nil
}
