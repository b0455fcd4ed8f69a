package backtester

import (
	"sort"
	"time"

	"github.com/ridopark/benchtrade/pkg/strategy"
)

// symbolSeries is one symbol's time-sorted, immutable bar array plus a
// one-entry lookup cache so repeated GetBars calls within the same bar are
// O(1) after the first binary search.
type symbolSeries struct {
	bars []strategy.Bar

	cachedAsOf   time.Time
	cachedIndex  int // index of the rightmost bar with Timestamp <= cachedAsOf; -1 if none
	cacheWarm    bool
}

// asOfIndex returns the index of the rightmost bar with Timestamp <= asOf,
// or -1 if no such bar exists.
func (s *symbolSeries) asOfIndex(asOf time.Time) int {
	if s.cacheWarm && s.cachedAsOf.Equal(asOf) {
		return s.cachedIndex
	}
	idx := sort.Search(len(s.bars), func(i int) bool {
		return s.bars[i].Timestamp.After(asOf)
	}) - 1
	s.cachedAsOf = asOf
	s.cachedIndex = idx
	s.cacheWarm = true
	return idx
}

// BarStore holds per-symbol, time-sorted OHLCV arrays and serves
// forward-aligned lookups bounded by the engine's current benchmark
// timestamp. Grounded on the per-symbol bar grouping in the feed package and
// the bar-retrieval shape of the Postgres-backed provider, pulled into a
// standalone store since the engine now owns its own bars instead of
// pulling one at a time through a feed.
type BarStore struct {
	series map[string]*symbolSeries
	start  time.Time
	end    time.Time
}

// NewBarStore creates an empty store. A zero start/end means no window
// filtering is applied.
func NewBarStore(start, end time.Time) *BarStore {
	return &BarStore{
		series: make(map[string]*symbolSeries),
		start:  start,
		end:    end,
	}
}

// AddMarketData stores bars for symbol, sorting defensively and validating
// the per-bar invariants from the data model: strictly increasing unique
// timestamps, positive OHLC with low <= {open, close} <= high, volume >= 0.
// The configured [start, end] window is applied inclusively on both ends.
func (bs *BarStore) AddMarketData(symbol string, bars []strategy.Bar) error {
	sorted := make([]strategy.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	filtered := sorted
	if !bs.start.IsZero() || !bs.end.IsZero() {
		filtered = filtered[:0]
		for _, b := range sorted {
			if !bs.start.IsZero() && b.Timestamp.Before(bs.start) {
				continue
			}
			if !bs.end.IsZero() && b.Timestamp.After(bs.end) {
				continue
			}
			filtered = append(filtered, b)
		}
	}

	for i, b := range filtered {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return &DataError{Symbol: symbol, Index: i, Reason: "open/high/low/close must be positive"}
		}
		if b.Low > b.Open || b.Low > b.Close || b.Low > b.High {
			return &DataError{Symbol: symbol, Index: i, Reason: "low must be <= open, close, and high"}
		}
		if b.High < b.Open || b.High < b.Close {
			return &DataError{Symbol: symbol, Index: i, Reason: "high must be >= open and close"}
		}
		if b.Volume < 0 {
			return &DataError{Symbol: symbol, Index: i, Reason: "volume must be non-negative"}
		}
		if i > 0 && !filtered[i].Timestamp.After(filtered[i-1].Timestamp) {
			return &DataError{Symbol: symbol, Index: i, Reason: "timestamps must be strictly increasing"}
		}
	}

	bs.series[symbol] = &symbolSeries{bars: filtered}
	return nil
}

// Symbols returns every symbol with at least one stored bar.
func (bs *BarStore) Symbols() []string {
	out := make([]string, 0, len(bs.series))
	for symbol := range bs.series {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// GetBars returns the last count bars for symbol whose timestamp is <= asOf,
// oldest first. Returns fewer than count if that many aren't available yet,
// and an empty slice if the symbol has no bar at or before asOf.
func (bs *BarStore) GetBars(symbol string, count int, asOf time.Time) []strategy.Bar {
	s, ok := bs.series[symbol]
	if !ok || count <= 0 {
		return nil
	}
	idx := s.asOfIndex(asOf)
	if idx < 0 {
		return nil
	}
	start := idx - count + 1
	if start < 0 {
		start = 0
	}
	out := make([]strategy.Bar, idx-start+1)
	copy(out, s.bars[start:idx+1])
	return out
}

// BarAt returns the bar with an exact timestamp match for symbol, if any.
func (bs *BarStore) BarAt(symbol string, timestamp time.Time) (strategy.Bar, bool) {
	s, ok := bs.series[symbol]
	if !ok {
		return strategy.Bar{}, false
	}
	idx := s.asOfIndex(timestamp)
	if idx < 0 || !s.bars[idx].Timestamp.Equal(timestamp) {
		return strategy.Bar{}, false
	}
	return s.bars[idx], true
}

// LastKnownClose returns the close of the most recent bar for symbol at or
// before asOf, used as the mark-to-market and settlement fallback when a
// symbol has no bar exactly at the timestamp in question.
func (bs *BarStore) LastKnownClose(symbol string, asOf time.Time) (float64, bool) {
	s, ok := bs.series[symbol]
	if !ok {
		return 0, false
	}
	idx := s.asOfIndex(asOf)
	if idx < 0 {
		return 0, false
	}
	return s.bars[idx].Close, true
}

// IndexAsOf returns the index of the rightmost bar for symbol with
// Timestamp <= asOf, or -1 if none. Exposed for the indicator registry,
// which aligns its precomputed series with each symbol's own bar array.
func (bs *BarStore) IndexAsOf(symbol string, asOf time.Time) int {
	s, ok := bs.series[symbol]
	if !ok {
		return -1
	}
	return s.asOfIndex(asOf)
}

// Bars returns the full stored bar array for symbol, oldest first. Used by
// the indicator registry's one-time precomputation pass, not by per-bar
// lookups (use GetBars for those).
func (bs *BarStore) Bars(symbol string) []strategy.Bar {
	s, ok := bs.series[symbol]
	if !ok {
		return nil
	}
	return s.bars
}

// ReferencePrice returns the price the matcher should use to settle an
// intent at the given timestamp: the exact bar's open (preferOpen) or close
// at that timestamp if one exists, otherwise the last known close at or
// before it. ok is false only when the symbol has no bar data at all up to
// that point.
func (bs *BarStore) ReferencePrice(symbol string, at time.Time, preferOpen bool) (float64, bool) {
	if bar, ok := bs.BarAt(symbol, at); ok {
		if preferOpen {
			return bar.Open, true
		}
		return bar.Close, true
	}
	return bs.LastKnownClose(symbol, at)
}
