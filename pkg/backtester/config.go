package backtester

import (
	"sort"
	"time"
)

// FillPolicy controls which bar's price the matcher uses as the settlement
// reference. The default avoids look-ahead by filling at the next bar's
// open; at the tail of the timeline there is no next bar, so the matcher
// falls back to the current bar's close. FillCurrentClose always settles at
// the current bar's close, even mid-timeline. Any deviation from the
// default is a config knob, never an implicit behavior.
type FillPolicy string

const (
	FillNextOpenOrCurrentClose FillPolicy = "next_open_or_current_close"
	FillCurrentClose           FillPolicy = "current_close"
)

// Config holds the options the engine constructor validates and the matcher
// and statistics module read for the lifetime of a run.
type Config struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`

	Cash           float64    `yaml:"cash"`
	CommissionRate float64    `yaml:"commission_rate"`
	MinCommission  float64    `yaml:"min_commission"`
	SlippageBps    float64    `yaml:"slippage_bps"`
	StampTaxRate   float64    `yaml:"stamp_tax_rate"`
	T0Symbols      []string   `yaml:"t0_symbols"`
	Period         string     `yaml:"period"`
	LotSize        int        `yaml:"lot_size"`
	FillPolicy     FillPolicy `yaml:"fill_policy"`
}

// DefaultConfig returns the option defaults from the external interface table.
func DefaultConfig() Config {
	return Config{
		Cash:           100_000,
		CommissionRate: 0.0005,
		MinCommission:  5.0,
		SlippageBps:    1.0,
		StampTaxRate:   0.001,
		T0Symbols:      nil,
		Period:         "auto",
		LotSize:        100,
		FillPolicy:     FillNextOpenOrCurrentClose,
	}
}

// Validate rejects configuration values that can never produce a sane run.
func (c Config) Validate() error {
	if c.Cash < 0 {
		return &ConfigError{Field: "cash", Reason: "must be non-negative"}
	}
	if c.CommissionRate < 0 {
		return &ConfigError{Field: "commission_rate", Reason: "must be non-negative"}
	}
	if c.MinCommission < 0 {
		return &ConfigError{Field: "min_commission", Reason: "must be non-negative"}
	}
	if c.SlippageBps < 0 {
		return &ConfigError{Field: "slippage_bps", Reason: "must be non-negative"}
	}
	if c.StampTaxRate < 0 {
		return &ConfigError{Field: "stamp_tax_rate", Reason: "must be non-negative"}
	}
	if c.LotSize <= 0 {
		return &ConfigError{Field: "lot_size", Reason: "must be positive"}
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		return &ConfigError{Field: "end", Reason: "must not be before start"}
	}
	switch c.Period {
	case "", "auto", "1m", "5m", "15m", "1h", "1d":
	default:
		return &ConfigError{Field: "period", Reason: "unrecognized period hint"}
	}
	switch c.FillPolicy {
	case "", FillNextOpenOrCurrentClose, FillCurrentClose:
	default:
		return &ConfigError{Field: "fill_policy", Reason: "unrecognized fill policy"}
	}
	return nil
}

// t0 reports whether symbol is exempt from T+1 settlement lockout.
func (c Config) t0(symbol string) bool {
	for _, s := range c.T0Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// explicitPeriodSeconds maps a configured period hint to its implied bar
// spacing. "", "auto" have no explicit spacing — the caller falls back to
// inferring it from the data.
func explicitPeriodSeconds(period string) (float64, bool) {
	switch period {
	case "1m":
		return 60, true
	case "5m":
		return 5 * 60, true
	case "15m":
		return 15 * 60, true
	case "1h":
		return 3600, true
	case "1d":
		return 24 * 3600, true
	}
	return 0, false
}

// barsPerYear is the annualization factor statistics are scaled by. Per
// spec §4.8, it is inferred from the median gap between consecutive
// timestamps when the period hint is "auto" or unset, and taken from the
// explicit hint otherwise — the hint is an override, not the only path.
func (c Config) barsPerYear(timestamps []time.Time) float64 {
	if seconds, ok := explicitPeriodSeconds(c.Period); ok {
		return barsPerYearFromSpacing(seconds)
	}
	if delta := medianTimestampDelta(timestamps); delta > 0 {
		return barsPerYearFromSpacing(delta.Seconds())
	}
	return 252
}

// barsPerYearFromSpacing converts a bar spacing in seconds to bars-per-year,
// assuming 252 trading days per year and 4 trading hours per day (240
// minute-bars/day) for intraday spacing — the convention the spec's
// "minute -> 252*240" example is drawn from.
func barsPerYearFromSpacing(deltaSeconds float64) float64 {
	const tradingSecondsPerDay = 4 * 3600.0
	const tradingDaysPerYear = 252.0
	if deltaSeconds <= 0 {
		return tradingDaysPerYear
	}
	if deltaSeconds < 24*3600 {
		return tradingDaysPerYear * tradingSecondsPerDay / deltaSeconds
	}
	return tradingDaysPerYear * (24 * 3600) / deltaSeconds
}

// medianTimestampDelta returns the median gap between consecutive
// timestamps, or zero if there are fewer than two to compare.
func medianTimestampDelta(timestamps []time.Time) time.Duration {
	if len(timestamps) < 2 {
		return 0
	}
	deltas := make([]time.Duration, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		deltas[i-1] = timestamps[i].Sub(timestamps[i-1])
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	mid := len(deltas) / 2
	if len(deltas)%2 == 0 {
		return (deltas[mid-1] + deltas[mid]) / 2
	}
	return deltas[mid]
}
