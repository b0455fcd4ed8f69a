package backtester

import (
	"math"
	"time"

	"github.com/ridopark/benchtrade/pkg/logging"
	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/rs/zerolog"
)

// indicatorSpec records what RegisterIndicator was called with; no
// computation happens at registration time.
type indicatorSpec struct {
	kind     strategy.IndicatorKind
	params   map[string]interface{}
	lookback int
	customFn strategy.CustomIndicatorFunc
}

// IndicatorRegistry holds registered indicator specs and their precomputed,
// per-symbol aligned value series. Grounded on the rolling SMA/RSI caches in
// the old StrategyContext (kept the Wilder-smoothing idea, corrected to the
// simple-average-seed-then-Wilder-smoothed definition), confirmed against
// original_source/python/rustbroker/indicators.py that SMA, RSI, and a
// user-defined function are the only first-class kinds — the teacher's
// MACD/ADX/SuperTrend/ParabolicSAR helpers are not carried forward.
type IndicatorRegistry struct {
	specs  map[string]indicatorSpec
	series map[string]map[string][]*float64 // name -> symbol -> aligned values
	logger zerolog.Logger
}

func NewIndicatorRegistry() *IndicatorRegistry {
	return &IndicatorRegistry{
		specs:  make(map[string]indicatorSpec),
		series: make(map[string]map[string][]*float64),
		logger: logging.GetLogger("indicators"),
	}
}

// RegisterIndicator records a built-in SMA or RSI spec. Re-registering an
// existing name overwrites it.
func (r *IndicatorRegistry) RegisterIndicator(name string, kind strategy.IndicatorKind, params map[string]interface{}, lookback int) error {
	if lookback < 1 {
		return &ConfigError{Field: "lookback", Reason: "must be >= 1"}
	}
	if _, exists := r.specs[name]; exists {
		r.logger.Warn().Str("indicator", name).Msg("overwriting existing indicator registration")
	}
	r.specs[name] = indicatorSpec{kind: kind, params: params, lookback: lookback}
	return nil
}

// RegisterCustomIndicator records a user-defined pure-function indicator.
func (r *IndicatorRegistry) RegisterCustomIndicator(name string, fn strategy.CustomIndicatorFunc, lookback int) error {
	if lookback < 1 {
		return &ConfigError{Field: "lookback", Reason: "must be >= 1"}
	}
	if fn == nil {
		return &ConfigError{Field: "fn", Reason: "must not be nil"}
	}
	if _, exists := r.specs[name]; exists {
		r.logger.Warn().Str("indicator", name).Msg("overwriting existing indicator registration")
	}
	r.specs[name] = indicatorSpec{kind: strategy.KindCustom, lookback: lookback, customFn: fn}
	return nil
}

// Precompute walks every registered spec against every symbol in store,
// computing the aligned value series once, serially, before the main loop
// starts. Cost is O(symbols x bars x indicators).
func (r *IndicatorRegistry) Precompute(store *BarStore) {
	for name, spec := range r.specs {
		perSymbol := make(map[string][]*float64, len(store.series))
		for _, symbol := range store.Symbols() {
			bars := store.Bars(symbol)
			switch spec.kind {
			case strategy.KindSMA:
				period := intParam(spec.params, "period", spec.lookback)
				perSymbol[symbol] = computeSMA(bars, period)
			case strategy.KindRSI:
				period := intParam(spec.params, "period", spec.lookback)
				perSymbol[symbol] = computeRSI(bars, period)
			case strategy.KindCustom:
				perSymbol[symbol] = computeCustom(bars, spec.customFn)
			default:
				r.logger.Warn().Str("indicator", name).Str("kind", string(spec.kind)).Msg("unknown indicator kind, skipping")
			}
		}
		r.series[name] = perSymbol
	}
}

// GetValue returns the last count values for (name, symbol) at or before
// asOf, oldest first, rounded to four decimal places. A not-yet-defined
// entry is nil.
func (r *IndicatorRegistry) GetValue(name, symbol string, count int, asOf time.Time, store *BarStore) []*float64 {
	bySymbol, ok := r.series[name]
	if !ok {
		return nil
	}
	values, ok := bySymbol[symbol]
	if !ok || count <= 0 {
		return nil
	}
	idx := store.IndexAsOf(symbol, asOf)
	if idx < 0 || idx >= len(values) {
		return nil
	}
	start := idx - count + 1
	if start < 0 {
		start = 0
	}
	out := make([]*float64, idx-start+1)
	for i := start; i <= idx; i++ {
		out[i-start] = roundedCopy(values[i])
	}
	return out
}

// GetValues returns the current value of each named indicator for symbol,
// keyed by name, with the same rounding and absent-as-nil semantics as
// GetValue.
func (r *IndicatorRegistry) GetValues(symbol string, names []string, asOf time.Time, store *BarStore) map[string]*float64 {
	out := make(map[string]*float64, len(names))
	for _, name := range names {
		vals := r.GetValue(name, symbol, 1, asOf, store)
		if len(vals) == 0 {
			out[name] = nil
			continue
		}
		out[name] = vals[0]
	}
	return out
}

func roundedCopy(v *float64) *float64 {
	if v == nil {
		return nil
	}
	rounded := math.Round(*v*10000) / 10000
	return &rounded
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	if params == nil {
		return fallback
	}
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return fallback
	}
}

// computeSMA: value at index i is the arithmetic mean of close over
// [i-period+1, i], undefined for i < period-1. Sliding-window sum keeps this
// O(1) per index instead of re-summing the whole window.
func computeSMA(bars []strategy.Bar, period int) []*float64 {
	n := len(bars)
	out := make([]*float64, n)
	if period < 1 {
		return out
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += bars[i].Close
		if i >= period {
			sum -= bars[i-period].Close
		}
		if i >= period-1 {
			avg := sum / float64(period)
			out[i] = &avg
		}
	}
	return out
}

// computeRSI implements Wilder's formulation: the first P close-to-close
// deltas seed avgGain/avgLoss as simple averages (that seed is never itself
// emitted — it only exists to prime the recursion), then each later index
// is Wilder-smoothed. Undefined for i <= P; first defined value at i = P+1.
func computeRSI(bars []strategy.Bar, period int) []*float64 {
	n := len(bars)
	out := make([]*float64, n)
	if period < 1 || n <= period {
		return out
	}

	var seedGain, seedLoss float64
	for i := 1; i <= period; i++ {
		delta := bars[i].Close - bars[i-1].Close
		if delta > 0 {
			seedGain += delta
		} else {
			seedLoss += -delta
		}
	}
	avgGain := seedGain / float64(period)
	avgLoss := seedLoss / float64(period)

	for i := period + 1; i < n; i++ {
		delta := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)

		var rsi float64
		if avgLoss == 0 {
			rsi = 100
		} else {
			rs := avgGain / avgLoss
			rsi = 100 - 100/(1+rs)
		}
		out[i] = &rsi
	}
	return out
}

// computeCustom calls fn once per index, in order, passing every bar up to
// and including that index. A NaN result is treated as not-yet-defined.
func computeCustom(bars []strategy.Bar, fn strategy.CustomIndicatorFunc) []*float64 {
	if fn == nil {
		return make([]*float64, len(bars))
	}
	out := make([]*float64, len(bars))
	for i := range bars {
		v := fn(bars[:i+1])
		if math.IsNaN(v) {
			continue
		}
		val := v
		out[i] = &val
	}
	return out
}
