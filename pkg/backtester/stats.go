package backtester

import (
	"math"
	"time"

	"github.com/ridopark/benchtrade/pkg/strategy"
)

// DrawdownStats is the peak-to-trough decline with its bracketing timestamps,
// reused identically for the account curve and the benchmark curve.
type DrawdownStats struct {
	MaxDrawdown  float64
	Start        time.Time
	Trough       time.Time
	End          time.Time
	DurationBars int
}

// Stats is the run result's performance summary. Field names mirror the
// run-result schema's stats object, with the benchmark_* fields folded into
// a nested struct instead of a name prefix since Go has no flat-namespace
// convention for that.
type Stats struct {
	TotalReturn      float64
	AnnualizedReturn float64
	Volatility       float64
	Sharpe           float64
	Calmar           float64
	Drawdown         DrawdownStats
	WinRate          float64
	ProfitLossRatio  float64
	OpenCount        int
	CloseCount       int

	Benchmark BenchmarkStats
}

// BenchmarkStats mirrors the account-curve statistics computed identically
// against the benchmark bar series, close-to-close.
type BenchmarkStats struct {
	Return           float64
	AnnualizedReturn float64
	Drawdown         DrawdownStats
}

// ComputeStats derives every run-result statistic from the finished
// equity curve and trade log. Grounded on the teacher's Results.
// CalculateMetrics (same overall shape: returns series -> mean/stddev ->
// Sharpe, FIFO position tracker -> win/loss stats), reworked to annualize
// Sharpe per the spec's formula and to drop Sortino/VaR/ExpectedShortfall,
// which nothing downstream names.
func ComputeStats(equity []EquityPoint, trades []strategy.Fill, benchmarkBars []strategy.Bar, cfg Config) Stats {
	timestamps := make([]time.Time, len(equity))
	values := make([]float64, len(equity))
	for i, p := range equity {
		timestamps[i] = p.Timestamp
		values[i] = p.Equity
	}
	barsPerYear := cfg.barsPerYear(timestamps)
	totalReturn, annualizedReturn, volatility, sharpe := returnStats(values, barsPerYear)
	drawdown := computeDrawdown(equity)
	calmar := 0.0
	if drawdown.MaxDrawdown > 1e-9 {
		calmar = annualizedReturn / drawdown.MaxDrawdown
	}

	tracker := newFIFOTracker()
	for _, fill := range trades {
		tracker.apply(fill)
	}

	stats := Stats{
		TotalReturn:      totalReturn,
		AnnualizedReturn: annualizedReturn,
		Volatility:       volatility,
		Sharpe:           sharpe,
		Calmar:           calmar,
		Drawdown:         drawdown,
		WinRate:          tracker.winRate(),
		ProfitLossRatio:  tracker.profitLossRatio(),
		OpenCount:        tracker.openCount,
		CloseCount:       tracker.closeCount,
	}

	if len(benchmarkBars) > 0 {
		benchTimestamps := make([]time.Time, len(benchmarkBars))
		benchValues := make([]float64, len(benchmarkBars))
		benchEquity := make([]EquityPoint, len(benchmarkBars))
		for i, bar := range benchmarkBars {
			benchTimestamps[i] = bar.Timestamp
			benchValues[i] = bar.Close
			benchEquity[i] = EquityPoint{Timestamp: bar.Timestamp, Equity: bar.Close}
		}
		benchBarsPerYear := cfg.barsPerYear(benchTimestamps)
		benchTotal, benchAnnualized, _, _ := returnStats(benchValues, benchBarsPerYear)
		stats.Benchmark = BenchmarkStats{
			Return:           benchTotal,
			AnnualizedReturn: benchAnnualized,
			Drawdown:         computeDrawdown(benchEquity),
		}
	}

	return stats
}

// returnStats computes total return, annualized return, per-bar-return
// volatility, and the zero-risk-free Sharpe ratio, all annualized by
// barsPerYear. Simple (not log) per-bar returns, per the statistics design.
func returnStats(values []float64, barsPerYear float64) (totalReturn, annualizedReturn, volatility, sharpe float64) {
	n := len(values)
	if n < 2 || values[0] == 0 {
		return 0, 0, 0, 0
	}
	totalReturn = values[n-1]/values[0] - 1

	returns := make([]float64, n-1)
	for i := 1; i < n; i++ {
		if values[i-1] == 0 {
			continue
		}
		returns[i-1] = values[i]/values[i-1] - 1
	}

	m := mean(returns)
	sd := stddev(returns, m)
	volatility = sd * math.Sqrt(barsPerYear)
	if sd > 1e-12 {
		sharpe = (m / sd) * math.Sqrt(barsPerYear)
	}

	exponent := barsPerYear / float64(n)
	annualizedReturn = math.Pow(values[n-1]/values[0], exponent) - 1
	return
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// computeDrawdown finds the largest peak-to-trough fractional decline and
// the timestamps bracketing it: the peak it fell from, the trough it hit,
// and the point by which it recovered to a new high (or the series end, if
// it never recovers).
func computeDrawdown(equity []EquityPoint) DrawdownStats {
	if len(equity) == 0 {
		return DrawdownStats{}
	}
	peakValue := equity[0].Equity
	peakIndex := 0

	maxDD := 0.0
	var ddStart, ddTrough, ddEnd time.Time
	var ddStartIdx, ddTroughIdx int

	for i, p := range equity {
		if p.Equity > peakValue {
			peakValue = p.Equity
			peakIndex = i
		}
		if peakValue <= 0 {
			continue
		}
		dd := 1 - p.Equity/peakValue
		if dd > maxDD {
			maxDD = dd
			ddStart = equity[peakIndex].Timestamp
			ddStartIdx = peakIndex
			ddTrough = p.Timestamp
			ddTroughIdx = i
			ddEnd = p.Timestamp
		}
	}

	// Extend the drawdown's "end" forward to the first bar that recovers to
	// at least the prior peak, or the series end if it never does.
	if maxDD > 0 {
		recovered := equity[len(equity)-1].Timestamp
		peak := equity[ddStartIdx].Equity
		for i := ddTroughIdx; i < len(equity); i++ {
			if equity[i].Equity >= peak {
				recovered = equity[i].Timestamp
				break
			}
		}
		ddEnd = recovered
	}

	return DrawdownStats{
		MaxDrawdown:  maxDD,
		Start:        ddStart,
		Trough:       ddTrough,
		End:          ddEnd,
		DurationBars: ddTroughIdx - ddStartIdx,
	}
}

// fifoLot is one unclosed buy lot in the FIFO trade-pairing queue.
type fifoLot struct {
	qty        float64
	price      float64
	commission float64
}

// fifoTracker pairs buys and sells FIFO, per symbol, to attribute realized
// PnL to closed round-trips for win-rate and profit/loss-ratio purposes.
// Grounded on the teacher's PositionTracker, trimmed to the long-only
// subset since shorting is out of scope.
type fifoTracker struct {
	open map[string][]fifoLot

	wins   []float64
	losses []float64

	openCount  int
	closeCount int
}

func newFIFOTracker() *fifoTracker {
	return &fifoTracker{open: make(map[string][]fifoLot)}
}

func (t *fifoTracker) apply(fill strategy.Fill) {
	switch fill.Side {
	case strategy.SideBuy:
		t.open[fill.Symbol] = append(t.open[fill.Symbol], fifoLot{
			qty:        fill.Quantity,
			price:      fill.Price,
			commission: fill.Commission,
		})
		t.openCount++
	case strategy.SideSell:
		t.closeSell(fill)
	}
}

func (t *fifoTracker) closeSell(fill strategy.Fill) {
	remaining := fill.Quantity
	lots := t.open[fill.Symbol]
	sellCommission := fill.Commission
	sellStampTax := fill.StampTax

	for remaining > 1e-9 && len(lots) > 0 {
		lot := &lots[0]
		qty := math.Min(lot.qty, remaining)

		buyCost := lot.price * qty
		sellProceeds := fill.Price * qty
		feeShare := (sellCommission + sellStampTax) * (qty / fill.Quantity)
		pnl := sellProceeds - buyCost - feeShare

		if pnl >= 0 {
			t.wins = append(t.wins, pnl)
		} else {
			t.losses = append(t.losses, -pnl)
		}
		t.closeCount++

		lot.qty -= qty
		remaining -= qty
		if lot.qty <= 1e-9 {
			lots = lots[1:]
		}
	}
	t.open[fill.Symbol] = lots
}

func (t *fifoTracker) winRate() float64 {
	total := len(t.wins) + len(t.losses)
	if total == 0 {
		return 0
	}
	return float64(len(t.wins)) / float64(total)
}

func (t *fifoTracker) profitLossRatio() float64 {
	if len(t.wins) == 0 || len(t.losses) == 0 {
		return 0
	}
	avgWin := mean(t.wins)
	avgLoss := mean(t.losses)
	if avgLoss <= 1e-9 {
		return 0
	}
	return avgWin / avgLoss
}
