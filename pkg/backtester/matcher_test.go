package backtester

import (
	"testing"
	"time"

	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoBarStore(t *testing.T, symbol string, closeT0, openT1 float64) (*BarStore, time.Time, time.Time) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.AddDate(0, 0, 1)
	store := NewBarStore(time.Time{}, time.Time{})
	bars := []strategy.Bar{
		{Symbol: symbol, Timestamp: t0, Open: closeT0, High: closeT0 + 1, Low: closeT0 - 1, Close: closeT0, Volume: 1},
		{Symbol: symbol, Timestamp: t1, Open: openT1, High: openT1 + 1, Low: openT1 - 1, Close: openT1, Volume: 1},
	}
	require.NoError(t, store.AddMarketData(symbol, bars))
	return store, t0, t1
}

// Scenario A: single-bar all-cash buy at weight=1.0, filled at next bar's open.
func TestScenarioA_SingleBarAllCashBuy(t *testing.T) {
	store, t0, t1 := twoBarStore(t, "T", 10, 10)
	cfg := Config{Cash: 10000, CommissionRate: 0, MinCommission: 0, SlippageBps: 0, StampTaxRate: 0, LotSize: 100}
	portfolio := NewPortfolio(cfg.Cash)
	matcher := NewMatcher(cfg)

	intents := []Intent{{Symbol: "T", QtyType: strategy.QuantityWeight, Quantity: 1.0, BarIndex: 0, Timestamp: t0}}
	fills := matcher.Settle(intents, store, portfolio, 0, t0, t1, true)

	require.Len(t, fills, 1)
	assert.Equal(t, t1, fills[0].Timestamp)
	assert.InDelta(t, 10.0, fills[0].Price, 1e-9)
	assert.InDelta(t, 1000.0, fills[0].Quantity, 1e-9)
	assert.InDelta(t, 0.0, portfolio.Cash(), 1e-6)

	pos, ok := portfolio.PositionFor("T")
	require.True(t, ok)
	assert.InDelta(t, 1000.0, pos.Qty, 1e-9)
	assert.InDelta(t, 0.0, pos.AvailableQty, 1e-9)
}

// Scenario B: T+1 lockout - a sell submitted the bar after the buy is
// rejected because the bought shares aren't available yet.
func TestScenarioB_T1Lockout(t *testing.T) {
	store, t0, t1 := twoBarStore(t, "T", 10, 10)
	cfg := Config{Cash: 10000, CommissionRate: 0, MinCommission: 0, SlippageBps: 0, StampTaxRate: 0, LotSize: 100}
	portfolio := NewPortfolio(cfg.Cash)
	matcher := NewMatcher(cfg)

	buyIntents := []Intent{{Symbol: "T", QtyType: strategy.QuantityWeight, Quantity: 1.0, BarIndex: 0, Timestamp: t0}}
	matcher.Settle(buyIntents, store, portfolio, 0, t0, t1, true)
	cashAfterBuy := portfolio.Cash()

	portfolio.RefreshAvailability(1)

	sellIntents := []Intent{{Symbol: "T", Side: strategy.SideSell, QtyType: strategy.QuantityCount, Quantity: 1000, BarIndex: 1, Timestamp: t1}}
	fills := matcher.Settle(sellIntents, store, portfolio, 1, t1, time.Time{}, false)

	assert.Empty(t, fills, "sell must be rejected while shares are still T+1-locked")
	assert.InDelta(t, cashAfterBuy, portfolio.Cash(), 1e-9)
	require.Len(t, portfolio.Rejections(), 1)
	assert.Equal(t, RejectionInsufficientShares, portfolio.Rejections()[0].Reason)
}

// Scenario C: slippage and commission applied to a weight-target buy.
func TestScenarioC_SlippageAndCommission(t *testing.T) {
	store, t0, t1 := twoBarStore(t, "T", 100, 100)
	cfg := Config{Cash: 100000, CommissionRate: 0.001, MinCommission: 0, SlippageBps: 10, StampTaxRate: 0, LotSize: 100}
	portfolio := NewPortfolio(cfg.Cash)
	matcher := NewMatcher(cfg)

	intents := []Intent{{Symbol: "T", QtyType: strategy.QuantityWeight, Quantity: 1.0, BarIndex: 0, Timestamp: t0}}
	fills := matcher.Settle(intents, store, portfolio, 0, t0, t1, true)

	require.Len(t, fills, 1)
	assert.InDelta(t, 100.1, fills[0].Price, 1e-9)
	assert.InDelta(t, 900.0, fills[0].Quantity, 1e-9)
	assert.InDelta(t, 90.09, fills[0].Commission, 1e-6)
	assert.InDelta(t, 9819.91, portfolio.Cash(), 1e-2)
}

// Scenario D: stamp tax applies only on the sell side.
func TestScenarioD_StampTaxOnSell(t *testing.T) {
	store, t0, t1 := twoBarStore(t, "T", 12, 12)
	// Start with exactly the cash the 1000@10 position costs, so cash is 0
	// once it is held and the final cash equals the sell proceeds.
	cfg := Config{Cash: 10000, CommissionRate: 0, MinCommission: 0, SlippageBps: 0, StampTaxRate: 0.001, LotSize: 100}
	portfolio := NewPortfolio(cfg.Cash)
	portfolio.ApplyBuy("T", 1000, 10, 0, -1, true)
	matcher := NewMatcher(cfg)

	intents := []Intent{{Symbol: "T", Side: strategy.SideSell, QtyType: strategy.QuantityCount, Quantity: 1000, BarIndex: 0, Timestamp: t0}}
	fills := matcher.Settle(intents, store, portfolio, 0, t0, t1, true)

	require.Len(t, fills, 1)
	assert.InDelta(t, 12.0, fills[0].StampTax/fills[0].Quantity*1000, 1e-6)
	assert.InDelta(t, 11988.0, portfolio.Cash(), 1e-6)
}

// Scenario E: equal-weight rebalance across three symbols with no fees.
func TestScenarioE_EqualWeightRebalance(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.AddDate(0, 0, 1)
	store := NewBarStore(time.Time{}, time.Time{})
	for _, symbol := range []string{"A", "B", "C"} {
		bars := []strategy.Bar{
			{Symbol: symbol, Timestamp: t0, Open: 10, High: 11, Low: 9, Close: 10, Volume: 1},
			{Symbol: symbol, Timestamp: t1, Open: 10, High: 11, Low: 9, Close: 10, Volume: 1},
		}
		require.NoError(t, store.AddMarketData(symbol, bars))
	}

	cfg := Config{Cash: 100000, CommissionRate: 0, MinCommission: 0, SlippageBps: 0, StampTaxRate: 0, LotSize: 100}
	portfolio := NewPortfolio(cfg.Cash)
	matcher := NewMatcher(cfg)

	weights := map[string]float64{"A": 1.0 / 3, "B": 1.0 / 3, "C": 1.0 / 3}
	var intents []Intent
	for symbol, w := range weights {
		intents = append(intents, Intent{Symbol: symbol, QtyType: strategy.QuantityWeight, Quantity: w, BarIndex: 0, Timestamp: t0})
	}
	fills := matcher.Settle(intents, store, portfolio, 0, t0, t1, true)
	require.Len(t, fills, 3)
	for _, fill := range fills {
		assert.InDelta(t, 3300.0, fill.Quantity, 1e-9)
	}
	assert.InDelta(t, 1000.0, portfolio.Cash(), 1e-6)
}

// Scenario F: max drawdown with start/trough timestamps.
func TestScenarioF_MaxDrawdown(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	values := []float64{100, 120, 90, 110, 80, 95}
	equity := make([]EquityPoint, len(values))
	for i, v := range values {
		equity[i] = EquityPoint{Timestamp: base.AddDate(0, 0, i), Equity: v}
	}

	dd := computeDrawdown(equity)
	assert.InDelta(t, 1.0/3.0, dd.MaxDrawdown, 1e-4)
	assert.Equal(t, base.AddDate(0, 0, 1), dd.Start)
	assert.Equal(t, base.AddDate(0, 0, 4), dd.Trough)
}

func TestWeightIntentSideResolvedFromTargetNotFromIntentSide(t *testing.T) {
	store, t0, t1 := twoBarStore(t, "T", 10, 10)
	cfg := Config{Cash: 0, CommissionRate: 0, MinCommission: 0, SlippageBps: 0, StampTaxRate: 0, LotSize: 100}
	portfolio := NewPortfolio(cfg.Cash)
	portfolio.ApplyBuy("T", 1000, 10, 0, -1, true)
	matcher := NewMatcher(cfg)

	// Side is left zero-valued (never SideSell) but target weight 0 should
	// still resolve to a sell of the full position.
	intents := []Intent{{Symbol: "T", QtyType: strategy.QuantityWeight, Quantity: 0.0, BarIndex: 0, Timestamp: t0}}
	fills := matcher.Settle(intents, store, portfolio, 0, t0, t1, true)

	require.Len(t, fills, 1)
	assert.Equal(t, strategy.SideSell, fills[0].Side)
}
