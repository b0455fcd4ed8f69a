package backtester

import (
	"testing"
	"time"

	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSMAUndefinedBeforePeriod(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := makeBars(start, []float64{10, 20, 30, 40, 50})

	values := computeSMA(bars, 3)
	require.Len(t, values, 5)
	assert.Nil(t, values[0])
	assert.Nil(t, values[1])
	require.NotNil(t, values[2])
	assert.InDelta(t, 20.0, *values[2], 1e-9)
	require.NotNil(t, values[4])
	assert.InDelta(t, 40.0, *values[4], 1e-9)
}

func TestComputeRSIUndefinedThroughSeedIndex(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{44, 44.34, 44.09, 44.15, 44.29, 44.05, 44.07}
	bars := makeBars(start, closes)

	values := computeRSI(bars, 3)
	require.Len(t, values, len(closes))
	for i := 0; i <= 3; i++ {
		assert.Nil(t, values[i], "index %d should be undefined (i<=P)", i)
	}
	assert.NotNil(t, values[4])
}

func TestComputeRSIAllGainsSaturatesAtOneHundred(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := makeBars(start, []float64{10, 11, 12, 13, 14, 15})

	values := computeRSI(bars, 2)
	require.NotNil(t, values[3])
	assert.InDelta(t, 100.0, *values[3], 1e-9)
}

func TestIndicatorRegistryGetValueRoundsToFourDecimals(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewBarStore(time.Time{}, time.Time{})
	require.NoError(t, store.AddMarketData("T", makeBars(start, []float64{10, 20, 31, 5})))

	reg := NewIndicatorRegistry()
	require.NoError(t, reg.RegisterIndicator("sma3", strategy.KindSMA, map[string]interface{}{"period": 3}, 3))
	reg.Precompute(store)

	values := reg.GetValue("sma3", "T", 1, start.AddDate(0, 0, 2), store)
	require.Len(t, values, 1)
	require.NotNil(t, values[0])
	assert.Equal(t, 20.3333, *values[0])
}

func TestIndicatorRegistryGetValueAbsentForUnknownName(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewBarStore(time.Time{}, time.Time{})
	require.NoError(t, store.AddMarketData("T", makeBars(start, []float64{10, 11})))

	reg := NewIndicatorRegistry()
	reg.Precompute(store)
	assert.Nil(t, reg.GetValue("missing", "T", 1, start, store))
}

func TestComputeCustomCallsFnOncePerIndexInOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := makeBars(start, []float64{10, 20, 30})

	calls := 0
	fn := func(upTo []strategy.Bar) float64 {
		calls++
		return float64(len(upTo))
	}
	values := computeCustom(bars, fn)
	require.Len(t, values, 3)
	assert.Equal(t, 3, calls)
	assert.InDelta(t, 1.0, *values[0], 1e-9)
	assert.InDelta(t, 3.0, *values[2], 1e-9)
}
