package backtester

import (
	"testing"
	"time"

	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBars(start time.Time, closes []float64) []strategy.Bar {
	bars := make([]strategy.Bar, len(closes))
	for i, c := range closes {
		bars[i] = strategy.Bar{
			Symbol:    "T",
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

func TestBarStoreGetBarsReturnsLastNAtOrBeforeTimestamp(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewBarStore(time.Time{}, time.Time{})
	require.NoError(t, store.AddMarketData("T", makeBars(start, []float64{10, 11, 12, 13, 14})))

	bars := store.GetBars("T", 3, start.AddDate(0, 0, 3))
	require.Len(t, bars, 3)
	assert.Equal(t, 11.0, bars[0].Close)
	assert.Equal(t, 13.0, bars[2].Close)
}

func TestBarStoreGetBarsReturnsFewerWhenNotEnoughHistory(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewBarStore(time.Time{}, time.Time{})
	require.NoError(t, store.AddMarketData("T", makeBars(start, []float64{10, 11})))

	bars := store.GetBars("T", 5, start)
	require.Len(t, bars, 1)
}

func TestBarStoreGetBarsEmptyBeforeFirstBar(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewBarStore(time.Time{}, time.Time{})
	require.NoError(t, store.AddMarketData("T", makeBars(start, []float64{10, 11})))

	bars := store.GetBars("T", 1, start.AddDate(0, 0, -1))
	assert.Empty(t, bars)
}

func TestBarStoreAddMarketDataRejectsNonMonotonicTimestamps(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewBarStore(time.Time{}, time.Time{})
	bars := []strategy.Bar{
		{Symbol: "T", Timestamp: start, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Symbol: "T", Timestamp: start, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}
	err := store.AddMarketData("T", bars)
	require.Error(t, err)
	var dataErr *DataError
	assert.ErrorAs(t, err, &dataErr)
}

func TestBarStoreAddMarketDataRejectsImpossibleOHLC(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewBarStore(time.Time{}, time.Time{})
	bars := []strategy.Bar{
		{Symbol: "T", Timestamp: start, Open: 10, High: 5, Low: 1, Close: 10, Volume: 1},
	}
	err := store.AddMarketData("T", bars)
	require.Error(t, err)
}

func TestBarStoreAddMarketDataAppliesWindowFilter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewBarStore(start.AddDate(0, 0, 1), start.AddDate(0, 0, 3))
	require.NoError(t, store.AddMarketData("T", makeBars(start, []float64{10, 11, 12, 13, 14})))

	bars := store.Bars("T")
	require.Len(t, bars, 3)
	assert.Equal(t, 11.0, bars[0].Close)
	assert.Equal(t, 13.0, bars[2].Close)
}
