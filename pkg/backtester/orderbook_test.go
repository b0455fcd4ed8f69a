package backtester

import (
	"testing"
	"time"

	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBookAddOrderRejectsEmptySymbol(t *testing.T) {
	ob := NewOrderBook()
	err := ob.AddOrder("", strategy.SideBuy, 100, 0, time.Now())
	assert.Error(t, err)
}

func TestOrderBookAddOrderRejectsNonPositiveQuantity(t *testing.T) {
	ob := NewOrderBook()
	assert.Error(t, ob.AddOrder("T", strategy.SideBuy, 0, 0, time.Now()))
	assert.Error(t, ob.AddOrder("T", strategy.SideBuy, -10, 0, time.Now()))
}

func TestOrderBookAddOrderQueuesACountIntent(t *testing.T) {
	ob := NewOrderBook()
	ts := time.Now()
	require.NoError(t, ob.AddOrder("T", strategy.SideSell, 50, 3, ts))

	intents := ob.Drain()
	require.Len(t, intents, 1)
	assert.Equal(t, "T", intents[0].Symbol)
	assert.Equal(t, strategy.SideSell, intents[0].Side)
	assert.Equal(t, strategy.QuantityCount, intents[0].QtyType)
	assert.Equal(t, 50.0, intents[0].Quantity)
	assert.Equal(t, 3, intents[0].BarIndex)
	assert.Equal(t, ts, intents[0].Timestamp)
}

func TestOrderBookTargetRejectsNegativeWeight(t *testing.T) {
	ob := NewOrderBook()
	err := ob.Target(map[string]float64{"T": -0.1}, 0, time.Now())
	assert.Error(t, err)
}

func TestOrderBookTargetQueuesOneWeightIntentPerSymbol(t *testing.T) {
	ob := NewOrderBook()
	require.NoError(t, ob.Target(map[string]float64{"A": 0.5, "B": 0.5}, 0, time.Now()))

	intents := ob.Drain()
	require.Len(t, intents, 2)
	for _, intent := range intents {
		assert.Equal(t, strategy.QuantityWeight, intent.QtyType)
		assert.Equal(t, strategy.OrderSide(""), intent.Side, "weight intents leave Side unresolved")
	}
}

func TestOrderBookDrainEmptiesTheBook(t *testing.T) {
	ob := NewOrderBook()
	require.NoError(t, ob.AddOrder("T", strategy.SideBuy, 10, 0, time.Now()))
	require.Len(t, ob.Drain(), 1)
	assert.Empty(t, ob.Drain())
}
