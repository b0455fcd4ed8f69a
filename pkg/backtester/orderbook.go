package backtester

import (
	"time"

	"github.com/ridopark/benchtrade/pkg/strategy"
)

// Intent is one order request queued during on_bar, to be resolved by the
// matcher at settlement time. Quantity is a literal share count when
// QtyType is QuantityCount, or a target portfolio weight in [0, 1] when
// QtyType is QuantityWeight — the matcher, not the strategy, decides the
// resulting side for weight intents.
type Intent struct {
	Symbol    string
	Side      strategy.OrderSide
	QtyType   strategy.QuantityType
	Quantity  float64
	BarIndex  int
	Timestamp time.Time
}

// OrderBook accumulates the current bar's intents. It never validates
// affordability or availability — that's the matcher's job once the
// settlement reference price is known; OrderBook only validates shape.
type OrderBook struct {
	pending []Intent
}

func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// AddOrder enqueues a literal-quantity buy or sell intent. A zero or
// negative quantity is rejected immediately rather than silently dropped.
func (ob *OrderBook) AddOrder(symbol string, side strategy.OrderSide, quantity float64, barIndex int, timestamp time.Time) error {
	if symbol == "" {
		return &ConfigError{Field: "symbol", Reason: "must not be empty"}
	}
	if quantity <= 0 {
		return &ConfigError{Field: "quantity", Reason: "must be positive"}
	}
	ob.pending = append(ob.pending, Intent{
		Symbol:    symbol,
		Side:      side,
		QtyType:   strategy.QuantityCount,
		Quantity:  quantity,
		BarIndex:  barIndex,
		Timestamp: timestamp,
	})
	return nil
}

// Target enqueues one weight-tagged intent per (symbol, weight) pair. Side
// is left zero-valued; the matcher resolves buy vs. sell by comparing the
// target weight against the symbol's current portfolio weight.
func (ob *OrderBook) Target(weights map[string]float64, barIndex int, timestamp time.Time) error {
	for symbol, weight := range weights {
		if symbol == "" {
			return &ConfigError{Field: "symbol", Reason: "must not be empty"}
		}
		if weight < 0 {
			return &ConfigError{Field: "weight", Reason: "must be non-negative"}
		}
		ob.pending = append(ob.pending, Intent{
			Symbol:    symbol,
			QtyType:   strategy.QuantityWeight,
			Quantity:  weight,
			BarIndex:  barIndex,
			Timestamp: timestamp,
		})
	}
	return nil
}

// Drain returns every queued intent and empties the book, called once per
// bar after on_bar returns and before settlement runs.
func (ob *OrderBook) Drain() []Intent {
	drained := ob.pending
	ob.pending = nil
	return drained
}
