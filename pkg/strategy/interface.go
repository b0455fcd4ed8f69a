// Package strategy defines the contract between the backtesting engine and
// user-supplied trading strategies: the data types crossing that boundary
// (Bar, Fill, PositionView), the Context surface a strategy reads each bar,
// and the capability interfaces a strategy implements.
package strategy

import "time"

// Bar is one OHLCV observation for one symbol at one timestamp.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// OrderSide is the side of an order intent or fill.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// QuantityType distinguishes a literal share count from a target-weight
// intent that the matcher resolves into a buy or sell of the difference.
type QuantityType string

const (
	QuantityCount  QuantityType = "count"
	QuantityWeight QuantityType = "weight"
)

// Fill is a completed trade emitted by the matcher and appended to the trade log.
type Fill struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Quantity   float64
	Price      float64
	Commission float64
	StampTax   float64
	Timestamp  time.Time
}

// PositionView is the read-only position snapshot exposed through Context.
type PositionView struct {
	Symbol    string
	Qty       float64
	Available float64
	Weight    float64
	AvgCost   float64
}

// IndicatorKind enumerates the built-in indicator families plus an
// extensibility tag for a registered pure function.
type IndicatorKind string

const (
	KindSMA    IndicatorKind = "sma"
	KindRSI    IndicatorKind = "rsi"
	KindCustom IndicatorKind = "custom"
)

// CustomIndicatorFunc computes a scalar from the bars available up to and
// including the current index. The engine calls it once per index, in order.
type CustomIndicatorFunc func(bars []Bar) float64

// OrderHelper only enqueues intents; it never mutates account state directly.
type OrderHelper interface {
	Buy(symbol string, quantity float64) error
	Sell(symbol string, quantity float64) error
	// Target enqueues one weight-tagged intent per (symbol, target weight)
	// pair; the matcher converts it to a buy or sell of the difference.
	Target(weights map[string]float64) error
}

// Calendar signals rebalance days; it is an external collaborator the engine
// wires a concrete implementation of, not a core accounting concern.
type Calendar interface {
	IsRebalanceDay(frequency string, current, last time.Time) bool
}

// Context is the read-mostly snapshot the engine hands the strategy each
// bar. Accessors are cheap to call repeatedly within one bar — the engine
// caches the underlying reads and invalidates the cache at the next bar
// boundary. The strategy must not retain a Context across OnBar calls.
type Context interface {
	Datetime() time.Time
	Symbols() []string
	Cash() float64
	Equity() float64
	Positions() map[string]PositionView
	Bars() map[string]Bar
	// State is a freeform mapping the strategy owns across bars.
	State() map[string]interface{}

	GetBars(symbol string, count int) []Bar
	// GetIndicatorValue returns the last count values at or before the
	// current bar; an absent (not-yet-defined) entry is nil.
	GetIndicatorValue(name, symbol string, count int) []*float64
	GetIndicatorValues(symbol string, names []string) map[string]*float64
	// RegisterIndicator and RegisterCustomIndicator are only valid during OnStart.
	RegisterIndicator(name string, kind IndicatorKind, params map[string]interface{}, lookback int) error
	RegisterCustomIndicator(name string, fn CustomIndicatorFunc, lookback int) error
	IsTradable(symbol string) bool
	Calendar() Calendar
	Order() OrderHelper
	Log(level string, message string, fields map[string]interface{})
}

// Strategy is the one required callback. OnStart, OnTrade, and OnStop are
// optional capability interfaces below — implement only the ones needed;
// NoopStrategy supplies no-op defaults to embed.
type Strategy interface {
	OnBar(ctx Context) error
}

// Starter is an optional capability: called once before the main loop.
type Starter interface {
	OnStart(ctx Context) error
}

// TradeObserver is an optional capability: called once per fill, after the
// bar that produced it has finished settling.
type TradeObserver interface {
	OnTrade(ctx Context, fill Fill) error
}

// Stopper is an optional capability: called once after the main loop ends.
type Stopper interface {
	OnStop(ctx Context) error
}
