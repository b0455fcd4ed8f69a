package backtester

import (
	"time"

	"github.com/ridopark/benchtrade/pkg/logging"
	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/rs/zerolog"
)

// strategyContext is the per-bar snapshot handed to the strategy. It caches
// cash/equity/positions/bars for the duration of one bar and invalidates on
// the next bar boundary — grounded on the teacher's StrategyContext, which
// cached indicator reads inside the engine for the same reason: cheap
// repeated access within a bar, and a stable read even if the strategy
// calls an accessor more than once.
type strategyContext struct {
	engine *Engine

	cashCache     float64
	equityCache   float64
	positionCache map[string]strategy.PositionView
	barsCache     map[string]strategy.Bar
	warm          bool

	order    orderHelper
	calendar calendar
	logger   zerolog.Logger
}

func newStrategyContext(e *Engine) *strategyContext {
	return &strategyContext{
		engine: e,
		order:  orderHelper{engine: e},
		logger: logging.GetLogger("strategy"),
	}
}

// invalidate drops the cached bar snapshot; called by the engine at the
// start of every bar, before on_bar runs.
func (c *strategyContext) invalidate() {
	c.warm = false
}

func (c *strategyContext) ensureCache() {
	if c.warm {
		return
	}
	marks := make(map[string]float64, len(c.engine.portfolio.Positions()))
	bars := make(map[string]strategy.Bar, len(c.engine.store.series))
	now := c.engine.timeline.CurrentTimestamp()
	for _, symbol := range c.engine.store.Symbols() {
		if bar, ok := c.engine.store.BarAt(symbol, now); ok {
			bars[symbol] = bar
			marks[symbol] = bar.Close
		} else if close, ok := c.engine.store.LastKnownClose(symbol, now); ok {
			marks[symbol] = close
		}
	}

	equity := c.engine.portfolio.Equity(marks)
	positions := make(map[string]strategy.PositionView, len(c.engine.portfolio.Positions()))
	for symbol, pos := range c.engine.portfolio.Positions() {
		mark := marks[symbol]
		positions[symbol] = pos.toView(mark, equity)
	}

	c.cashCache = c.engine.portfolio.Cash()
	c.equityCache = equity
	c.positionCache = positions
	c.barsCache = bars
	c.warm = true
}

func (c *strategyContext) Datetime() time.Time {
	return c.engine.timeline.CurrentTimestamp()
}

func (c *strategyContext) Symbols() []string {
	return c.engine.store.Symbols()
}

func (c *strategyContext) Cash() float64 {
	c.ensureCache()
	return c.cashCache
}

func (c *strategyContext) Equity() float64 {
	c.ensureCache()
	return c.equityCache
}

func (c *strategyContext) Positions() map[string]strategy.PositionView {
	c.ensureCache()
	return c.positionCache
}

func (c *strategyContext) Bars() map[string]strategy.Bar {
	c.ensureCache()
	return c.barsCache
}

func (c *strategyContext) State() map[string]interface{} {
	return c.engine.state
}

func (c *strategyContext) GetBars(symbol string, count int) []strategy.Bar {
	return c.engine.store.GetBars(symbol, count, c.engine.timeline.CurrentTimestamp())
}

func (c *strategyContext) GetIndicatorValue(name, symbol string, count int) []*float64 {
	return c.engine.indicators.GetValue(name, symbol, count, c.engine.timeline.CurrentTimestamp(), c.engine.store)
}

func (c *strategyContext) GetIndicatorValues(symbol string, names []string) map[string]*float64 {
	return c.engine.indicators.GetValues(symbol, names, c.engine.timeline.CurrentTimestamp(), c.engine.store)
}

func (c *strategyContext) RegisterIndicator(name string, kind strategy.IndicatorKind, params map[string]interface{}, lookback int) error {
	return c.engine.indicators.RegisterIndicator(name, kind, params, lookback)
}

func (c *strategyContext) RegisterCustomIndicator(name string, fn strategy.CustomIndicatorFunc, lookback int) error {
	return c.engine.indicators.RegisterCustomIndicator(name, fn, lookback)
}

func (c *strategyContext) IsTradable(symbol string) bool {
	_, ok := c.engine.store.series[symbol]
	return ok
}

func (c *strategyContext) Calendar() strategy.Calendar {
	return c.calendar
}

func (c *strategyContext) Order() strategy.OrderHelper {
	return &c.order
}

func (c *strategyContext) Log(level string, message string, fields map[string]interface{}) {
	event := c.logWithLevel(level)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (c *strategyContext) logWithLevel(level string) *zerolog.Event {
	switch level {
	case "debug":
		return c.logger.Debug()
	case "warn", "warning":
		return c.logger.Warn()
	case "error":
		return c.logger.Error()
	default:
		return c.logger.Info()
	}
}

// orderHelper forwards strategy intents to the order book, stamping each
// with the bar index and timestamp they were submitted during.
type orderHelper struct {
	engine *Engine
}

func (o *orderHelper) Buy(symbol string, quantity float64) error {
	return o.engine.orderBook.AddOrder(symbol, strategy.SideBuy, quantity, o.engine.timeline.CurrentIndex(), o.engine.timeline.CurrentTimestamp())
}

func (o *orderHelper) Sell(symbol string, quantity float64) error {
	return o.engine.orderBook.AddOrder(symbol, strategy.SideSell, quantity, o.engine.timeline.CurrentIndex(), o.engine.timeline.CurrentTimestamp())
}

func (o *orderHelper) Target(weights map[string]float64) error {
	return o.engine.orderBook.Target(weights, o.engine.timeline.CurrentIndex(), o.engine.timeline.CurrentTimestamp())
}
