package backtester

import (
	"fmt"
	"time"

	"github.com/ridopark/benchtrade/pkg/logging"
	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/rs/zerolog"
)

// Engine owns every piece of run state and drives the bar-by-bar main loop.
// Grounded on the teacher's Engine (same field grouping: strategy, data
// source, execution, portfolio, results), rebuilt around a pre-loaded
// BarStore/Timeline pair instead of a pull-based feed, since the new design
// owns its own bars rather than pulling one at a time through a feed.
type Engine struct {
	cfg        Config
	strategy   strategy.Strategy
	store      *BarStore
	timeline   *Timeline
	indicators *IndicatorRegistry
	orderBook  *OrderBook
	matcher    *Matcher
	portfolio  *Portfolio
	state      map[string]interface{}
	ctx        *strategyContext
	logger     zerolog.Logger
}

// NewEngine wires every component together. cfg is validated before any
// other construction happens.
func NewEngine(cfg Config, s strategy.Strategy) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:        cfg,
		strategy:   s,
		store:      NewBarStore(cfg.Start, cfg.End),
		indicators: NewIndicatorRegistry(),
		orderBook:  NewOrderBook(),
		matcher:    NewMatcher(cfg),
		portfolio:  NewPortfolio(cfg.Cash),
		state:      make(map[string]interface{}),
		logger:     logging.GetLogger("engine"),
	}
	e.ctx = newStrategyContext(e)
	return e, nil
}

// AddMarketData loads one symbol's bars into the store. Call for every
// symbol before Run.
func (e *Engine) AddMarketData(symbol string, bars []strategy.Bar) error {
	return e.store.AddMarketData(symbol, bars)
}

// SetBenchmark fixes the timeline the main loop walks. Call after all
// symbols have been loaded and before Run.
func (e *Engine) SetBenchmark(timestamps []time.Time) error {
	timeline, err := NewTimeline(timestamps)
	if err != nil {
		return err
	}
	e.timeline = timeline
	return nil
}

// Result is the run's output: final statistics, the equity curve, and the
// trade log.
type Result struct {
	Stats       Stats
	EquityCurve []EquityPoint
	Trades      []strategy.Fill
	Rejections  []RejectionRecord
}

// Run executes the main loop to completion: refresh T+1 availability,
// snapshot context, call on_bar, settle intents, call on_trade per fill,
// record equity, advance. Panics from the strategy are not recovered — a
// strategy exception aborts the run, per the error-handling design.
func (e *Engine) Run(benchmarkCloses []strategy.Bar) (Result, error) {
	if e.timeline == nil {
		return Result{}, &ConfigError{Field: "benchmark", Reason: "SetBenchmark must be called before Run"}
	}

	if starter, ok := e.strategy.(strategy.Starter); ok {
		if err := starter.OnStart(e.ctx); err != nil {
			return Result{}, &StrategyError{BarIndex: -1, Err: err}
		}
	}
	e.indicators.Precompute(e.store)
	e.timeline.Reset()

	for e.timeline.HasNext() {
		barIndex := e.timeline.CurrentIndex()
		currentTimestamp := e.timeline.CurrentTimestamp()

		e.portfolio.RefreshAvailability(barIndex)
		e.ctx.invalidate()

		if err := e.strategy.OnBar(e.ctx); err != nil {
			return Result{}, &StrategyError{BarIndex: barIndex, Timestamp: currentTimestamp, Err: err}
		}

		intents := e.orderBook.Drain()
		nextTimestamp, hasNext := e.timeline.PeekNext()
		fills := e.matcher.Settle(intents, e.store, e.portfolio, barIndex, currentTimestamp, nextTimestamp, hasNext)

		if observer, ok := e.strategy.(strategy.TradeObserver); ok {
			for _, fill := range fills {
				if err := observer.OnTrade(e.ctx, fill); err != nil {
					return Result{}, &StrategyError{BarIndex: barIndex, Timestamp: currentTimestamp, Err: err}
				}
			}
		}

		e.recordEquity(currentTimestamp)
		e.timeline.Advance()
	}

	if stopper, ok := e.strategy.(strategy.Stopper); ok {
		if err := stopper.OnStop(e.ctx); err != nil {
			return Result{}, &StrategyError{BarIndex: e.timeline.Len(), Err: err}
		}
	}

	stats := ComputeStats(e.portfolio.EquityCurve(), e.portfolio.Trades(), benchmarkCloses, e.cfg)
	return Result{
		Stats:       stats,
		EquityCurve: e.portfolio.EquityCurve(),
		Trades:      e.portfolio.Trades(),
		Rejections:  e.portfolio.Rejections(),
	}, nil
}

// recordEquity marks every held position at the current bar's close (or
// last known close if the symbol has no bar at this exact timestamp) and
// appends one equity-curve point.
func (e *Engine) recordEquity(currentTimestamp time.Time) {
	marks := make(map[string]float64, len(e.portfolio.Positions()))
	for symbol := range e.portfolio.Positions() {
		if close, ok := e.store.LastKnownClose(symbol, currentTimestamp); ok {
			marks[symbol] = close
		}
	}
	equity := e.portfolio.Equity(marks)
	e.portfolio.RecordEquity(currentTimestamp, equity)
}

func (e *Engine) String() string {
	return fmt.Sprintf("Engine{symbols=%d, bars=%d}", len(e.store.Symbols()), e.timeline.Len())
}
