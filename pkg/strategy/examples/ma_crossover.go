package examples

import (
	"github.com/ridopark/benchtrade/pkg/strategy"
)

// MovingAverageCrossoverStrategy trades symbols on the classic SMA crossover:
// buy when the short SMA crosses above the long SMA, sell the whole position
// when it crosses back below.
type MovingAverageCrossoverStrategy struct {
	strategy.NoopStrategy
	Symbols     []string
	ShortPeriod int
	LongPeriod  int

	prevShortAboveLong map[string]bool
	allocator          *strategy.CapitalAllocator
	shortName          string
	longName           string
}

func NewMovingAverageCrossoverStrategy(symbols []string, shortPeriod, longPeriod int) *MovingAverageCrossoverStrategy {
	if shortPeriod >= longPeriod {
		panic("short period must be less than long period")
	}

	allocConfig := strategy.DefaultAllocationConfig()
	allocConfig.Method = strategy.AllocateSequential
	allocConfig.PositionSize = 0.95
	allocConfig.MaxPositions = 3

	return &MovingAverageCrossoverStrategy{
		Symbols:            symbols,
		ShortPeriod:        shortPeriod,
		LongPeriod:         longPeriod,
		prevShortAboveLong: make(map[string]bool),
		allocator:          strategy.NewCapitalAllocator(allocConfig),
		shortName:          "ma_crossover_short",
		longName:           "ma_crossover_long",
	}
}

func (s *MovingAverageCrossoverStrategy) OnStart(ctx strategy.Context) error {
	if err := ctx.RegisterIndicator(s.shortName, strategy.KindSMA, map[string]interface{}{
		"period": s.ShortPeriod,
	}, s.ShortPeriod); err != nil {
		return err
	}
	return ctx.RegisterIndicator(s.longName, strategy.KindSMA, map[string]interface{}{
		"period": s.LongPeriod,
	}, s.LongPeriod)
}

func (s *MovingAverageCrossoverStrategy) OnBar(ctx strategy.Context) error {
	var signals []strategy.TradingSignal

	for _, symbol := range s.Symbols {
		bar, ok := ctx.Bars()[symbol]
		if !ok {
			continue
		}

		shortVals := ctx.GetIndicatorValue(s.shortName, symbol, 1)
		longVals := ctx.GetIndicatorValue(s.longName, symbol, 1)
		if len(shortVals) == 0 || len(longVals) == 0 || shortVals[0] == nil || longVals[0] == nil {
			continue
		}
		shortMA := *shortVals[0]
		longMA := *longVals[0]

		wasAbove, known := s.prevShortAboveLong[symbol]
		isAbove := shortMA > longMA
		s.prevShortAboveLong[symbol] = isAbove
		if !known {
			continue
		}

		pos, hasPosition := ctx.Positions()[symbol]

		// Bullish crossover: short MA crosses above long MA.
		if !wasAbove && isAbove && (!hasPosition || pos.Qty == 0) {
			confidence := clamp(0.5+((shortMA-longMA)/longMA)*10, 0.1, 1.0)
			signals = append(signals, MACrossoverSignal{
				Symbol:     symbol,
				Bar:        bar,
				SignalType: "bullish_crossover",
				Price:      bar.Close,
				ShortMA:    shortMA,
				LongMA:     longMA,
				Confidence: confidence,
				Priority:   confidence,
			})
			continue
		}

		// Bearish crossover: short MA crosses below long MA, exit if held.
		if wasAbove && !isAbove && hasPosition && pos.Qty > 0 {
			if err := ctx.Order().Sell(symbol, pos.Qty); err != nil {
				ctx.Log("warn", "bearish crossover exit rejected", map[string]interface{}{
					"symbol": symbol,
					"error":  err.Error(),
				})
				continue
			}
			ctx.Log("info", "bearish crossover exit", map[string]interface{}{
				"symbol":   symbol,
				"quantity": pos.Qty,
				"shortMA":  shortMA,
				"longMA":   longMA,
			})
		}
	}

	if len(signals) > 0 {
		s.allocator.Allocate(ctx, signals)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
