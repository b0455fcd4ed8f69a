package examples

import (
	"github.com/ridopark/benchtrade/pkg/strategy"
)

// MultiIndicatorStrategy combines RSI and SMA confirmation: it buys when
// price is oversold and trading above its trend SMA, and sells when either
// signal turns against an open position.
type MultiIndicatorStrategy struct {
	strategy.NoopStrategy
	Symbols       []string
	RSIPeriod     int
	SMAPeriod     int
	RSIOversold   float64
	RSIOverbought float64

	allocator *strategy.CapitalAllocator
	rsiName   string
	smaName   string
}

func NewMultiIndicatorStrategy(symbols []string) *MultiIndicatorStrategy {
	allocConfig := strategy.DefaultAllocationConfig()
	allocConfig.Method = strategy.AllocateByConfidence
	allocConfig.PositionSize = 0.95
	allocConfig.MaxPositions = 3

	return &MultiIndicatorStrategy{
		Symbols:       symbols,
		RSIPeriod:     14,
		SMAPeriod:     20,
		RSIOversold:   30,
		RSIOverbought: 70,
		allocator:     strategy.NewCapitalAllocator(allocConfig),
		rsiName:       "multi_indicator_rsi",
		smaName:       "multi_indicator_sma",
	}
}

func (s *MultiIndicatorStrategy) OnStart(ctx strategy.Context) error {
	if err := ctx.RegisterIndicator(s.rsiName, strategy.KindRSI, map[string]interface{}{
		"period": s.RSIPeriod,
	}, s.RSIPeriod+1); err != nil {
		return err
	}
	return ctx.RegisterIndicator(s.smaName, strategy.KindSMA, map[string]interface{}{
		"period": s.SMAPeriod,
	}, s.SMAPeriod)
}

func (s *MultiIndicatorStrategy) OnBar(ctx strategy.Context) error {
	var signals []strategy.TradingSignal

	for _, symbol := range s.Symbols {
		bar, ok := ctx.Bars()[symbol]
		if !ok {
			continue
		}

		indicators := ctx.GetIndicatorValues(symbol, []string{s.rsiName, s.smaName})
		rsiPtr := indicators[s.rsiName]
		smaPtr := indicators[s.smaName]
		if rsiPtr == nil || smaPtr == nil {
			continue
		}
		rsi := *rsiPtr
		sma := *smaPtr

		pos, hasPosition := ctx.Positions()[symbol]
		held := hasPosition && pos.Qty > 0

		if !held {
			confirmations := 0
			if rsi <= s.RSIOversold {
				confirmations++
			}
			if bar.Close > sma {
				confirmations++
			}
			if confirmations >= 2 {
				confidence := float64(confirmations) / 2.0
				signals = append(signals, MultiIndicatorSignal{
					Symbol:     symbol,
					Bar:        bar,
					SignalType: "buy",
					Price:      bar.Close,
					RSI:        rsi,
					SMA:        sma,
					Confidence: confidence,
					Priority:   confidence,
				})
			}
			continue
		}

		sell := rsi >= s.RSIOverbought || bar.Close < sma
		if sell {
			if err := ctx.Order().Sell(symbol, pos.Qty); err != nil {
				ctx.Log("warn", "multi-indicator exit rejected", map[string]interface{}{
					"symbol": symbol,
					"error":  err.Error(),
				})
				continue
			}
			ctx.Log("info", "multi-indicator exit", map[string]interface{}{
				"symbol":   symbol,
				"quantity": pos.Qty,
				"rsi":      rsi,
				"sma":      sma,
			})
		}
	}

	if len(signals) > 0 {
		s.allocator.Allocate(ctx, signals)
	}
	return nil
}
