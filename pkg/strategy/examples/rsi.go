package examples

import (
	"github.com/ridopark/benchtrade/pkg/strategy"
)

// RSIStrategy buys when RSI drops to or below BuyLevel and no position is
// held, and sells the full position once RSI rises to or above SellLevel.
type RSIStrategy struct {
	strategy.NoopStrategy
	Symbols   []string
	RSIPeriod int
	BuyLevel  float64
	SellLevel float64
	PosSize   float64

	rsiName string
}

func NewRSIStrategy(symbols []string, rsiPeriod int, buyLevel, sellLevel, posSize float64) *RSIStrategy {
	return &RSIStrategy{
		Symbols:   symbols,
		RSIPeriod: rsiPeriod,
		BuyLevel:  buyLevel,
		SellLevel: sellLevel,
		PosSize:   posSize,
		rsiName:   "rsi_strategy_rsi",
	}
}

func (s *RSIStrategy) OnStart(ctx strategy.Context) error {
	return ctx.RegisterIndicator(s.rsiName, strategy.KindRSI, map[string]interface{}{
		"period": s.RSIPeriod,
	}, s.RSIPeriod+1)
}

func (s *RSIStrategy) OnBar(ctx strategy.Context) error {
	for _, symbol := range s.Symbols {
		bar, ok := ctx.Bars()[symbol]
		if !ok {
			continue
		}

		values := ctx.GetIndicatorValue(s.rsiName, symbol, 1)
		if len(values) == 0 || values[0] == nil {
			continue
		}
		rsi := *values[0]

		pos, hasPosition := ctx.Positions()[symbol]
		held := hasPosition && pos.Qty > 0

		if !held && rsi <= s.BuyLevel {
			cash := ctx.Cash()
			quantity := (cash * s.PosSize) / bar.Close
			if quantity <= 0 {
				continue
			}
			if err := ctx.Order().Buy(symbol, quantity); err != nil {
				ctx.Log("warn", "rsi buy rejected", map[string]interface{}{
					"symbol": symbol,
					"error":  err.Error(),
				})
				continue
			}
			ctx.Log("info", "rsi oversold entry", map[string]interface{}{
				"symbol":   symbol,
				"rsi":      rsi,
				"quantity": quantity,
			})
			continue
		}

		if held && rsi >= s.SellLevel {
			if err := ctx.Order().Sell(symbol, pos.Qty); err != nil {
				ctx.Log("warn", "rsi sell rejected", map[string]interface{}{
					"symbol": symbol,
					"error":  err.Error(),
				})
				continue
			}
			ctx.Log("info", "rsi overbought exit", map[string]interface{}{
				"symbol":   symbol,
				"rsi":      rsi,
				"quantity": pos.Qty,
			})
		}
	}
	return nil
}
