// Package examples holds sample strategies exercising the strategy.Context surface.
package examples

import (
	"github.com/ridopark/benchtrade/pkg/strategy"
)

// BuyAndHoldStrategy buys one symbol once, using 95% of starting cash, and
// never trades again.
type BuyAndHoldStrategy struct {
	strategy.NoopStrategy
	Symbol    string
	hasBought bool
}

func NewBuyAndHoldStrategy(symbol string) *BuyAndHoldStrategy {
	return &BuyAndHoldStrategy{Symbol: symbol}
}

func (s *BuyAndHoldStrategy) OnBar(ctx strategy.Context) error {
	if s.hasBought {
		return nil
	}
	bars := ctx.Bars()
	bar, ok := bars[s.Symbol]
	if !ok {
		return nil
	}
	cash := ctx.Cash()
	if cash <= 0 {
		return nil
	}
	quantity := (cash * 0.95) / bar.Close
	if quantity <= 0 {
		return nil
	}
	if err := ctx.Order().Buy(s.Symbol, quantity); err != nil {
		return err
	}
	s.hasBought = true
	ctx.Log("info", "buy and hold entry", map[string]interface{}{
		"symbol":   s.Symbol,
		"quantity": quantity,
		"price":    bar.Close,
	})
	return nil
}
