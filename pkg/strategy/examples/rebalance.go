package examples

import (
	"time"

	"github.com/ridopark/benchtrade/pkg/strategy"
)

// RebalanceStrategy holds an equal-weight basket of symbols, rebalancing to
// target weights on the first trading day of each period recognized by the
// engine's calendar. Any held symbol outside the basket is driven to a zero
// target weight so it gets sold off.
type RebalanceStrategy struct {
	strategy.NoopStrategy
	Symbols   []string
	Frequency string // "daily", "weekly", or "monthly"
}

func NewRebalanceStrategy(symbols []string, frequency string) *RebalanceStrategy {
	return &RebalanceStrategy{
		Symbols:   symbols,
		Frequency: frequency,
	}
}

func (s *RebalanceStrategy) OnStart(ctx strategy.Context) error {
	ctx.State()["last_rebalance"] = time.Time{}
	ctx.Log("info", "rebalance strategy initialized", map[string]interface{}{
		"symbols":   s.Symbols,
		"frequency": s.Frequency,
	})
	return nil
}

func (s *RebalanceStrategy) OnBar(ctx strategy.Context) error {
	if len(s.Symbols) == 0 {
		return nil
	}

	current := ctx.Datetime()
	state := ctx.State()
	last, _ := state["last_rebalance"].(time.Time)

	if !ctx.Calendar().IsRebalanceDay(s.Frequency, current, last) {
		return nil
	}

	if ctx.Equity() <= 0 {
		return nil
	}

	weight := 1.0 / float64(len(s.Symbols))
	targets := make(map[string]float64, len(s.Symbols))
	for _, symbol := range s.Symbols {
		targets[symbol] = weight
	}
	for symbol := range ctx.Positions() {
		if _, wanted := targets[symbol]; !wanted {
			targets[symbol] = 0.0
		}
	}

	if err := ctx.Order().Target(targets); err != nil {
		ctx.Log("warn", "rebalance target order rejected", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	state["last_rebalance"] = current
	ctx.Log("info", "rebalance executed", map[string]interface{}{
		"datetime": current,
		"targets":  targets,
		"equity":   ctx.Equity(),
	})
	return nil
}
