package backtester

import (
	"math"
	"time"

	"github.com/ridopark/benchtrade/pkg/logging"
	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/rs/zerolog"
)

// Matcher turns one bar's worth of queued intents into fills against the
// portfolio, following the next-bar-open-with-current-close-fallback policy.
// Grounded on the commission/slippage shape of the teacher's Broker, with
// the randomized slippage noise model replaced by a deterministic bps
// adjustment so repeated runs over the same inputs match, and SEC-fee/FINRA-TAF
// line items dropped since nothing downstream names them.
type Matcher struct {
	cfg    Config
	fillID *idSequence
	logger zerolog.Logger
}

func NewMatcher(cfg Config) *Matcher {
	return &Matcher{
		cfg:    cfg,
		fillID: newIDSequence("FILL"),
		logger: logging.GetLogger("matcher"),
	}
}

// refPrice is the settlement reference price resolved once per bar: the
// next bar's open, or the current bar's close if this is the timeline's
// last bar.
type refPrice struct {
	price     float64
	timestamp time.Time
}

// resolveReference computes the settlement reference price for one symbol,
// branching on cfg.FillPolicy. The default, FillNextOpenOrCurrentClose,
// uses the benchmark timeline's next timestamp when one exists and falls
// back to the current bar's close at the timeline's tail.
// FillCurrentClose always settles at the current bar's close, never
// looking at the next bar even mid-timeline.
func (m *Matcher) resolveReference(store *BarStore, symbol string, currentClose float64, currentTimestamp time.Time, nextTimestamp time.Time, hasNext bool) refPrice {
	if m.cfg.FillPolicy == FillCurrentClose {
		return refPrice{price: currentClose, timestamp: currentTimestamp}
	}
	if hasNext {
		if price, ok := store.ReferencePrice(symbol, nextTimestamp, true); ok {
			return refPrice{price: price, timestamp: nextTimestamp}
		}
	}
	return refPrice{price: currentClose, timestamp: currentTimestamp}
}

// Settle resolves every queued intent against the portfolio, in submission
// order, and returns the fills produced. barIndex is the index of the bar
// the intents were submitted during; the T+1 acquisition marker is the bar
// the fill executes in (barIndex+1 for a next-bar-open fill).
func (m *Matcher) Settle(intents []Intent, store *BarStore, portfolio *Portfolio, barIndex int, currentTimestamp, nextTimestamp time.Time, hasNext bool) []strategy.Fill {
	fills := make([]strategy.Fill, 0, len(intents))
	for _, intent := range intents {
		fill, ok := m.settleOne(intent, store, portfolio, barIndex, currentTimestamp, nextTimestamp, hasNext)
		if ok {
			fills = append(fills, fill)
		}
	}
	return fills
}

func (m *Matcher) settleOne(intent Intent, store *BarStore, portfolio *Portfolio, barIndex int, currentTimestamp, nextTimestamp time.Time, hasNext bool) (strategy.Fill, bool) {
	if _, known := store.LastKnownClose(intent.Symbol, currentTimestamp); !known {
		portfolio.recordRejection(RejectionRecord{
			BarIndex: barIndex, Timestamp: currentTimestamp, Symbol: intent.Symbol,
			Reason: RejectionUnknownSymbol, Detail: "no bar data for symbol",
		})
		return strategy.Fill{}, false
	}
	currentClose, _ := store.LastKnownClose(intent.Symbol, currentTimestamp)
	ref := m.resolveReference(store, intent.Symbol, currentClose, currentTimestamp, nextTimestamp, hasNext)

	side, qty := m.resolveQuantity(intent, store, portfolio, ref.price)
	if qty <= 1e-9 {
		portfolio.recordRejection(RejectionRecord{
			BarIndex: barIndex, Timestamp: currentTimestamp, Symbol: intent.Symbol,
			Reason: RejectionZeroQuantity, Detail: "target quantity rounded to zero lots",
		})
		return strategy.Fill{}, false
	}

	sideSign := 1.0
	if side == strategy.SideSell {
		sideSign = -1.0
	}
	effectivePrice := ref.price * (1 + sideSign*m.cfg.SlippageBps/10_000)
	tradeValue := effectivePrice * qty
	commission := math.Max(m.cfg.MinCommission, tradeValue*m.cfg.CommissionRate)

	var stampTax float64
	if side == strategy.SideSell {
		stampTax = tradeValue * m.cfg.StampTaxRate
	}

	if side == strategy.SideBuy {
		required := tradeValue + commission
		if portfolio.Cash() < required-1e-9 {
			qty = m.fitBuyToCash(portfolio.Cash(), effectivePrice)
			if qty <= 1e-9 {
				portfolio.recordRejection(RejectionRecord{
					BarIndex: barIndex, Timestamp: currentTimestamp, Symbol: intent.Symbol,
					Reason: RejectionInsufficientCash, Detail: "no whole lot affordable",
				})
				return strategy.Fill{}, false
			}
			tradeValue = effectivePrice * qty
			commission = math.Max(m.cfg.MinCommission, tradeValue*m.cfg.CommissionRate)
		}
	} else {
		pos, ok := portfolio.PositionFor(intent.Symbol)
		available := 0.0
		if ok {
			available = pos.AvailableQty
		}
		if qty > available+1e-9 {
			qty = m.roundDownToLot(available)
			if qty <= 1e-9 {
				portfolio.recordRejection(RejectionRecord{
					BarIndex: barIndex, Timestamp: currentTimestamp, Symbol: intent.Symbol,
					Reason: RejectionInsufficientShares, Detail: "no available shares to sell",
				})
				return strategy.Fill{}, false
			}
			tradeValue = effectivePrice * qty
			commission = math.Max(m.cfg.MinCommission, tradeValue*m.cfg.CommissionRate)
			stampTax = tradeValue * m.cfg.StampTaxRate
		}
	}

	// The lot is tagged with the bar the fill actually executes in, not the
	// bar the intent was submitted in — next-bar-open fills execute one bar
	// later, and T+1 availability is measured from that execution bar.
	execBarIndex := barIndex
	if hasNext && m.cfg.FillPolicy != FillCurrentClose {
		execBarIndex = barIndex + 1
	}

	switch side {
	case strategy.SideBuy:
		portfolio.ApplyBuy(intent.Symbol, qty, effectivePrice, commission, execBarIndex, m.cfg.t0(intent.Symbol))
	case strategy.SideSell:
		portfolio.ApplySell(intent.Symbol, qty, effectivePrice, commission, stampTax)
	}

	fill := strategy.Fill{
		ID:         m.fillID.next(),
		Symbol:     intent.Symbol,
		Side:       side,
		Quantity:   qty,
		Price:      effectivePrice,
		Commission: commission,
		StampTax:   stampTax,
		Timestamp:  ref.timestamp,
	}
	portfolio.appendFill(fill)
	return fill, true
}

// resolveQuantity implements step 1 of the settlement algorithm: a literal
// count intent rounds down to the nearest lot; a weight intent compares
// target value against current value and resolves its own side — the
// intent's own Side field is never trusted for weight-typed intents.
func (m *Matcher) resolveQuantity(intent Intent, store *BarStore, portfolio *Portfolio, refPriceValue float64) (strategy.OrderSide, float64) {
	if intent.QtyType == strategy.QuantityCount {
		return intent.Side, m.roundDownToLot(intent.Quantity)
	}

	marks := m.markAll(store, portfolio, intent.Timestamp)
	equity := portfolio.Equity(marks)
	currentQty := 0.0
	if pos, ok := portfolio.PositionFor(intent.Symbol); ok {
		currentQty = pos.Qty
	}
	targetValue := intent.Quantity * equity
	currentValue := currentQty * refPriceValue
	deltaValue := targetValue - currentValue

	if deltaValue > 0 {
		denom := refPriceValue * (1 + m.cfg.SlippageBps/10_000)
		qty := m.roundDownToLot(deltaValue / denom)
		return strategy.SideBuy, qty
	}
	if deltaValue < 0 {
		qty := m.roundDownToLot(-deltaValue / refPriceValue)
		if pos, ok := portfolio.PositionFor(intent.Symbol); ok && qty > pos.AvailableQty {
			qty = m.roundDownToLot(pos.AvailableQty)
		}
		return strategy.SideSell, qty
	}
	return strategy.SideBuy, 0
}

func (m *Matcher) markAll(store *BarStore, portfolio *Portfolio, asOf time.Time) map[string]float64 {
	marks := make(map[string]float64)
	for symbol := range portfolio.Positions() {
		if close, ok := store.LastKnownClose(symbol, asOf); ok {
			marks[symbol] = close
		}
	}
	return marks
}

func (m *Matcher) roundDownToLot(qty float64) float64 {
	if m.cfg.LotSize <= 1 {
		return math.Floor(qty)
	}
	lots := math.Floor(qty / float64(m.cfg.LotSize))
	return lots * float64(m.cfg.LotSize)
}

// fitBuyToCash shrinks a buy to the largest whole-lot quantity whose trade
// value plus commission fits within available cash.
func (m *Matcher) fitBuyToCash(cash, effectivePrice float64) float64 {
	if effectivePrice <= 0 {
		return 0
	}
	lot := float64(m.cfg.LotSize)
	if lot < 1 {
		lot = 1
	}
	maxLots := math.Floor(cash / (effectivePrice * lot))
	for maxLots > 0 {
		qty := maxLots * lot
		tradeValue := effectivePrice * qty
		commission := math.Max(m.cfg.MinCommission, tradeValue*m.cfg.CommissionRate)
		if tradeValue+commission <= cash+1e-9 {
			return qty
		}
		maxLots--
	}
	return 0
}
