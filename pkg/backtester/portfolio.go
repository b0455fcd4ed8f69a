package backtester

import (
	"time"

	"github.com/ridopark/benchtrade/pkg/strategy"
)

// pendingLot is one buy fill's worth of shares, tracked separately from the
// position's fungible qty/available split only long enough to know which
// acquisition bar it came from — the T+1 release compares that bar index
// against the current one, not wall-clock time.
type pendingLot struct {
	qty      float64
	barIndex int
}

// Position is one symbol's holding. AvgCost already has buy-side commission
// folded in (amortized per share at the fill that created it), which is what
// makes the round-trip realized-PnL identity in invariant 8 land exactly —
// commission isn't double-counted as a separate fee term on the buy side.
type Position struct {
	Symbol       string
	Qty          float64
	AvailableQty float64
	AvgCost      float64
	pending      []pendingLot
}

func (p *Position) toView(markPrice, equity float64) strategy.PositionView {
	weight := 0.0
	if equity > 0 {
		weight = (p.Qty * markPrice) / equity
	}
	return strategy.PositionView{
		Symbol:    p.Symbol,
		Qty:       p.Qty,
		Available: p.AvailableQty,
		Weight:    weight,
		AvgCost:   p.AvgCost,
	}
}

// EquityPoint is one timestamped mark of total account value.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// Portfolio is the engine's sole owner of cash, positions, and the trade and
// equity histories. Grounded on the teacher's Portfolio (weighted-average
// cost tracking, equity curve accumulation) with short-selling branches
// dropped and T+1 per-lot tracking and buy-commission amortization added.
type Portfolio struct {
	cash        float64
	positions   map[string]*Position
	trades      []strategy.Fill
	rejections  []RejectionRecord
	equityCurve []EquityPoint
}

func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{
		cash:      initialCash,
		positions: make(map[string]*Position),
	}
}

func (p *Portfolio) Cash() float64 {
	return p.cash
}

// PositionFor returns the live position for symbol, or ok=false if none is held.
func (p *Portfolio) PositionFor(symbol string) (*Position, bool) {
	pos, ok := p.positions[symbol]
	return pos, ok
}

// Equity sums cash plus each held position marked at the supplied
// close-price map; a symbol with no entry in marks falls back to its
// avg_cost only if genuinely no close has ever been observed, which should
// not happen once a position exists.
func (p *Portfolio) Equity(marks map[string]float64) float64 {
	equity := p.cash
	for symbol, pos := range p.positions {
		mark, ok := marks[symbol]
		if !ok {
			mark = pos.AvgCost
		}
		equity += pos.Qty * mark
	}
	return equity
}

// Weight returns symbol's current fraction of equity, 0 if unheld.
func (p *Portfolio) Weight(symbol string, marks map[string]float64, equity float64) float64 {
	pos, ok := p.positions[symbol]
	if !ok || equity <= 0 {
		return 0
	}
	mark, ok := marks[symbol]
	if !ok {
		mark = pos.AvgCost
	}
	return (pos.Qty * mark) / equity
}

// ApplyBuy records a buy fill: cash decreases by trade value plus
// commission, the new lot is folded into the weighted-average cost (with
// its pro-rata commission amortized into the per-share cost basis), and the
// lot is parked as not-yet-available until barIndex's T+1 release, unless
// t0 exempts the symbol.
func (p *Portfolio) ApplyBuy(symbol string, qty, price, commission float64, barIndex int, t0 bool) {
	p.cash -= price*qty + commission

	pos, ok := p.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		p.positions[symbol] = pos
	}

	perShareCostBasis := price + commission/qty
	totalCostBefore := pos.AvgCost * pos.Qty
	totalCostAfter := totalCostBefore + perShareCostBasis*qty
	pos.Qty += qty
	pos.AvgCost = totalCostAfter / pos.Qty

	if t0 {
		pos.AvailableQty += qty
	} else {
		pos.pending = append(pos.pending, pendingLot{qty: qty, barIndex: barIndex})
	}
}

// ApplySell records a sell fill: cash increases by trade value net of
// commission and stamp tax, realized PnL follows the attribution policy
// (effective_price - avg_cost) * qty - commission - stamp_tax, and the
// position is pruned once qty returns to (within tolerance of) zero.
func (p *Portfolio) ApplySell(symbol string, qty, price, commission, stampTax float64) (realizedPnL float64) {
	pos, ok := p.positions[symbol]
	if !ok {
		return 0
	}
	proceeds := price*qty - commission - stampTax
	p.cash += proceeds
	realizedPnL = (price-pos.AvgCost)*qty - commission - stampTax

	pos.Qty -= qty
	pos.AvailableQty -= qty
	drainPendingSold(pos, qty)

	if pos.Qty <= 1e-9 {
		delete(p.positions, symbol)
	}
	return realizedPnL
}

// drainPendingSold reduces the oldest not-yet-T+1-released lots first; a
// sell can only ever consume available_qty, but once it does, the FIFO
// pending bucket needs to shrink too so RefreshAvailability doesn't later
// release more shares than remain.
func drainPendingSold(pos *Position, qty float64) {
	remaining := qty
	for remaining > 1e-9 && len(pos.pending) > 0 {
		lot := &pos.pending[0]
		if lot.qty <= remaining+1e-9 {
			remaining -= lot.qty
			pos.pending = pos.pending[1:]
			continue
		}
		lot.qty -= remaining
		remaining = 0
	}
}

// RefreshAvailability runs at the start of every bar, before on_bar: any
// pending lot acquired strictly before currentBarIndex is released into
// available_qty. This is the T+1 gate — shares bought during bar i become
// sellable starting at bar i+1, never within the same bar they were bought.
func (p *Portfolio) RefreshAvailability(currentBarIndex int) {
	for _, pos := range p.positions {
		kept := pos.pending[:0]
		for _, lot := range pos.pending {
			if lot.barIndex < currentBarIndex {
				pos.AvailableQty += lot.qty
			} else {
				kept = append(kept, lot)
			}
		}
		pos.pending = kept
	}
}

func (p *Portfolio) recordRejection(r RejectionRecord) {
	p.rejections = append(p.rejections, r)
}

func (p *Portfolio) Rejections() []RejectionRecord {
	return p.rejections
}

func (p *Portfolio) appendFill(f strategy.Fill) {
	p.trades = append(p.trades, f)
}

func (p *Portfolio) Trades() []strategy.Fill {
	return p.trades
}

func (p *Portfolio) Positions() map[string]*Position {
	return p.positions
}

// RecordEquity appends one equity-curve point, called once per bar after
// settlement completes.
func (p *Portfolio) RecordEquity(timestamp time.Time, equity float64) {
	p.equityCurve = append(p.equityCurve, EquityPoint{Timestamp: timestamp, Equity: equity})
}

func (p *Portfolio) EquityCurve() []EquityPoint {
	return p.equityCurve
}
