package strategy

import (
	"math"
	"sort"
)

// TradingSignal represents a generic trading signal with priority and confidence.
type TradingSignal interface {
	GetSymbol() string
	GetPrice() float64
	GetConfidence() float64
	GetSignalType() string
	GetBar() Bar
	GetPriority() float64 // Higher values = higher priority
}

// AllocationMethod defines how capital should be allocated among signals.
type AllocationMethod string

const (
	AllocateEqually      AllocationMethod = "equal"
	AllocateByConfidence AllocationMethod = "confidence"
	AllocateByPriority   AllocationMethod = "priority"
	AllocateSequential   AllocationMethod = "sequential"
)

// AllocationConfig configures how capital allocation should work.
type AllocationConfig struct {
	Method          AllocationMethod
	MaxPositions    int     // Maximum number of positions to open simultaneously
	PositionSize    float64 // Base position size as a fraction of cash (0.0-1.0)
	MinCashBuffer   float64 // Minimum cash to keep available
	SlippageBuffer  float64 // Buffer for slippage/fees as a fraction
	AllowFractional bool    // Whether to allow fractional shares
}

// DefaultAllocationConfig returns a sensible default configuration.
func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		Method:          AllocateSequential,
		MaxPositions:    3,
		PositionSize:    0.95,
		MinCashBuffer:   100.0,
		SlippageBuffer:  0.02,
		AllowFractional: false,
	}
}

// CapitalAllocator handles capital allocation across multiple trading signals,
// enqueuing buy intents through the strategy's OrderHelper rather than
// constructing orders itself.
type CapitalAllocator struct {
	config AllocationConfig
}

func NewCapitalAllocator(config AllocationConfig) *CapitalAllocator {
	return &CapitalAllocator{config: config}
}

// Allocate enqueues buy intents for the given signals and returns how many
// orders were placed.
func (ca *CapitalAllocator) Allocate(ctx Context, signals []TradingSignal) int {
	if len(signals) == 0 {
		return 0
	}

	availableCash := ctx.Cash()
	if availableCash <= ca.config.MinCashBuffer {
		ctx.Log("warn", "insufficient cash for trading", map[string]interface{}{
			"available_cash": availableCash,
			"min_buffer":     ca.config.MinCashBuffer,
		})
		return 0
	}

	tradableCash := availableCash * (1.0 - ca.config.SlippageBuffer)
	if tradableCash < ca.config.MinCashBuffer {
		return 0
	}

	sorted := make([]TradingSignal, len(signals))
	copy(sorted, signals)
	ca.sortSignals(sorted)

	maxSignals := len(sorted)
	if ca.config.MaxPositions > 0 && maxSignals > ca.config.MaxPositions {
		maxSignals = ca.config.MaxPositions
	}
	sorted = sorted[:maxSignals]

	switch ca.config.Method {
	case AllocateEqually:
		return ca.allocateEqually(ctx, sorted, tradableCash)
	case AllocateByConfidence:
		return ca.allocateWeighted(ctx, sorted, tradableCash, TradingSignal.GetConfidence)
	case AllocateByPriority:
		return ca.allocateWeighted(ctx, sorted, tradableCash, TradingSignal.GetPriority)
	default:
		return ca.allocateSequential(ctx, sorted, tradableCash)
	}
}

func (ca *CapitalAllocator) sortSignals(signals []TradingSignal) {
	switch ca.config.Method {
	case AllocateByConfidence, AllocateSequential:
		sort.Slice(signals, func(i, j int) bool {
			if signals[i].GetConfidence() != signals[j].GetConfidence() {
				return signals[i].GetConfidence() > signals[j].GetConfidence()
			}
			return signals[i].GetPriority() > signals[j].GetPriority()
		})
	case AllocateByPriority:
		sort.Slice(signals, func(i, j int) bool {
			if signals[i].GetPriority() != signals[j].GetPriority() {
				return signals[i].GetPriority() > signals[j].GetPriority()
			}
			return signals[i].GetConfidence() > signals[j].GetConfidence()
		})
	}
}

func (ca *CapitalAllocator) allocateEqually(ctx Context, signals []TradingSignal, tradableCash float64) int {
	allocationPerSignal := (tradableCash * ca.config.PositionSize) / float64(len(signals))
	placed := 0
	for _, signal := range signals {
		if ca.place(ctx, signal, allocationPerSignal) {
			placed++
		}
	}
	return placed
}

func (ca *CapitalAllocator) allocateWeighted(ctx Context, signals []TradingSignal, tradableCash float64, weightOf func(TradingSignal) float64) int {
	total := 0.0
	for _, signal := range signals {
		total += weightOf(signal)
	}
	if total == 0 {
		return ca.allocateEqually(ctx, signals, tradableCash)
	}

	remainingCash := tradableCash * ca.config.PositionSize
	placed := 0
	for i, signal := range signals {
		if remainingCash <= ca.config.MinCashBuffer {
			break
		}
		var allocation float64
		if i == len(signals)-1 {
			allocation = remainingCash
		} else {
			allocation = math.Min(tradableCash*ca.config.PositionSize*weightOf(signal)/total, remainingCash)
		}
		cost := allocation
		if ca.place(ctx, signal, allocation) {
			remainingCash -= cost
			placed++
		}
	}
	return placed
}

func (ca *CapitalAllocator) allocateSequential(ctx Context, signals []TradingSignal, tradableCash float64) int {
	remainingCash := tradableCash
	placed := 0
	for _, signal := range signals {
		if remainingCash <= ca.config.MinCashBuffer {
			break
		}
		allocation := math.Min(ca.config.PositionSize, remainingCash/tradableCash) * remainingCash
		if ca.place(ctx, signal, allocation) {
			remainingCash -= allocation
			placed++
		}
	}
	return placed
}

func (ca *CapitalAllocator) place(ctx Context, signal TradingSignal, allocation float64) bool {
	quantity := ca.quantityFor(signal, allocation)
	if quantity <= 0 {
		return false
	}
	if err := ctx.Order().Buy(signal.GetSymbol(), quantity); err != nil {
		ctx.Log("warn", "order rejected during allocation", map[string]interface{}{
			"symbol": signal.GetSymbol(),
			"error":  err.Error(),
		})
		return false
	}
	ctx.Log("info", "allocation order placed", map[string]interface{}{
		"symbol":     signal.GetSymbol(),
		"quantity":   quantity,
		"price":      signal.GetPrice(),
		"confidence": signal.GetConfidence(),
		"reason":     signal.GetSignalType(),
	})
	return true
}

func (ca *CapitalAllocator) quantityFor(signal TradingSignal, allocation float64) float64 {
	if allocation <= 0 || signal.GetPrice() <= 0 {
		return 0
	}
	quantity := allocation / signal.GetPrice()
	if !ca.config.AllowFractional {
		quantity = math.Floor(quantity)
	}
	return math.Max(0, quantity)
}
