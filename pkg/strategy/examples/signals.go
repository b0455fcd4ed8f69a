package examples

import (
	"github.com/ridopark/benchtrade/pkg/strategy"
)

// MACrossoverSignal implements strategy.TradingSignal for moving-average
// crossover entries.
type MACrossoverSignal struct {
	Symbol     string
	Bar        strategy.Bar
	SignalType string
	Price      float64
	ShortMA    float64
	LongMA     float64
	Confidence float64
	Priority   float64
}

func (s MACrossoverSignal) GetSymbol() string      { return s.Symbol }
func (s MACrossoverSignal) GetPrice() float64      { return s.Price }
func (s MACrossoverSignal) GetConfidence() float64 { return s.Confidence }
func (s MACrossoverSignal) GetSignalType() string  { return s.SignalType }
func (s MACrossoverSignal) GetBar() strategy.Bar   { return s.Bar }
func (s MACrossoverSignal) GetPriority() float64   { return s.Priority }

// MultiIndicatorSignal implements strategy.TradingSignal for combined
// SMA/RSI entries.
type MultiIndicatorSignal struct {
	Symbol     string
	Bar        strategy.Bar
	SignalType string
	Price      float64
	RSI        float64
	SMA        float64
	Confidence float64
	Priority   float64
}

func (s MultiIndicatorSignal) GetSymbol() string      { return s.Symbol }
func (s MultiIndicatorSignal) GetPrice() float64      { return s.Price }
func (s MultiIndicatorSignal) GetConfidence() float64 { return s.Confidence }
func (s MultiIndicatorSignal) GetSignalType() string  { return s.SignalType }
func (s MultiIndicatorSignal) GetBar() strategy.Bar   { return s.Bar }
func (s MultiIndicatorSignal) GetPriority() float64   { return s.Priority }
