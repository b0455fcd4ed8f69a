package backtester

import (
	"fmt"
	"time"
)

// ConfigError reports a bad configuration value, fatal before the run starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Reason)
}

// DataError reports malformed market data, fatal at load time.
type DataError struct {
	Symbol string
	Index  int
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error: symbol %s index %d: %s", e.Symbol, e.Index, e.Reason)
}

// StrategyError wraps an error returned from a strategy callback, fatal,
// carrying the bar at which it occurred. Panics are not recovered into it.
type StrategyError struct {
	BarIndex  int
	Timestamp time.Time
	Err       error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy error at bar %d (%s): %v", e.BarIndex, e.Timestamp.Format(time.RFC3339), e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// RejectionReason enumerates the non-fatal reasons an intent never becomes a Fill.
type RejectionReason string

const (
	RejectionUnknownSymbol      RejectionReason = "unknown_symbol"
	RejectionInsufficientCash   RejectionReason = "insufficient_cash"
	RejectionInsufficientShares RejectionReason = "insufficient_shares"
	RejectionZeroQuantity       RejectionReason = "zero_quantity_after_rounding"
	RejectionInvalidIntent      RejectionReason = "invalid_intent"
)

// RejectionRecord is appended to the rejection log instead of raising an error.
type RejectionRecord struct {
	BarIndex  int
	Timestamp time.Time
	Symbol    string
	Reason    RejectionReason
	Detail    string
}
