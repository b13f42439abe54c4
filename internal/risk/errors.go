package risk

import (
	"fmt"

	"legtracker/internal/strategy"
)

// IllegalStateError rejects an edit attempted against a leg status that
// forbids it. No mutation is attempted by the caller.
type IllegalStateError struct {
	LegKey string
	Status strategy.LegStatus
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("leg %s: edit not allowed in status %s", e.LegKey, e.Status)
}

// InvalidValueError rejects a non-numeric, negative or otherwise unusable
// submitted value.
type InvalidValueError struct {
	Field string
	Value float64
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: invalid value %v", e.Field, e.Value)
}

// OutOfBoundsError rejects a value on the wrong side of the entry price.
// EntryPrice is carried for user messaging.
type OutOfBoundsError struct {
	Field      string
	Side       strategy.Side
	EntryPrice float64
	Value      float64
	Rule       string
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%s: %v violates %s for %s leg (entry %v)",
		e.Field, e.Value, e.Rule, e.Side, e.EntryPrice)
}
