// Package risk validates human-submitted stop-loss/target overrides and
// manual exits before any write is attempted. The rules are side- and
// type-aware and compared with decimal exactness: a wrong acceptance here
// moves real capital.
package risk

import (
	"math"

	"legtracker/internal/strategy"
)

// OverrideType selects which exit level an override edits.
type OverrideType string

const (
	OverrideStopLoss OverrideType = "sl_price"
	OverrideTarget   OverrideType = "target_price"
)

func (t OverrideType) Valid() bool {
	return t == OverrideStopLoss || t == OverrideTarget
}

// Epsilon under which a resubmitted value counts as unchanged and produces
// no write.
const Epsilon = 0.01

// Decision is the outcome of a successful validation.
type Decision int

const (
	// DecisionApply means the value passed all checks and should be written.
	DecisionApply Decision = iota
	// DecisionNoop means the value matches the current one within Epsilon;
	// accept silently, issue no write.
	DecisionNoop
)

// ValidateOverride checks a proposed SL/target value against the leg's
// status, side and entry price. The bound check is skipped (not failed)
// when the entry price is unknown. The returned Decision carries meaning
// only when err is nil; on error it is the zero Decision.
func ValidateOverride(leg *strategy.Leg, typ OverrideType, value float64) (Decision, error) {
	if leg == nil {
		return DecisionApply, &IllegalStateError{Status: "MISSING"}
	}
	if !leg.CanOverride() {
		return DecisionApply, &IllegalStateError{LegKey: leg.Key, Status: leg.Status}
	}
	if !typ.Valid() {
		return DecisionApply, &InvalidValueError{Field: string(typ), Value: value}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return DecisionApply, &InvalidValueError{Field: string(typ), Value: value}
	}

	current := leg.SLPrice
	if typ == OverrideTarget {
		current = leg.TargetPrice
	}
	if current != nil && decimalWithin(value, *current, Epsilon) {
		return DecisionNoop, nil
	}

	if leg.EntryPrice != nil {
		if err := checkBounds(leg, typ, value, *leg.EntryPrice); err != nil {
			return DecisionApply, err
		}
	}
	return DecisionApply, nil
}

// checkBounds enforces the side/type rule table:
//
//	sl_price     SELL  value > entry
//	sl_price     BUY   value < entry
//	target_price SELL  value < entry
//	target_price BUY   value > entry
func checkBounds(leg *strategy.Leg, typ OverrideType, value, entry float64) error {
	type bound struct {
		aboveEntry bool
		rule       string
	}
	var b bound
	switch {
	case typ == OverrideStopLoss && leg.Side == strategy.SideSell:
		b = bound{aboveEntry: true, rule: "stop-loss above entry"}
	case typ == OverrideStopLoss && leg.Side == strategy.SideBuy:
		b = bound{aboveEntry: false, rule: "stop-loss below entry"}
	case typ == OverrideTarget && leg.Side == strategy.SideSell:
		b = bound{aboveEntry: false, rule: "target below entry"}
	case typ == OverrideTarget && leg.Side == strategy.SideBuy:
		b = bound{aboveEntry: true, rule: "target above entry"}
	default:
		// Side unset: nothing to check against.
		return nil
	}
	ok := decimalGT(value, entry)
	if !b.aboveEntry {
		ok = decimalLT(value, entry)
	}
	if !ok {
		return &OutOfBoundsError{
			Field:      string(typ),
			Side:       leg.Side,
			EntryPrice: entry,
			Value:      value,
			Rule:       b.rule,
		}
	}
	return nil
}

// ValidateManualExit checks a human-submitted exit before it reaches the
// engine. TARGET_HIT must land on the profitable side of entry, SL_HIT on
// the loss side; STRATEGY_DONE accepts any price. Hedge exits validate like
// their base type.
func ValidateManualExit(leg *strategy.Leg, exitPrice float64, exitType strategy.ExitType) error {
	if leg == nil || !leg.CanManualExit() {
		status := strategy.LegStatus("MISSING")
		key := ""
		if leg != nil {
			status, key = leg.Status, leg.Key
		}
		return &IllegalStateError{LegKey: key, Status: status}
	}
	if !exitType.Valid() {
		return &InvalidValueError{Field: "exit_type", Value: exitPrice}
	}
	if math.IsNaN(exitPrice) || math.IsInf(exitPrice, 0) || exitPrice < 0 {
		return &InvalidValueError{Field: "exit_price", Value: exitPrice}
	}
	if leg.EntryPrice == nil || exitType == strategy.ExitStrategyDone {
		return nil
	}
	entry := *leg.EntryPrice

	profitable := false
	switch leg.Side {
	case strategy.SideBuy:
		profitable = decimalGT(exitPrice, entry)
	case strategy.SideSell:
		profitable = decimalLT(exitPrice, entry)
	default:
		return nil
	}

	wantProfit := exitType == strategy.ExitTargetHit || exitType == strategy.ExitHedgeTarget
	if profitable == wantProfit {
		return nil
	}
	rule := "exit on loss side of entry"
	if wantProfit {
		rule = "exit on profitable side of entry"
	}
	return &OutOfBoundsError{
		Field:      "exit_price",
		Side:       leg.Side,
		EntryPrice: entry,
		Value:      exitPrice,
		Rule:       rule,
	}
}
