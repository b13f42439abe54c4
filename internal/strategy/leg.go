package strategy

import (
	"strings"
	"time"
)

// Side is the direction of a leg's position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideNone Side = ""
)

// ParseSide normalizes engine-reported side strings. Unknown input maps to SideNone.
func ParseSide(raw string) Side {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY", "B":
		return SideBuy
	case "SELL", "S":
		return SideSell
	default:
		return SideNone
	}
}

// LegStatus is the engine-owned lifecycle state of a leg. The tracker never
// originates transitions; it only classifies and gates edits.
type LegStatus string

const (
	StatusIdle             LegStatus = "IDLE"
	StatusPendingEntry     LegStatus = "PENDING_ENTRY"
	StatusInPosition       LegStatus = "IN_POSITION"
	StatusPendingExit      LegStatus = "PENDING_EXIT"
	StatusDone             LegStatus = "DONE"
	StatusWaitingReentry   LegStatus = "EXITED_WAITING_REENTRY"
	StatusWaitingReexecute LegStatus = "EXITED_WAITING_REEXECUTE"
)

func (s LegStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusPendingEntry, StatusInPosition, StatusPendingExit,
		StatusDone, StatusWaitingReentry, StatusWaitingReexecute:
		return true
	}
	return false
}

// Bucket is the display classification of a leg status.
type Bucket int

const (
	BucketPending Bucket = iota
	BucketOpen
	BucketDone
)

func (b Bucket) String() string {
	switch b {
	case BucketOpen:
		return "open"
	case BucketDone:
		return "done"
	default:
		return "pending"
	}
}

// Bucket maps a status to its display bucket. Unknown statuses classify as
// pending so a malformed record never counts as an open position.
func (s LegStatus) Bucket() Bucket {
	switch s {
	case StatusInPosition, StatusPendingExit:
		return BucketOpen
	case StatusDone:
		return BucketDone
	default:
		return BucketPending
	}
}

// ExitType labels how an occurrence of a leg was closed.
type ExitType string

const (
	ExitSLHit        ExitType = "SL_HIT"
	ExitTargetHit    ExitType = "TARGET_HIT"
	ExitHedgeSL      ExitType = "HEDGE_SL_EXIT"
	ExitHedgeTarget  ExitType = "HEDGE_TARGET_EXIT"
	ExitStrategyDone ExitType = "STRATEGY_DONE"
)

func (e ExitType) Valid() bool {
	switch e {
	case ExitSLHit, ExitTargetHit, ExitHedgeSL, ExitHedgeTarget, ExitStrategyDone:
		return true
	}
	return false
}

// Leg is one tradable unit within a strategy instance. Optional fields are
// pointers: nil means the engine has not reported a value, which is distinct
// from zero everywhere in this package.
type Leg struct {
	Key      string `json:"leg_key"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Side     Side   `json:"side"`

	Quantity *float64  `json:"quantity,omitempty"`
	Status   LegStatus `json:"status"`

	EntryPrice *float64   `json:"entry_price,omitempty"`
	EntryTime  *time.Time `json:"entry_time,omitempty"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`

	SLPrice     *float64 `json:"sl_price,omitempty"`
	TargetPrice *float64 `json:"target_price,omitempty"`

	WaitBaselinePrice *float64 `json:"wait_baseline_price,omitempty"`
	WaitTradePercent  *float64 `json:"wait_trade_percent,omitempty"`
	WaitTriggerPrice  *float64 `json:"wait_trigger_price,omitempty"`

	IsMainLeg   bool   `json:"is_main_leg"`
	LegPairName string `json:"leg_pair_name,omitempty"`

	ReentryCount   int  `json:"reentry_count"`
	ReentryLimit   *int `json:"reentry_limit,omitempty"`
	ReexecuteCount int  `json:"reexecute_count"`
	ReexecuteLimit *int `json:"reexecute_limit,omitempty"`

	RealizedPnl *float64 `json:"realized_pnl,omitempty"`
	TotalPnl    *float64 `json:"total_pnl,omitempty"`
}

// CanOverride reports whether SL/target overrides may be accepted right now.
func (l *Leg) CanOverride() bool {
	return l != nil && l.Status == StatusInPosition
}

// CanManualExit reports whether a manual exit submission is meaningful:
// the leg must hold a live position.
func (l *Leg) CanManualExit() bool {
	return l != nil && l.Status.Bucket() == BucketOpen
}

// PlannedEntryPrice derives the price a pending leg is expected to enter at.
// Priority: explicit wait trigger, then baseline*(1±pct) by side. ok=false
// means unknown; callers must not substitute zero.
func (l *Leg) PlannedEntryPrice() (float64, bool) {
	if l == nil {
		return 0, false
	}
	if l.WaitTriggerPrice != nil {
		return *l.WaitTriggerPrice, true
	}
	if l.WaitBaselinePrice == nil || l.WaitTradePercent == nil {
		return 0, false
	}
	base := *l.WaitBaselinePrice
	pct := *l.WaitTradePercent
	switch l.Side {
	case SideBuy:
		return base * (1 + pct), true
	case SideSell:
		return base * (1 - pct), true
	default:
		return 0, false
	}
}

// ReentryExhausted reports whether the leg has used up its reentry budget.
// A nil limit means unbounded.
func (l *Leg) ReentryExhausted() bool {
	return l != nil && l.ReentryLimit != nil && l.ReentryCount >= *l.ReentryLimit
}

// ReexecuteExhausted mirrors ReentryExhausted for re-execution.
func (l *Leg) ReexecuteExhausted() bool {
	return l != nil && l.ReexecuteLimit != nil && l.ReexecuteCount >= *l.ReexecuteLimit
}
