package strategy

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// InstanceStatus is the lifecycle state of a strategy instance.
type InstanceStatus string

const (
	InstanceRunning   InstanceStatus = "RUNNING"
	InstancePaused    InstanceStatus = "PAUSED"
	InstanceCompleted InstanceStatus = "COMPLETED"
	InstanceError     InstanceStatus = "ERROR"
)

// TradeRecord is an immutable snapshot of one completed entry→exit cycle of
// a leg. Records are created once by the engine and never mutated here.
type TradeRecord struct {
	LegKey     string     `json:"leg_key"`
	Symbol     string     `json:"symbol"`
	Exchange   string     `json:"exchange"`
	Side       Side       `json:"side"`
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	EntryTime  *time.Time `json:"entry_time,omitempty"`
	ExitPrice  float64    `json:"exit_price"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	ExitType   ExitType   `json:"exit_type"`
	Pnl        float64    `json:"pnl"`
}

// Instance is one running/completed strategy execution: its legs keyed by
// leg key, plus the ordered trade history the engine has archived.
type Instance struct {
	ID           string          `json:"instance_id"`
	Name         string          `json:"strategy_name"`
	Status       InstanceStatus  `json:"status"`
	Config       json.RawMessage `json:"config,omitempty"`
	Legs         map[string]*Leg `json:"legs"`
	TradeHistory []TradeRecord   `json:"trade_history,omitempty"`
	CreatedAt    *time.Time      `json:"created_at,omitempty"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// Leg returns the leg for key, or nil when the instance does not own it.
func (in *Instance) Leg(key string) *Leg {
	if in == nil {
		return nil
	}
	return in.Legs[key]
}

// LegsSorted returns the legs in deterministic key order. Map iteration order
// must never leak into views or summaries.
func (in *Instance) LegsSorted() []*Leg {
	if in == nil || len(in.Legs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in.Legs))
	for k := range in.Legs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Leg, 0, len(keys))
	for _, k := range keys {
		out = append(out, in.Legs[k])
	}
	return out
}

// CountByBucket tallies legs per display bucket.
func (in *Instance) CountByBucket() (open, pending, done int) {
	if in == nil {
		return 0, 0, 0
	}
	for _, leg := range in.Legs {
		if leg == nil {
			continue
		}
		switch leg.Status.Bucket() {
		case BucketOpen:
			open++
		case BucketDone:
			done++
		default:
			pending++
		}
	}
	return open, pending, done
}

// IntegrityWarnings checks structural invariants that the engine is supposed
// to uphold. Violations are reported, not fatal: the tracker still displays
// the instance but flags it.
func (in *Instance) IntegrityWarnings() []string {
	if in == nil {
		return nil
	}
	var warns []string
	mains := make(map[string]bool)
	for _, leg := range in.Legs {
		if leg != nil && leg.LegPairName != "" && leg.IsMainLeg {
			mains[leg.LegPairName] = true
		}
	}
	keys := make([]string, 0, len(in.Legs))
	for k := range in.Legs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		leg := in.Legs[k]
		if leg == nil {
			continue
		}
		if leg.Key != "" && leg.Key != k {
			warns = append(warns, fmt.Sprintf("leg %s: key mismatch (record says %s)", k, leg.Key))
		}
		if !leg.Status.Valid() {
			warns = append(warns, fmt.Sprintf("leg %s: unknown status %q", k, leg.Status))
		}
		if leg.EntryPrice == nil && leg.Status.Bucket() == BucketOpen {
			warns = append(warns, fmt.Sprintf("leg %s: open without entry price", k))
		}
		if leg.ReentryLimit != nil && leg.ReentryCount > *leg.ReentryLimit {
			warns = append(warns, fmt.Sprintf("leg %s: reentry count %d exceeds limit %d", k, leg.ReentryCount, *leg.ReentryLimit))
		}
		if leg.LegPairName != "" && !leg.IsMainLeg && !mains[leg.LegPairName] {
			warns = append(warns, fmt.Sprintf("leg %s: pair %q has no main leg", k, leg.LegPairName))
		}
	}
	return warns
}
