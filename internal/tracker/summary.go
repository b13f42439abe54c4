package tracker

import (
	"sort"
	"strings"
	"time"

	"legtracker/internal/pnl"
	"legtracker/internal/strategy"
)

// Summary is the per-instance roll-up the listing surface consumes.
type Summary struct {
	InstanceID string                  `json:"instance_id"`
	Name       string                  `json:"strategy_name"`
	Status     strategy.InstanceStatus `json:"status"`

	OpenLegs    int `json:"open_legs"`
	PendingLegs int `json:"pending_legs"`
	DoneLegs    int `json:"done_legs"`
	TradeCount  int `json:"trade_count"`

	Realized           float64 `json:"realized_pnl"`
	Unrealized         float64 `json:"unrealized_pnl"`
	UnrealizedComplete bool    `json:"unrealized_complete"`
	Total              float64 `json:"total_pnl"`
	RealizedMismatch   bool    `json:"realized_mismatch,omitempty"`

	Warnings []string `json:"warnings,omitempty"`

	CreatedAt   *time.Time `json:"created_at,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`
}

// StatusFilter narrows a listing to running or completed instances.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterRunning   StatusFilter = "running"
	FilterCompleted StatusFilter = "completed"
)

func (f StatusFilter) match(s strategy.InstanceStatus) bool {
	switch f {
	case FilterRunning:
		return s == strategy.InstanceRunning || s == strategy.InstancePaused
	case FilterCompleted:
		return s == strategy.InstanceCompleted
	default:
		return true
	}
}

// Summaries computes the roll-up for every instance passing the filter, in
// the deterministic display order: name (case-insensitive) asc, created
// time asc with missing-last, instance id as the final tiebreak. The order
// is stable no matter how the store shuffles its rows.
func (m *Manager) Summaries(filter StatusFilter) []Summary {
	m.mu.RLock()
	instances := make([]*strategy.Instance, 0, len(m.instances))
	for _, in := range m.instances {
		instances = append(instances, in)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(instances))
	for _, in := range instances {
		if !filter.match(in.Status) {
			continue
		}
		out = append(out, m.summarize(in))
	}
	sortSummaries(out)
	return out
}

func (m *Manager) summarize(in *strategy.Instance) Summary {
	open, pending, done := in.CountByBucket()
	totals := pnl.Compute(in, m.price)
	realized, _ := totals.Realized.Float64()
	unrealized, _ := totals.Unrealized.Float64()
	total, _ := totals.Total.Float64()
	return Summary{
		InstanceID:         in.ID,
		Name:               in.Name,
		Status:             in.Status,
		OpenLegs:           open,
		PendingLegs:        pending,
		DoneLegs:           done,
		TradeCount:         len(in.TradeHistory),
		Realized:           realized,
		Unrealized:         unrealized,
		UnrealizedComplete: totals.Complete,
		Total:              total,
		RealizedMismatch:   totals.RealizedMismatch,
		Warnings:           in.IntegrityWarnings(),
		CreatedAt:          in.CreatedAt,
		LastUpdated:        in.LastUpdated,
	}
}

func sortSummaries(list []Summary) {
	sort.SliceStable(list, func(i, j int) bool {
		return summaryLess(list[i], list[j])
	})
}

func summaryLess(a, b Summary) bool {
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	switch {
	case a.CreatedAt == nil && b.CreatedAt != nil:
		return false
	case a.CreatedAt != nil && b.CreatedAt == nil:
		return true
	case a.CreatedAt != nil && b.CreatedAt != nil && !a.CreatedAt.Equal(*b.CreatedAt):
		return a.CreatedAt.Before(*b.CreatedAt)
	}
	return a.InstanceID < b.InstanceID
}
