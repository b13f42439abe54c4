package tracker

import (
	"legtracker/internal/live"
	"legtracker/internal/pnl"
	"legtracker/internal/strategy"
)

// LegView is one leg annotated with its derived display figures. Pointer
// fields are nil when the underlying figure is unknown; they are never
// defaulted to zero.
type LegView struct {
	Leg    strategy.Leg `json:"leg"`
	Bucket string       `json:"bucket"`

	PlannedEntry *float64 `json:"planned_entry,omitempty"`

	LTP         *float64 `json:"ltp,omitempty"`
	PriceSource string   `json:"price_source,omitempty"`
	PriceStale  bool     `json:"price_stale,omitempty"`
	PriceState  string   `json:"price_state"`

	Unrealized *float64 `json:"unrealized_pnl,omitempty"`
	Realized   *float64 `json:"realized_pnl,omitempty"`
	Total      *float64 `json:"total_pnl,omitempty"`
}

// InstanceView is the full per-instance view model: bucketed legs, trade
// history, P&L roll-up and liveness flags.
type InstanceView struct {
	Summary Summary `json:"summary"`

	OpenLegs    []LegView `json:"open_legs"`
	PendingLegs []LegView `json:"pending_legs"`
	DoneLegs    []LegView `json:"done_legs"`

	TradeHistory []strategy.TradeRecord `json:"trade_history,omitempty"`

	// Refreshing mirrors the live layer's post-resume one-shot refresh:
	// displayed data may be stale and is being refreshed right now.
	Refreshing bool `json:"refreshing,omitempty"`
}

// View assembles the view model for one instance.
func (m *Manager) View(instanceID string) (InstanceView, bool) {
	in, ok := m.instance(instanceID)
	if !ok {
		return InstanceView{}, false
	}
	view := InstanceView{
		Summary:      m.summarize(in),
		TradeHistory: append([]strategy.TradeRecord(nil), in.TradeHistory...),
	}
	if m.prices != nil {
		view.Refreshing = m.prices.Refreshing()
	}
	for _, leg := range in.LegsSorted() {
		lv := m.legView(leg)
		switch leg.Status.Bucket() {
		case strategy.BucketOpen:
			view.OpenLegs = append(view.OpenLegs, lv)
		case strategy.BucketDone:
			view.DoneLegs = append(view.DoneLegs, lv)
		default:
			view.PendingLegs = append(view.PendingLegs, lv)
		}
	}
	return view, true
}

func (m *Manager) legView(leg *strategy.Leg) LegView {
	lv := LegView{
		Leg:        *leg,
		Bucket:     leg.Status.Bucket().String(),
		PriceState: live.StateNoData.String(),
	}
	if planned, ok := leg.PlannedEntryPrice(); ok {
		lv.PlannedEntry = &planned
	}
	if r, ok := pnl.LegRealized(leg); ok {
		v, _ := r.Float64()
		lv.Realized = &v
	}

	var (
		ltp     float64
		haveLTP bool
	)
	if m.prices != nil {
		key := live.KeyOf(leg.Symbol, leg.Exchange)
		if q, ok := m.prices.Quote(key); ok {
			ltp, haveLTP = q.Price, true
			lv.LTP = &q.Price
			lv.PriceSource = string(q.Source)
			lv.PriceStale = q.Stale
			if q.Source == live.SourceFeed && !q.Stale {
				lv.PriceState = live.StateFeedFresh.String()
			} else {
				lv.PriceState = live.StateFallbackActive.String()
			}
		}
	}

	if leg.Status.Bucket() == strategy.BucketOpen {
		if u, ok := pnl.Unrealized(leg, ltp, haveLTP); ok {
			v, _ := u.Float64()
			lv.Unrealized = &v
		}
	}
	if t, ok := pnl.LegTotal(leg, ltp, haveLTP); ok {
		v, _ := t.Float64()
		lv.Total = &v
	}
	return lv
}
