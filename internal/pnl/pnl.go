package pnl

import (
	"math"

	"github.com/shopspring/decimal"

	"legtracker/internal/strategy"
)

// QuoteFunc resolves the last traded price for a symbol+exchange pair.
// ok=false means no price is known yet; it is never reported as zero.
type QuoteFunc func(symbol, exchange string) (float64, bool)

// mismatchTolerance bounds the acceptable gap between the per-leg realized
// sum and the trade-history realized sum before the divergence is flagged.
var mismatchTolerance = decimal.NewFromFloat(0.01)

func decFrom(val float64) (decimal.Decimal, bool) {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(val), true
}

// Unrealized computes the mark-to-market P&L of one leg against ltp.
// ok=false when ltp, entry price, quantity or side is missing; callers must
// treat that as unknown, not zero.
func Unrealized(leg *strategy.Leg, ltp float64, haveLTP bool) (decimal.Decimal, bool) {
	if leg == nil || !haveLTP {
		return decimal.Zero, false
	}
	if leg.EntryPrice == nil || leg.Quantity == nil {
		return decimal.Zero, false
	}
	live, ok := decFrom(ltp)
	if !ok {
		return decimal.Zero, false
	}
	entry, ok := decFrom(*leg.EntryPrice)
	if !ok {
		return decimal.Zero, false
	}
	qty, ok := decFrom(*leg.Quantity)
	if !ok {
		return decimal.Zero, false
	}
	switch leg.Side {
	case strategy.SideBuy:
		return live.Sub(entry).Mul(qty), true
	case strategy.SideSell:
		return entry.Sub(live).Mul(qty), true
	default:
		return decimal.Zero, false
	}
}

// LegRealized returns the leg's own realized figure, when the engine
// reported one. This is the authoritative per-leg breakdown value.
func LegRealized(leg *strategy.Leg) (decimal.Decimal, bool) {
	if leg == nil || leg.RealizedPnl == nil {
		return decimal.Zero, false
	}
	return decFrom(*leg.RealizedPnl)
}

// HistoryRealized sums pnl over the instance's trade history. This is the
// authoritative instance-level realized total. Empty history sums to zero.
func HistoryRealized(in *strategy.Instance) decimal.Decimal {
	total := decimal.Zero
	if in == nil {
		return total
	}
	for _, rec := range in.TradeHistory {
		if d, ok := decFrom(rec.Pnl); ok {
			total = total.Add(d)
		}
	}
	return total
}

// LegTotal is realized+unrealized for one leg, preferring the engine's
// precomputed total when present. Unknown unrealized propagates as unknown.
func LegTotal(leg *strategy.Leg, ltp float64, haveLTP bool) (decimal.Decimal, bool) {
	if leg == nil {
		return decimal.Zero, false
	}
	if leg.TotalPnl != nil {
		return decFrom(*leg.TotalPnl)
	}
	realized, haveRealized := LegRealized(leg)
	if leg.Status.Bucket() != strategy.BucketOpen {
		// Nothing marks to market outside the open bucket.
		return realized, haveRealized
	}
	unreal, ok := Unrealized(leg, ltp, haveLTP)
	if !ok {
		return decimal.Zero, false
	}
	if haveRealized {
		return realized.Add(unreal), true
	}
	return unreal, true
}

// Totals aggregates one instance's P&L figures.
type Totals struct {
	Realized decimal.Decimal

	// Unrealized is the sum over open legs with a known price. Complete is
	// false when at least one open leg could not be marked, so the figure is
	// a floor, not an exact total.
	Unrealized decimal.Decimal
	Complete   bool

	Total decimal.Decimal

	// RealizedMismatch flags a divergence between the sum of per-leg
	// realized figures and the trade-history sum. Neither value is silently
	// preferred for the breakdown; the history sum drives Realized/Total.
	RealizedMismatch bool
}

// Compute derives the instance totals. Legs outside the open bucket
// contribute exactly zero unrealized regardless of their stored fields.
func Compute(in *strategy.Instance, quotes QuoteFunc) Totals {
	t := Totals{Realized: HistoryRealized(in), Complete: true}
	if in == nil {
		t.Total = t.Realized
		return t
	}
	legSum := decimal.Zero
	legSumAny := false
	for _, leg := range in.LegsSorted() {
		if leg == nil {
			continue
		}
		if r, ok := LegRealized(leg); ok {
			legSum = legSum.Add(r)
			legSumAny = true
		}
		if leg.Status.Bucket() != strategy.BucketOpen {
			continue
		}
		ltp, haveLTP := 0.0, false
		if quotes != nil {
			ltp, haveLTP = quotes(leg.Symbol, leg.Exchange)
		}
		unreal, ok := Unrealized(leg, ltp, haveLTP)
		if !ok {
			t.Complete = false
			continue
		}
		t.Unrealized = t.Unrealized.Add(unreal)
	}
	if legSumAny && legSum.Sub(t.Realized).Abs().GreaterThan(mismatchTolerance) {
		t.RealizedMismatch = true
	}
	t.Total = t.Realized.Add(t.Unrealized)
	return t
}
