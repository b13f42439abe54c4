package pnl

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legtracker/internal/strategy"
)

func f(v float64) *float64 { return &v }

func quoteTable(prices map[string]float64) QuoteFunc {
	return func(symbol, exchange string) (float64, bool) {
		v, ok := prices[symbol]
		return v, ok
	}
}

func TestUnrealizedBySide(t *testing.T) {
	t.Run("sell profits when price falls", func(t *testing.T) {
		leg := &strategy.Leg{Side: strategy.SideSell, EntryPrice: f(100), Quantity: f(50), Status: strategy.StatusInPosition}
		got, ok := Unrealized(leg, 92, true)
		require.True(t, ok)
		assert.True(t, got.Equal(decimal.NewFromInt(400)), "got %s", got)
	})
	t.Run("buy profits when price rises", func(t *testing.T) {
		leg := &strategy.Leg{Side: strategy.SideBuy, EntryPrice: f(100), Quantity: f(50), Status: strategy.StatusInPosition}
		got, ok := Unrealized(leg, 92, true)
		require.True(t, ok)
		assert.True(t, got.Equal(decimal.NewFromInt(-400)), "got %s", got)
	})
	t.Run("no ltp means unknown", func(t *testing.T) {
		leg := &strategy.Leg{Side: strategy.SideSell, EntryPrice: f(100), Quantity: f(50)}
		_, ok := Unrealized(leg, 0, false)
		assert.False(t, ok)
	})
	t.Run("no entry means unknown", func(t *testing.T) {
		leg := &strategy.Leg{Side: strategy.SideSell, Quantity: f(50)}
		_, ok := Unrealized(leg, 92, true)
		assert.False(t, ok)
	})
	t.Run("no side means unknown", func(t *testing.T) {
		leg := &strategy.Leg{EntryPrice: f(100), Quantity: f(50)}
		_, ok := Unrealized(leg, 92, true)
		assert.False(t, ok)
	})
}

func TestComputeRealizedFromHistory(t *testing.T) {
	in := &strategy.Instance{
		TradeHistory: []strategy.TradeRecord{
			{LegKey: "a", Pnl: 120},
			{LegKey: "b", Pnl: -40},
		},
		Legs: map[string]*strategy.Leg{
			"c": {Key: "c", Symbol: "NIFTY25SEP24000CE", Side: strategy.SideSell,
				EntryPrice: f(100), Quantity: f(10), Status: strategy.StatusInPosition},
		},
	}
	// Open SELL leg marked at 97: (100-97)*10 = +30.
	tot := Compute(in, quoteTable(map[string]float64{"NIFTY25SEP24000CE": 97}))

	assert.True(t, tot.Realized.Equal(decimal.NewFromInt(80)), "realized %s", tot.Realized)
	assert.True(t, tot.Unrealized.Equal(decimal.NewFromInt(30)), "unrealized %s", tot.Unrealized)
	assert.True(t, tot.Total.Equal(decimal.NewFromInt(110)), "total %s", tot.Total)
	assert.True(t, tot.Complete)
	assert.False(t, tot.RealizedMismatch)
}

func TestComputeOpenBucketGating(t *testing.T) {
	// Done and pending legs never mark to market even with stale entry fields.
	in := &strategy.Instance{Legs: map[string]*strategy.Leg{
		"done":    {Key: "done", Symbol: "X", Side: strategy.SideBuy, EntryPrice: f(50), Quantity: f(5), Status: strategy.StatusDone},
		"pending": {Key: "pending", Symbol: "X", Side: strategy.SideBuy, EntryPrice: f(50), Quantity: f(5), Status: strategy.StatusPendingEntry},
	}}
	tot := Compute(in, quoteTable(map[string]float64{"X": 200}))
	assert.True(t, tot.Unrealized.IsZero())
	assert.True(t, tot.Complete)
}

func TestComputeMissingQuoteMarksIncomplete(t *testing.T) {
	in := &strategy.Instance{Legs: map[string]*strategy.Leg{
		"a": {Key: "a", Symbol: "KNOWN", Side: strategy.SideSell, EntryPrice: f(100), Quantity: f(10), Status: strategy.StatusInPosition},
		"b": {Key: "b", Symbol: "UNKNOWN", Side: strategy.SideSell, EntryPrice: f(100), Quantity: f(10), Status: strategy.StatusInPosition},
	}}
	tot := Compute(in, quoteTable(map[string]float64{"KNOWN": 95}))

	// The known leg still contributes; the total is a floor.
	assert.True(t, tot.Unrealized.Equal(decimal.NewFromInt(50)), "unrealized %s", tot.Unrealized)
	assert.False(t, tot.Complete)
}

func TestComputeRealizedMismatch(t *testing.T) {
	in := &strategy.Instance{
		TradeHistory: []strategy.TradeRecord{{LegKey: "a", Pnl: 100}},
		Legs: map[string]*strategy.Leg{
			"a": {Key: "a", Status: strategy.StatusDone, RealizedPnl: f(90)},
		},
	}
	tot := Compute(in, nil)
	assert.True(t, tot.RealizedMismatch)
	// History remains authoritative for the headline figure.
	assert.True(t, tot.Realized.Equal(decimal.NewFromInt(100)), "realized %s", tot.Realized)

	t.Run("within tolerance", func(t *testing.T) {
		in.Legs["a"].RealizedPnl = f(100.005)
		tot := Compute(in, nil)
		assert.False(t, tot.RealizedMismatch)
	})
}

func TestLegTotal(t *testing.T) {
	t.Run("engine total wins", func(t *testing.T) {
		leg := &strategy.Leg{TotalPnl: f(77), Status: strategy.StatusInPosition}
		got, ok := LegTotal(leg, 0, false)
		require.True(t, ok)
		assert.True(t, got.Equal(decimal.NewFromInt(77)))
	})
	t.Run("open leg adds mark to realized", func(t *testing.T) {
		leg := &strategy.Leg{Side: strategy.SideSell, EntryPrice: f(100), Quantity: f(10),
			RealizedPnl: f(25), Status: strategy.StatusInPosition}
		got, ok := LegTotal(leg, 98, true)
		require.True(t, ok)
		assert.True(t, got.Equal(decimal.NewFromInt(45)), "got %s", got)
	})
	t.Run("open leg without quote is unknown", func(t *testing.T) {
		leg := &strategy.Leg{Side: strategy.SideSell, EntryPrice: f(100), Quantity: f(10),
			RealizedPnl: f(25), Status: strategy.StatusInPosition}
		_, ok := LegTotal(leg, 0, false)
		assert.False(t, ok)
	})
	t.Run("closed leg is just realized", func(t *testing.T) {
		leg := &strategy.Leg{RealizedPnl: f(25), Status: strategy.StatusDone}
		got, ok := LegTotal(leg, 0, false)
		require.True(t, ok)
		assert.True(t, got.Equal(decimal.NewFromInt(25)))
	})
}
