// Package tracker aggregates strategy instances, drives the periodic
// snapshot refresh, and routes human actions through validation to the
// write interface. It is the single consumer-facing surface over the leg
// state machine, the P&L engine and the live price layer.
package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"legtracker/internal/live"
	"legtracker/internal/logger"
	"legtracker/internal/risk"
	"legtracker/internal/scheduler"
	"legtracker/internal/strategy"
)

// ErrNotFound rejects actions against instances or legs the tracker does
// not know.
var ErrNotFound = errors.New("not found")

// SnapshotSource loads the full strategy state from the external store.
type SnapshotSource interface {
	ListInstances(ctx context.Context) ([]*strategy.Instance, error)
}

// ActionClient carries accepted human edits to the external collaborator.
// Writes are never auto-retried; a failure surfaces to the submitter.
type ActionClient interface {
	SubmitOverride(ctx context.Context, instanceID, legKey string, typ risk.OverrideType, value float64) error
	SubmitManualExit(ctx context.Context, instanceID, legKey string, exitPrice float64, exitType strategy.ExitType) error
	CreateManualLeg(ctx context.Context, instanceID string, leg strategy.Leg) error
	DeleteInstance(ctx context.Context, instanceID string) error
}

// PriceView is the read/working-set surface of the live price layer.
type PriceView interface {
	Price(symbol, exchange string) (float64, bool)
	Quote(k live.Key) (live.Quote, bool)
	SetWorkingSet(keys []live.Key)
	Refreshing() bool
	Stats() live.FeedStats
}

// Config tunes the refresh loop.
type Config struct {
	RefreshInterval time.Duration
}

const (
	minRefreshInterval = 5 * time.Second
	maxRefreshInterval = 300 * time.Second
)

// Manager owns the strategy-state cache and its refresh lifecycle.
type Manager struct {
	src     SnapshotSource
	actions ActionClient
	prices  PriceView

	intervalNs atomic.Int64

	mu          sync.RWMutex
	instances   map[string]*strategy.Instance
	lastRefresh time.Time
	lastErr     error
	appliedSeq  uint64

	seq      atomic.Uint64
	inFlight atomic.Bool
	nowFn    func() time.Time
}

func NewManager(cfg Config, src SnapshotSource, actions ActionClient, prices PriceView) *Manager {
	m := &Manager{
		src:       src,
		actions:   actions,
		prices:    prices,
		instances: make(map[string]*strategy.Instance),
		nowFn:     time.Now,
	}
	m.SetRefreshInterval(cfg.RefreshInterval)
	return m
}

// SetRefreshInterval retunes the refresh cadence, clamped to the supported
// 5s–300s range. Takes effect on the next cycle.
func (m *Manager) SetRefreshInterval(d time.Duration) {
	d = scheduler.ClampInterval(d, minRefreshInterval, maxRefreshInterval)
	m.intervalNs.Store(int64(d))
}

func (m *Manager) refreshInterval() time.Duration {
	return time.Duration(m.intervalNs.Load())
}

// Run drives the refresh loop until ctx is cancelled. An immediate refresh
// primes the cache before the first interval elapses.
func (m *Manager) Run(ctx context.Context) {
	sched := scheduler.NewIntervalScheduler(ctx, m.refreshInterval())
	sched.RunImmediately = true
	sched.IntervalFn = m.refreshInterval
	sched.Start(func() {
		if !m.TryRefresh(ctx) {
			logger.Debugf("tracker: refresh already in flight, dropped")
		}
	})
}

// TryRefresh starts a snapshot refresh unless one is already in flight, in
// which case the request is dropped so slow responses cannot pile up.
// Returns whether a refresh was actually issued.
func (m *Manager) TryRefresh(ctx context.Context) bool {
	if !m.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer m.inFlight.Store(false)
	m.refresh(ctx, m.seq.Add(1))
	return true
}

// refresh loads the snapshot and replaces the cache, guarded by seq so a
// slower earlier-issued load never overwrites a later one. A transient
// failure keeps the last-known snapshot visible and is recorded for the
// status surface.
func (m *Manager) refresh(ctx context.Context, seq uint64) {
	instances, err := m.src.ListInstances(ctx)
	now := m.nowFn()

	m.mu.Lock()
	if seq < m.appliedSeq {
		m.mu.Unlock()
		logger.Debugf("tracker: stale refresh result dropped (seq=%d applied=%d)", seq, m.appliedSeq)
		return
	}
	m.appliedSeq = seq
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		logger.Warnf("tracker: snapshot refresh failed, keeping last snapshot: %v", err)
		return
	}
	next := make(map[string]*strategy.Instance, len(instances))
	for _, in := range instances {
		if in == nil || in.ID == "" {
			continue
		}
		next[in.ID] = in
	}
	m.instances = next
	m.lastRefresh = now
	m.lastErr = nil
	keys := workingSetKeys(next)
	m.mu.Unlock()

	m.setWorkingSet(keys)
	logger.Debugf("tracker: snapshot applied instances=%d seq=%d", len(next), seq)
}

// workingSetKeys derives the live keys every open or pending leg references,
// across instances. The caller must hold m.mu: once published, the instances
// map is mutated under the lock by deletes.
func workingSetKeys(instances map[string]*strategy.Instance) []live.Key {
	var keys []live.Key
	for _, in := range instances {
		for _, leg := range in.Legs {
			if leg == nil || leg.Status.Bucket() == strategy.BucketDone {
				continue
			}
			keys = append(keys, live.KeyOf(leg.Symbol, leg.Exchange))
		}
	}
	return keys
}

func (m *Manager) setWorkingSet(keys []live.Key) {
	if m.prices == nil {
		return
	}
	m.prices.SetWorkingSet(keys)
}

// Status reports the refresh loop's health for the liveness surface.
type Status struct {
	LastRefresh time.Time
	RefreshErr  string
	Instances   int
	FeedStats   live.FeedStats
	Refreshing  bool
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	s := Status{
		LastRefresh: m.lastRefresh,
		Instances:   len(m.instances),
	}
	if m.lastErr != nil {
		s.RefreshErr = m.lastErr.Error()
	}
	m.mu.RUnlock()
	if m.prices != nil {
		s.FeedStats = m.prices.Stats()
		s.Refreshing = m.prices.Refreshing()
	}
	return s
}

func (m *Manager) instance(id string) (*strategy.Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.instances[id]
	return in, ok
}

func (m *Manager) price(symbol, exchange string) (float64, bool) {
	if m.prices == nil {
		return 0, false
	}
	return m.prices.Price(symbol, exchange)
}
