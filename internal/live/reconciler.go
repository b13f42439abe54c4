// Package live reconciles a push price feed with a pull quote fallback and
// owns the shared price table. Downstream P&L always sees the most recent
// known price per symbol, flagged stale when it ages past the threshold.
package live

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"legtracker/internal/logger"
)

// SymbolState is the per-symbol freshness classification.
type SymbolState int

const (
	StateNoData SymbolState = iota
	StateFeedFresh
	StateFallbackActive
)

func (s SymbolState) String() string {
	switch s {
	case StateFeedFresh:
		return "FEED_FRESH"
	case StateFallbackActive:
		return "FEED_STALE_FALLBACK_ACTIVE"
	default:
		return "NO_DATA"
	}
}

// Config tunes the reconciler. Zero values fall back to defaults.
type Config struct {
	FeedEnabled  bool
	StaleAfter   time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

const (
	defaultStaleAfter   = 5 * time.Second
	defaultPollInterval = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaultStaleAfter
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PollTimeout <= 0 || c.PollTimeout > c.PollInterval {
		c.PollTimeout = c.PollInterval
	}
	return c
}

// Reconciler maintains best-effort current prices for the working set.
type Reconciler struct {
	cfg     Config
	feed    Feed
	fetcher QuoteFetcher
	table   *Table
	nowFn   func() time.Time

	mu         sync.Mutex
	working    []Key
	paused     bool
	pausedAt   time.Time
	feedCancel context.CancelFunc
	runCtx     context.Context
	cancel     context.CancelFunc
	started    bool

	refreshing atomic.Bool
	wg         sync.WaitGroup
}

// New builds a reconciler. feed may be nil when Config.FeedEnabled is false;
// fetcher must not be nil.
func New(cfg Config, feed Feed, fetcher QuoteFetcher) *Reconciler {
	return &Reconciler{
		cfg:     cfg.withDefaults(),
		feed:    feed,
		fetcher: fetcher,
		table:   NewTable(),
		nowFn:   time.Now,
	}
}

// Start launches the fallback poll loop and subscribes the feed to the
// current working set. Safe to call once.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.runCtx, r.cancel = context.WithCancel(ctx)
	r.resubscribeLocked()
	r.wg.Add(1)
	go r.pollLoop(r.runCtx)
}

// Stop tears down the feed subscription and the poller. No activity touches
// the table after Stop returns.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	if r.feedCancel != nil {
		r.feedCancel()
		r.feedCancel = nil
	}
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	if r.feed != nil {
		if err := r.feed.Close(); err != nil {
			logger.Warnf("live: feed close: %v", err)
		}
	}
}

// SetWorkingSet replaces the tracked instrument set. Keys are deduped and
// the feed is resubscribed only when the set actually changed. Entries for
// dropped keys are pruned.
func (r *Reconciler) SetWorkingSet(keys []Key) {
	deduped := dedupeKeys(keys)
	r.mu.Lock()
	defer r.mu.Unlock()
	if keysEqual(r.working, deduped) {
		return
	}
	r.working = deduped
	retain := make(map[Key]bool, len(deduped))
	for _, k := range deduped {
		retain[k] = true
	}
	r.table.Retain(retain)
	if r.started && !r.paused {
		r.resubscribeLocked()
	}
}

// Pause stops feed ingest and fallback polling while the consuming surface
// is not visible. Reads keep answering from the table.
func (r *Reconciler) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		return
	}
	r.paused = true
	r.pausedAt = r.nowFn()
	if r.feedCancel != nil {
		r.feedCancel()
		r.feedCancel = nil
	}
	logger.Debugf("live: paused")
}

// Resume restarts ingest. If the pause outlived the staleness threshold an
// immediate one-shot refresh covers the whole working set, and Refreshing
// reports true until it completes.
func (r *Reconciler) Resume() {
	r.mu.Lock()
	if !r.paused {
		r.mu.Unlock()
		return
	}
	r.paused = false
	pausedFor := r.nowFn().Sub(r.pausedAt)
	if r.started {
		r.resubscribeLocked()
	}
	ctx := r.runCtx
	// The Add must happen under r.mu: Stop flips started under the same lock
	// before waiting, so a Resume racing Stop never touches a draining group.
	needRefresh := r.started && ctx != nil && pausedFor > r.cfg.StaleAfter
	if needRefresh {
		r.refreshing.Store(true)
		r.wg.Add(1)
	}
	r.mu.Unlock()

	if needRefresh {
		go func() {
			defer r.wg.Done()
			defer r.refreshing.Store(false)
			r.pollOnce(ctx, true)
		}()
	}
}

// Refreshing reports whether a post-resume one-shot refresh is in flight.
func (r *Reconciler) Refreshing() bool {
	return r.refreshing.Load()
}

// Quote returns the current price for k, ok=false when nothing is known.
func (r *Reconciler) Quote(k Key) (Quote, bool) {
	return r.table.Get(k, r.nowFn(), r.cfg.StaleAfter)
}

// Price is the QuoteFunc-shaped accessor used by the P&L engine.
func (r *Reconciler) Price(symbol, exchange string) (float64, bool) {
	q, ok := r.Quote(KeyOf(symbol, exchange))
	if !ok {
		return 0, false
	}
	return q.Price, true
}

// Snapshot copies out the full table.
func (r *Reconciler) Snapshot() map[Key]Quote {
	return r.table.Snapshot(r.nowFn(), r.cfg.StaleAfter)
}

// State classifies the freshness path for one key.
func (r *Reconciler) State(k Key) SymbolState {
	q, ok := r.table.Get(k, r.nowFn(), r.cfg.StaleAfter)
	switch {
	case !ok:
		return StateNoData
	case q.Source == SourceFeed && !q.Stale:
		return StateFeedFresh
	default:
		return StateFallbackActive
	}
}

// Stats surfaces feed health counters.
func (r *Reconciler) Stats() FeedStats {
	if r.feed == nil {
		return FeedStats{}
	}
	return r.feed.Stats()
}

// WorkingSetSize reports how many instruments are tracked.
func (r *Reconciler) WorkingSetSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.working)
}

// resubscribeLocked replaces the feed subscription with the current working
// set. Caller holds r.mu.
func (r *Reconciler) resubscribeLocked() {
	if r.feedCancel != nil {
		r.feedCancel()
		r.feedCancel = nil
	}
	if !r.cfg.FeedEnabled || r.feed == nil || r.runCtx == nil || len(r.working) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(r.runCtx)
	ticks, err := r.feed.Subscribe(ctx, append([]Key(nil), r.working...))
	if err != nil {
		cancel()
		logger.Warnf("live: feed subscribe failed, fallback poller covers the set: %v", err)
		return
	}
	r.feedCancel = cancel
	r.wg.Add(1)
	go r.consume(ctx, ticks)
	logger.Infof("live: feed subscribed symbols=%d", len(r.working))
}

func (r *Reconciler) consume(ctx context.Context, ticks <-chan Tick) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			at := tick.At
			if at.IsZero() {
				at = r.nowFn()
			}
			r.table.Apply(tick.Key, tick.Price, at, SourceFeed)
		}
	}
}

func (r *Reconciler) pollLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			paused := r.paused
			r.mu.Unlock()
			if paused {
				continue
			}
			r.pollOnce(ctx, false)
		}
	}
}

// pollOnce issues one batch quote request for the subset that needs the
// fallback (or the whole set when force is true). A late response is still
// subject to the table's timestamp guard.
func (r *Reconciler) pollOnce(ctx context.Context, force bool) {
	if r.fetcher == nil {
		return
	}
	need := r.fallbackNeeded(force)
	if len(need) == 0 {
		return
	}
	// Stamp before issuing the request: quotes are no fresher than the moment
	// they were asked for, and feed ticks that land mid-flight must win the
	// table's timestamp guard.
	at := r.nowFn()
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.PollTimeout)
	defer cancel()
	prices, err := r.fetcher.FetchQuotes(reqCtx, need)
	if err != nil {
		logger.Warnf("live: fallback quotes failed for %d symbols: %v", len(need), err)
		return
	}
	for k, price := range prices {
		r.table.Apply(k, price, at, SourceFallback)
	}
	logger.Debugf("live: fallback applied %d/%d quotes", len(prices), len(need))
}

// fallbackNeeded selects the keys the poller must cover: everything when the
// feed is disabled or down, otherwise only keys with no data or whose last
// feed tick aged past the staleness threshold.
func (r *Reconciler) fallbackNeeded(force bool) []Key {
	r.mu.Lock()
	working := append([]Key(nil), r.working...)
	r.mu.Unlock()
	if len(working) == 0 {
		return nil
	}
	feedHealthy := r.cfg.FeedEnabled && r.feed != nil && r.feed.Connected()
	if force || !feedHealthy {
		return working
	}
	now := r.nowFn()
	var need []Key
	for _, k := range working {
		q, ok := r.table.Get(k, now, r.cfg.StaleAfter)
		if !ok || q.Source != SourceFeed || q.Stale {
			need = append(need, k)
		}
	}
	return need
}

func dedupeKeys(keys []Key) []Key {
	seen := make(map[Key]bool, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if k.Symbol == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exchange != out[j].Exchange {
			return out[i].Exchange < out[j].Exchange
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func keysEqual(a, b []Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
