package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	mu         sync.Mutex
	connected  bool
	subscribes [][]Key
	ticks      chan Tick
}

func newFakeFeed(connected bool) *fakeFeed {
	return &fakeFeed{connected: connected, ticks: make(chan Tick, 16)}
}

func (f *fakeFeed) Subscribe(ctx context.Context, keys []Key) (<-chan Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, keys)
	return f.ticks, nil
}

func (f *fakeFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeFeed) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func (f *fakeFeed) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribes)
}

func (f *fakeFeed) Stats() FeedStats { return FeedStats{Connected: f.Connected()} }
func (f *fakeFeed) Close() error     { return nil }

type fakeFetcher struct {
	mu     sync.Mutex
	prices map[Key]float64
	calls  [][]Key
	block  chan struct{}
}

func (f *fakeFetcher) FetchQuotes(ctx context.Context, keys []Key) (map[Key]float64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]Key(nil), keys...))
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make(map[Key]float64, len(keys))
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		if p, ok := f.prices[k]; ok {
			out[k] = p
		}
	}
	return out, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) lastCall() []Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	assert.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func TestSetWorkingSetDedupesAndResubscribes(t *testing.T) {
	feed := newFakeFeed(true)
	fetcher := &fakeFetcher{}
	r := New(Config{FeedEnabled: true, PollInterval: time.Hour}, feed, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	a := KeyOf("A", "NSE")
	b := KeyOf("B", "NSE")
	r.SetWorkingSet([]Key{b, a, a, {}})
	eventually(t, func() bool { return feed.subscribeCount() == 1 }, "first subscribe")
	assert.Equal(t, 2, r.WorkingSetSize())
	assert.Equal(t, []Key{a, b}, feed.subscribes[0])

	// Same set in a different order: no resubscribe.
	r.SetWorkingSet([]Key{a, b})
	assert.Equal(t, 1, feed.subscribeCount())

	r.SetWorkingSet([]Key{a})
	eventually(t, func() bool { return feed.subscribeCount() == 2 }, "resubscribe on change")
}

func TestFeedTicksReachTheTable(t *testing.T) {
	feed := newFakeFeed(true)
	r := New(Config{FeedEnabled: true, PollInterval: time.Hour}, feed, &fakeFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	k := KeyOf("RELIANCE", "NSE")
	r.SetWorkingSet([]Key{k})

	at := time.Now()
	feed.ticks <- Tick{Key: k, Price: 2800, At: at}
	eventually(t, func() bool {
		q, ok := r.Quote(k)
		return ok && q.Price == 2800 && q.Source == SourceFeed
	}, "tick applied")

	// A tick without a timestamp is stamped on arrival.
	feed.ticks <- Tick{Key: k, Price: 2801}
	eventually(t, func() bool {
		q, _ := r.Quote(k)
		return q.Price == 2801
	}, "zero-time tick applied")
}

func TestFallbackCoversEverythingWhenFeedDown(t *testing.T) {
	a := KeyOf("A", "NSE")
	b := KeyOf("B", "NSE")
	fetcher := &fakeFetcher{prices: map[Key]float64{a: 10, b: 20}}
	feed := newFakeFeed(false)
	r := New(Config{FeedEnabled: true, PollInterval: time.Hour}, feed, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()
	r.SetWorkingSet([]Key{a, b})

	r.pollOnce(ctx, false)
	assert.ElementsMatch(t, []Key{a, b}, fetcher.lastCall())

	q, ok := r.Quote(a)
	require.True(t, ok)
	assert.Equal(t, SourceFallback, q.Source)
	assert.Equal(t, StateFallbackActive, r.State(a))
}

func TestFallbackPollsOnlyStaleKeysWhenFeedHealthy(t *testing.T) {
	a := KeyOf("A", "NSE")
	b := KeyOf("B", "NSE")
	c := KeyOf("C", "NSE")
	fetcher := &fakeFetcher{prices: map[Key]float64{b: 20, c: 30}}
	feed := newFakeFeed(true)
	r := New(Config{FeedEnabled: true, StaleAfter: 5 * time.Second, PollInterval: time.Hour}, feed, fetcher)

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	now := base
	r.nowFn = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()
	r.SetWorkingSet([]Key{a, b, c})

	// a: fresh feed tick. b: stale feed tick. c: never quoted.
	r.table.Apply(a, 10, base, SourceFeed)
	r.table.Apply(b, 20, base.Add(-10*time.Second), SourceFeed)

	now = base.Add(time.Second)
	r.pollOnce(ctx, false)
	assert.ElementsMatch(t, []Key{b, c}, fetcher.lastCall())

	assert.Equal(t, StateFeedFresh, r.State(a))
	assert.Equal(t, StateFallbackActive, r.State(b))
	assert.Equal(t, StateFallbackActive, r.State(c))
}

func TestSlowFallbackLosesToInterimFeedTick(t *testing.T) {
	k := KeyOf("RELIANCE", "NSE")
	fetcher := &fakeFetcher{prices: map[Key]float64{k: 2700}, block: make(chan struct{})}
	r := New(Config{StaleAfter: time.Minute, PollInterval: time.Hour}, nil, fetcher)

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	now := base
	r.nowFn = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()
	r.SetWorkingSet([]Key{k})

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.pollOnce(ctx, true)
	}()
	eventually(t, func() bool { return fetcher.callCount() == 1 }, "fallback request issued")

	// A feed tick lands while the batch request is still in flight. The
	// fallback quote is older than the tick and must not win.
	r.table.Apply(k, 2800, base.Add(time.Second), SourceFeed)
	now = base.Add(2 * time.Second)
	close(fetcher.block)
	<-done

	q, ok := r.Quote(k)
	require.True(t, ok)
	assert.Equal(t, 2800.0, q.Price)
	assert.Equal(t, SourceFeed, q.Source)
}

func TestResumeAfterStopSkipsRefresh(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := New(Config{StaleAfter: time.Second, PollInterval: time.Hour}, nil, fetcher)

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	now := base
	r.nowFn = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	r.SetWorkingSet([]Key{KeyOf("A", "NSE")})

	r.Pause()
	now = base.Add(time.Minute)
	r.Stop()

	// The pause outlived the staleness threshold but the reconciler is
	// stopped: Resume must not schedule the one-shot refresh.
	r.Resume()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, fetcher.callCount())
	assert.False(t, r.Refreshing())
}

func TestPauseStopsPollingResumeRefreshes(t *testing.T) {
	k := KeyOf("A", "NSE")
	fetcher := &fakeFetcher{prices: map[Key]float64{k: 10}, block: make(chan struct{})}
	feed := newFakeFeed(false)
	r := New(Config{StaleAfter: 5 * time.Second, PollInterval: time.Hour}, feed, fetcher)

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	now := base
	r.nowFn = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	r.SetWorkingSet([]Key{k})

	r.Pause()
	// Reads keep answering while paused.
	_, ok := r.Quote(k)
	assert.False(t, ok)

	// Pause outlives the staleness threshold: resume kicks a one-shot
	// forced refresh and reports it via Refreshing.
	now = base.Add(time.Minute)
	r.Resume()
	eventually(t, func() bool { return r.Refreshing() }, "refresh in flight")
	close(fetcher.block)
	eventually(t, func() bool { return !r.Refreshing() }, "refresh done")

	assert.Equal(t, 1, fetcher.callCount())
	q, ok := r.Quote(k)
	require.True(t, ok)
	assert.Equal(t, 10.0, q.Price)
	r.Stop()
}

func TestShortPauseSkipsResumeRefresh(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := New(Config{StaleAfter: time.Minute, PollInterval: time.Hour}, nil, fetcher)

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	now := base
	r.nowFn = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()
	r.SetWorkingSet([]Key{KeyOf("A", "NSE")})

	r.Pause()
	now = base.Add(time.Second)
	r.Resume()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, fetcher.callCount())
}
