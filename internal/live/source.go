package live

import (
	"context"
	"time"
)

// Tick is one push-feed price update.
type Tick struct {
	Key   Key
	Price float64
	At    time.Time
}

// FeedStats mirrors the health counters a feed implementation keeps.
type FeedStats struct {
	Connected       bool
	Reconnects      int
	SubscribeErrors int
	LastError       string
}

// Feed is the push side of the reconciliation layer. Subscribe replaces any
// previous subscription with exactly the given key set; the returned channel
// closes when ctx is cancelled or the connection is torn down.
type Feed interface {
	Subscribe(ctx context.Context, keys []Key) (<-chan Tick, error)

	Connected() bool

	Stats() FeedStats

	Close() error
}

// QuoteFetcher is the pull fallback: one batch request covering the given
// keys. Implementations must honor ctx deadlines.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, keys []Key) (map[Key]float64, error)
}
