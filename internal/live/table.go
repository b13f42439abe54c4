package live

import (
	"strings"
	"sync"
	"time"
)

// Key identifies one quoted instrument. Legs across strategies dedupe to
// the same key.
type Key struct {
	Symbol   string
	Exchange string
}

// KeyOf normalizes a symbol+exchange pair into a Key.
func KeyOf(symbol, exchange string) Key {
	return Key{
		Symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		Exchange: strings.ToUpper(strings.TrimSpace(exchange)),
	}
}

func (k Key) String() string {
	if k.Exchange == "" {
		return k.Symbol
	}
	return k.Exchange + ":" + k.Symbol
}

// PriceSource tells which path produced a quote.
type PriceSource string

const (
	SourceFeed     PriceSource = "feed"
	SourceFallback PriceSource = "fallback"
)

// Quote is a copy-out snapshot of one table entry. Stale means the value is
// older than the configured threshold; it is still the last known good price
// and is never withheld.
type Quote struct {
	Key       Key
	Price     float64
	UpdatedAt time.Time
	Source    PriceSource
	Stale     bool
}

type tableEntry struct {
	price     float64
	updatedAt time.Time
	source    PriceSource
}

// Table is the single shared price map. All writes pass through the
// per-key timestamp guard in Apply; readers get value copies.
type Table struct {
	mu      sync.RWMutex
	entries map[Key]tableEntry
}

func NewTable() *Table {
	return &Table{entries: make(map[Key]tableEntry)}
}

// Apply records a price unless the table already holds a newer update for
// the key. This is what keeps an in-flight fallback response from clobbering
// a feed tick that arrived first. Returns whether the update was applied.
func (t *Table) Apply(k Key, price float64, at time.Time, src PriceSource) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.entries[k]; ok && at.Before(cur.updatedAt) {
		return false
	}
	t.entries[k] = tableEntry{price: price, updatedAt: at, source: src}
	return true
}

// Get returns the current quote for k with its staleness computed against
// now. ok=false only when no update has ever been recorded.
func (t *Table) Get(k Key, now time.Time, staleAfter time.Duration) (Quote, bool) {
	t.mu.RLock()
	e, ok := t.entries[k]
	t.mu.RUnlock()
	if !ok {
		return Quote{}, false
	}
	return quoteFromEntry(k, e, now, staleAfter), true
}

// Snapshot copies out every entry.
func (t *Table) Snapshot(now time.Time, staleAfter time.Duration) map[Key]Quote {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[Key]Quote, len(t.entries))
	for k, e := range t.entries {
		out[k] = quoteFromEntry(k, e, now, staleAfter)
	}
	return out
}

// Retain drops entries whose key is no longer part of the working set.
func (t *Table) Retain(keys map[Key]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.entries {
		if !keys[k] {
			delete(t.entries, k)
		}
	}
}

func quoteFromEntry(k Key, e tableEntry, now time.Time, staleAfter time.Duration) Quote {
	stale := staleAfter > 0 && now.Sub(e.updatedAt) > staleAfter
	return Quote{
		Key:       k,
		Price:     e.price,
		UpdatedAt: e.updatedAt,
		Source:    e.source,
		Stale:     stale,
	}
}
