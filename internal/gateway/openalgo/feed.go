package openalgo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"legtracker/internal/live"
	"legtracker/internal/logger"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadLimit        = 1 << 20
	wsBackoffStart     = time.Second
	wsBackoffMax       = 30 * time.Second
)

// WSFeed implements live.Feed over the platform's streaming endpoint.
// Each Subscribe call replaces the previous subscription; the read loop
// reconnects with exponential backoff until its context is cancelled.
type WSFeed struct {
	cfg Config

	mu       sync.Mutex
	cancel   context.CancelFunc
	connLock sync.Mutex
	conn     *websocket.Conn

	connected atomic.Bool

	statsMu sync.Mutex
	stats   live.FeedStats
}

// NewWSFeed builds the feed client. It does not connect until Subscribe.
func NewWSFeed(cfg Config) (*WSFeed, error) {
	cfg = cfg.normalized()
	if cfg.WSURL == "" {
		return nil, fmt.Errorf("ws url cannot be empty")
	}
	return &WSFeed{cfg: cfg}, nil
}

func (f *WSFeed) Subscribe(ctx context.Context, keys []live.Key) (<-chan live.Tick, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("subscribe requires at least one symbol")
	}
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()

	out := make(chan live.Tick, 256)
	go f.run(runCtx, keys, out)
	return out, nil
}

func (f *WSFeed) Connected() bool {
	return f.connected.Load()
}

func (f *WSFeed) Stats() live.FeedStats {
	f.statsMu.Lock()
	defer f.statsMu.Unlock()
	s := f.stats
	s.Connected = f.connected.Load()
	return s
}

func (f *WSFeed) Close() error {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.mu.Unlock()
	f.connLock.Lock()
	defer f.connLock.Unlock()
	if f.conn != nil {
		err := f.conn.Close()
		f.conn = nil
		return err
	}
	return nil
}

func (f *WSFeed) run(ctx context.Context, keys []live.Key, out chan<- live.Tick) {
	defer close(out)
	defer f.connected.Store(false)
	backoff := wsBackoffStart
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		if !first {
			f.noteReconnect()
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			backoff *= 2
			if backoff > wsBackoffMax {
				backoff = wsBackoffMax
			}
		}
		first = false

		conn, err := f.dial(ctx)
		if err != nil {
			f.noteError(fmt.Sprintf("dial: %v", err))
			continue
		}
		if err := f.sendSubscribe(conn, keys); err != nil {
			f.noteSubscribeError(err)
			conn.Close()
			continue
		}
		f.connected.Store(true)
		backoff = wsBackoffStart
		logger.Infof("feed: connected, subscribed %d symbols", len(keys))

		err = f.readLoop(ctx, conn, out)
		f.connected.Store(false)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			f.noteError(err.Error())
			logger.Warnf("feed: connection lost: %v", err)
		}
	}
}

func (f *WSFeed) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.WSURL, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(wsReadLimit)
	f.connLock.Lock()
	f.conn = conn
	f.connLock.Unlock()
	return conn, nil
}

func (f *WSFeed) sendSubscribe(conn *websocket.Conn, keys []live.Key) error {
	type symbolMsg struct {
		Symbol   string `json:"symbol"`
		Exchange string `json:"exchange"`
	}
	msg := struct {
		Action  string      `json:"action"`
		APIKey  string      `json:"apikey,omitempty"`
		Mode    string      `json:"mode"`
		Symbols []symbolMsg `json:"symbols"`
	}{Action: "subscribe", APIKey: f.cfg.APIKey, Mode: "ltp"}
	for _, k := range keys {
		msg.Symbols = append(msg.Symbols, symbolMsg{Symbol: k.Symbol, Exchange: k.Exchange})
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (f *WSFeed) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- live.Tick) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		tick, ok := parseTick(raw)
		if !ok {
			continue
		}
		select {
		case out <- tick:
		case <-ctx.Done():
			return nil
		default:
			// Slow consumer: drop the tick, the next one supersedes it.
		}
	}
}

// parseTick extracts a price update from a feed message. Non-tick frames
// (acks, heartbeats) report ok=false.
func parseTick(raw []byte) (live.Tick, bool) {
	doc := gjson.ParseBytes(raw)
	ltp := doc.Get("data.ltp")
	if !ltp.Exists() {
		ltp = doc.Get("ltp")
	}
	if !ltp.Exists() {
		return live.Tick{}, false
	}
	symbol := doc.Get("symbol").String()
	if symbol == "" {
		symbol = doc.Get("data.symbol").String()
	}
	if symbol == "" {
		return live.Tick{}, false
	}
	exchange := doc.Get("exchange").String()
	if exchange == "" {
		exchange = doc.Get("data.exchange").String()
	}
	at := time.Time{}
	if ts := doc.Get("data.timestamp"); ts.Exists() {
		at = time.UnixMilli(ts.Int())
	} else if ts := doc.Get("timestamp"); ts.Exists() {
		at = time.UnixMilli(ts.Int())
	}
	return live.Tick{
		Key:   live.KeyOf(symbol, exchange),
		Price: ltp.Float(),
		At:    at,
	}, true
}

func (f *WSFeed) noteReconnect() {
	f.statsMu.Lock()
	f.stats.Reconnects++
	f.statsMu.Unlock()
}

func (f *WSFeed) noteSubscribeError(err error) {
	f.statsMu.Lock()
	f.stats.SubscribeErrors++
	f.stats.LastError = err.Error()
	f.statsMu.Unlock()
}

func (f *WSFeed) noteError(msg string) {
	f.statsMu.Lock()
	f.stats.LastError = msg
	f.statsMu.Unlock()
}
