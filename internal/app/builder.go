package app

import (
	"context"
	"fmt"
	"time"

	"legtracker/internal/config"
	"legtracker/internal/gateway/openalgo"
	"legtracker/internal/live"
	"legtracker/internal/store/sqlite"
	"legtracker/internal/strategy"
	"legtracker/internal/tracker"
	trackerhttp "legtracker/internal/transport/http"
)

type builder struct {
	cfg     *config.Config
	closers []func() error
}

func (b *builder) build() (*App, error) {
	src, actions, fetcher, err := b.buildBackend()
	if err != nil {
		return nil, err
	}
	feed, err := b.buildFeed()
	if err != nil {
		return nil, err
	}

	reconciler := live.New(live.Config{
		FeedEnabled:  b.cfg.Live.FeedEnabled,
		StaleAfter:   time.Duration(b.cfg.Live.StaleAfterMs) * time.Millisecond,
		PollInterval: time.Duration(b.cfg.Live.PollIntervalSeconds) * time.Second,
		PollTimeout:  time.Duration(b.cfg.Live.PollTimeoutSeconds) * time.Second,
	}, feed, fetcher)

	manager := tracker.NewManager(tracker.Config{
		RefreshInterval: time.Duration(b.cfg.Tracker.RefreshIntervalSeconds) * time.Second,
	}, src, actions, reconciler)

	server, err := trackerhttp.NewServer(trackerhttp.ServerConfig{
		Addr:    b.cfg.HTTP.Addr,
		Tracker: manager,
		Live:    reconciler,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:        b.cfg,
		manager:    manager,
		reconciler: reconciler,
		server:     server,
		closers:    b.closers,
	}, nil
}

// buildBackend picks how snapshots are read and writes are delivered:
// the platform REST API, or its sqlite database directly.
func (b *builder) buildBackend() (tracker.SnapshotSource, tracker.ActionClient, live.QuoteFetcher, error) {
	platformCfg := openalgo.Config{
		APIURL:         b.cfg.Platform.APIURL,
		WSURL:          b.cfg.Platform.WSURL,
		APIKey:         b.cfg.Platform.APIKey,
		TimeoutSeconds: b.cfg.Platform.TimeoutSeconds,
	}
	switch b.cfg.Platform.Backend {
	case config.BackendSqlite:
		st, err := sqlite.NewStore(b.cfg.Store.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening store failed: %w", err)
		}
		b.closers = append(b.closers, st.Close)
		var fetcher live.QuoteFetcher
		if b.cfg.Platform.APIURL != "" {
			client, err := openalgo.NewClient(platformCfg)
			if err != nil {
				return nil, nil, nil, err
			}
			fetcher = client
		}
		return st, st, fetcher, nil
	case config.BackendREST:
		client, err := openalgo.NewClient(platformCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		return restSource{client}, client, client, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown platform backend %q", b.cfg.Platform.Backend)
	}
}

func (b *builder) buildFeed() (live.Feed, error) {
	if !b.cfg.Live.FeedEnabled {
		return nil, nil
	}
	feed, err := openalgo.NewWSFeed(openalgo.Config{
		WSURL:  b.cfg.Platform.WSURL,
		APIKey: b.cfg.Platform.APIKey,
	})
	if err != nil {
		return nil, err
	}
	return feed, nil
}

func (b *builder) closeAll() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
	b.closers = nil
}

// restSource adapts the platform client's snapshot call to the tracker's
// source interface.
type restSource struct {
	client *openalgo.Client
}

func (s restSource) ListInstances(ctx context.Context) ([]*strategy.Instance, error) {
	return s.client.GetStrategyStates(ctx)
}
