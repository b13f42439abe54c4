// Package app wires the tracker together: platform gateway or local store,
// live price layer, refresh manager and HTTP surface.
package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"legtracker/internal/config"
	"legtracker/internal/live"
	"legtracker/internal/logger"
	"legtracker/internal/tracker"
	trackerhttp "legtracker/internal/transport/http"
)

// App owns the assembled components and their run lifecycle.
type App struct {
	cfg        *config.Config
	manager    *tracker.Manager
	reconciler *live.Reconciler
	server     *trackerhttp.Server
	closers    []func() error
}

// NewApp assembles the application from configuration.
func NewApp(cfg *config.Config) (*App, error) {
	b := &builder{cfg: cfg}
	app, err := b.build()
	if err != nil {
		b.closeAll()
		return nil, err
	}
	return app, nil
}

// Run starts all background activity and blocks until ctx is cancelled or
// a component fails.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, runCtx := errgroup.WithContext(ctx)

	a.reconciler.Start(runCtx)
	defer a.reconciler.Stop()

	g.Go(func() error {
		a.manager.Run(runCtx)
		return runCtx.Err()
	})
	g.Go(func() error {
		return a.server.Run(runCtx)
	})

	logger.Infof("legtracker running (refresh=%ds, feed=%v)",
		a.cfg.Tracker.RefreshIntervalSeconds, a.cfg.Live.FeedEnabled)
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// WatchConfig re-applies the runtime-safe tunables when the config file
// changes: refresh cadence and log level.
func (a *App) WatchConfig(path string) {
	err := config.Watch(path, func(next *config.Config) {
		a.manager.SetRefreshInterval(time.Duration(next.Tracker.RefreshIntervalSeconds) * time.Second)
		logger.SetLevel(next.App.LogLevel)
	})
	if err != nil {
		logger.Warnf("app: config watch disabled: %v", err)
	}
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnf("app: close: %v", err)
		}
	}
	a.closers = nil
}
