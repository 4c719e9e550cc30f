// Package app wires configuration into a running bot: market stack, portfolio,
// engine, journal and HTTP surface.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	tbcfg "tidebot/internal/config"
	cfgloader "tidebot/internal/config/loader"
	"tidebot/internal/engine"
	"tidebot/internal/logger"
	"tidebot/internal/market"
	"tidebot/internal/storage"
	tradehttp "tidebot/internal/transport/http"
)

type App struct {
	cfg     *tbcfg.Config
	engine  *engine.Engine
	http    *tradehttp.Server
	journal *storage.Journal
	bus     *engine.Bus
	feed    market.Feed
	watcher *cfgloader.Watcher
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *tbcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts the engine, the HTTP server and the journal writer, and blocks
// until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	if a.journal != nil {
		events, cancel := a.bus.Subscribe(256)
		group.Go(func() error {
			defer cancel()
			a.journalLoop(ctx, events)
			return nil
		})
	}

	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		return a.engine.Run(ctx)
	})

	return group.Wait()
}

// journalLoop drains the event bus into the journal. Persistence failures are
// logged, never propagated: the audit trail must not stop trading.
func (a *App) journalLoop(ctx context.Context, events <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := a.journal.RecordEvent(evt); err != nil {
				logger.Warnf("App: event journal write failed: %v", err)
			}
		}
	}
}

// Engine exposes the engine instance for tests and replay harnesses.
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) close() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			logger.Warnf("App: watcher close failed: %v", err)
		}
	}
	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			logger.Warnf("App: feed close failed: %v", err)
		}
	}
	a.bus.Close()
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warnf("App: journal close failed: %v", err)
		}
	}
}
