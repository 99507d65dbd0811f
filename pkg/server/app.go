package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FeedRelay/internal/domain/repository"
	"FeedRelay/internal/usecase"
	"FeedRelay/pkg/config"
	xhttp "FeedRelay/pkg/http"
	applogger "FeedRelay/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	collector  *usecase.FeedCollector
	httpServer *xhttp.Server
	bus        repository.Bus
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.FeedCollector,
	httpServer *xhttp.Server,
	bus repository.Bus,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		collector:  collector,
		httpServer: httpServer,
		bus:        bus,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the feed and the HTTP server and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	feedCtx, cancelFeed := context.WithCancel(context.Background())
	defer cancelFeed()
	if err := a.collector.Start(feedCtx); err != nil {
		a.log.Error("collector start error", applogger.Error(err))
		a.shutdown(cancelFeed, false)
		return err
	}
	a.log.Info("collector started", applogger.Strings("symbols", a.cfg.Feed.Symbols))

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown(cancelFeed, true)
	return nil
}

// shutdown stops intake first, then the HTTP server, then flushes the bus.
func (a *App) shutdown(cancelFeed context.CancelFunc, started bool) {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cancelFeed()
	if err := a.collector.Shutdown(ctx); err != nil {
		a.log.Warn("collector stop error", applogger.Error(err))
	}
	if started {
		select {
		case <-a.collector.Done():
		case <-ctx.Done():
			a.log.Warn("collector did not stop in time")
		}
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.log.Warn("bus close error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
