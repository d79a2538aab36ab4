// Package app wires configuration, stores, token managers, the scheduler
// and the HTTP server into one explicitly constructed application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"smart-coop/internal/config"
	"smart-coop/internal/scheduler"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type App struct {
	cfg    *config.Config
	logger *slog.Logger

	db        *gorm.DB
	engine    *gin.Engine
	server    *http.Server
	scheduler *scheduler.Scheduler

	closers []func() error

	schedulerCtx     context.Context
	stopScheduler    context.CancelFunc
	schedulerStarted atomic.Bool
	schedulerDone    chan struct{}
	shutdownOnce     sync.Once
}

// New opens every store named by cfg and builds the router. On error the
// stores opened so far are closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{cfg: cfg, logger: logger, schedulerDone: make(chan struct{})}
	a.schedulerCtx, a.stopScheduler = context.WithCancel(context.Background())
	if err := a.setup(ctx, opts.withDefaults(cfg, logger)); err != nil {
		a.stopScheduler()
		_ = a.close()
		return nil, err
	}

	a.server = &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Address, strconv.Itoa(cfg.Server.Port)),
		Handler: a.engine,
	}
	return a, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.engine }

// RunJob runs a scheduled job immediately.
func (a *App) RunJob(ctx context.Context, name string) error {
	return a.scheduler.RunNow(ctx, name)
}

// Run starts the scheduler and serves HTTP until Shutdown.
func (a *App) Run() error {
	if a.schedulerStarted.CompareAndSwap(false, true) {
		go func() {
			defer close(a.schedulerDone)
			_ = a.scheduler.Run(a.schedulerCtx)
		}()
	}

	a.logger.Info("server listening", "addr", a.server.Addr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, stops the
// scheduler and closes the stores.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.shutdownOnce.Do(func() {
		if shutdownErr := a.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("shutdown http: %w", shutdownErr)
		}
		a.stopScheduler()
		if a.schedulerStarted.Load() {
			select {
			case <-a.schedulerDone:
			case <-ctx.Done():
				a.logger.Warn("scheduler did not stop before shutdown deadline")
			}
		}
		err = errors.Join(err, a.close())
	})
	return err
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
