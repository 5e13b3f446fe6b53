// Package daemon runs the sync lifecycle.
//
// The daemon:
// 1. Performs a full reconcile of remote wizards into the local mirror
// 2. Watches <root>/wizards for file changes
// 3. Uploads changed artifacts one event at a time
// 4. Waits for the current upload and stops the watcher on shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/docwiz/wizsync/internal/reconcile"
	"github.com/docwiz/wizsync/internal/report"
	"github.com/docwiz/wizsync/internal/watch"
)

// Syncer performs the initial full pass.
type Syncer interface {
	Run(ctx context.Context) (reconcile.Summary, error)
}

// Dispatcher consumes change events until the channel closes or ctx is done.
type Dispatcher interface {
	Run(ctx context.Context, events <-chan watch.Event) error
}

// Local is the local mirror the daemon prepares and watches.
type Local interface {
	Root() string
	Dir() string
	EnsureDir() error
}

// Config holds configuration for the daemon.
type Config struct {
	// Mirror is the local sync root; its Dir is watched.
	Mirror Local

	// Reporter receives lifecycle events.
	Reporter report.Reporter

	// Logger for watcher diagnostics
	Logger *slog.Logger
}

// Daemon orchestrates the initial sync, file watching and uploads.
type Daemon struct {
	syncer     Syncer
	dispatcher Dispatcher
	config     Config
}

// New creates a new Daemon instance.
func New(syncer Syncer, dispatcher Dispatcher, config Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if config.Mirror == nil {
		return nil, fmt.Errorf("mirror cannot be nil")
	}
	if config.Mirror.Root() == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	if config.Reporter == nil {
		config.Reporter = report.Discard
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	return &Daemon{
		syncer:     syncer,
		dispatcher: dispatcher,
		config:     config,
	}, nil
}

// RunOnce performs the full sync and returns.
func (d *Daemon) RunOnce(ctx context.Context) (reconcile.Summary, error) {
	if err := d.config.Mirror.EnsureDir(); err != nil {
		return reconcile.Summary{}, err
	}

	sum, err := d.syncer.Run(ctx)
	if err != nil {
		return sum, fmt.Errorf("initial sync failed: %w", err)
	}
	return sum, nil
}

// Run performs the full sync, then watches for changes until ctx is
// cancelled. The watcher is armed only after the sync completes.
//
// This blocks until ctx is cancelled or an error occurs. Cancellation is a
// clean shutdown and returns nil.
func (d *Daemon) Run(ctx context.Context) error {
	if _, err := d.RunOnce(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	dir := d.config.Mirror.Dir()
	fw, err := watch.NewFileWatcher()
	if err != nil {
		return err
	}
	if err := fw.Start(dir); err != nil {
		_ = fw.Stop()
		return err
	}

	d.config.Reporter.Report(report.New(report.LevelInfo, report.ActionWatching, "Watching "+dir).AtPath(dir))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.dispatcher.Run(gctx, fw.Events())
	})
	g.Go(func() error {
		d.drainErrors(gctx, fw.Errors())
		return nil
	})

	err = g.Wait()

	if stopErr := fw.Stop(); stopErr != nil {
		d.config.Logger.Warn("error closing watcher", "error", stopErr)
	}
	d.config.Reporter.Report(report.New(report.LevelInfo, report.ActionStopped, "Daemon stopped"))

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *Daemon) drainErrors(ctx context.Context, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			d.config.Logger.Warn("watcher error", "error", err)
		}
	}
}
