// Package server wires the allocation engine together: database, event bus,
// orchestrator and expiry sweeper. It handles graceful shutdown on SIGINT,
// SIGTERM and SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/allocator/internal/dbx"
	"github.com/dmitrijs2005/allocator/internal/logging"
	"github.com/dmitrijs2005/allocator/internal/server/config"
	"github.com/dmitrijs2005/allocator/internal/server/events"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/allocator/internal/server/services"
	"github.com/dmitrijs2005/allocator/internal/server/sweeper"
	"golang.org/x/sync/errgroup"
)

const dbStartupTimeout = 30 * time.Second

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	bus         *events.Bus
	allocation  *services.AllocationService
	sweeper     *sweeper.Sweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := dbx.PingWithBackoff(ctx, db, dbStartupTimeout); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	subscribers := []events.Subscriber{events.NewLogSubscriber(logger)}
	if c.AuditEnabled() {
		client, err := events.NewS3Client(ctx, c.AuditRegion, c.AuditEndpoint, c.AuditUser, c.AuditPassword)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("audit archive init error: %w", err)
		}
		subscribers = append(subscribers, events.NewArchiver(client, c.AuditBucket))
	}
	bus := events.NewBus(events.DefaultBufferSize, logger, subscribers...)

	rm := repomanager.NewPostgresRepositoryManager()
	allocation := services.NewAllocationService(db, rm, rm.Profiles(db), bus, c, logger)
	sw := sweeper.NewSweeper(db, rm, allocation, c.SweepInterval, c.SweepBatchSize, logger)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: rm,
		bus:         bus,
		allocation:  allocation,
		sweeper:     sw,
	}, nil
}

// Allocation exposes the orchestrator for one-shot commands.
func (app *App) Allocation() *services.AllocationService {
	return app.allocation
}

// Sweeper exposes the expiry sweeper for one-shot commands.
func (app *App) Sweeper() *sweeper.Sweeper {
	return app.sweeper
}

// Migrate applies the embedded schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

func (app *App) Close() error {
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run applies migrations, then runs the sweeper and the event bus until a
// signal arrives or ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	if err := app.Migrate(ctx); err != nil {
		return err
	}

	app.logger.Info(ctx, "Starting app...", "sweep_interval", app.config.SweepInterval.String(), "offer_ttl", app.config.OfferTTL.String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.bus.Run(ctx) })
	g.Go(func() error { return app.sweeper.Run(ctx) })

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// Do runs fn with the event bus delivering in the background and waits for
// queued events to be handled before returning.
func (app *App) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	busCtx, stopBus := context.WithCancel(ctx)

	g := new(errgroup.Group)
	g.Go(func() error { return app.bus.Run(busCtx) })

	err := fn(ctx)
	stopBus()
	if werr := g.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}
