// Package server wires the FileKeeper components together and runs them:
// the HTTP API, the gRPC health endpoint, the metrics endpoint, the expiry
// sweeper and the reclaim queue.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/config"
	"github.com/dmitrijs2005/filekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/filekeeper/internal/server/reclaim"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filekeeper/internal/server/rest"
	"github.com/dmitrijs2005/filekeeper/internal/server/services"
	"github.com/dmitrijs2005/filekeeper/internal/server/sweeper"
	"github.com/dmitrijs2005/filekeeper/internal/storage"
	"github.com/dmitrijs2005/filekeeper/internal/storage/local"
	s3driver "github.com/dmitrijs2005/filekeeper/internal/storage/s3"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/filekeeper/internal/server/grpc"
)

const healthCheckInterval = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	reclaim *reclaim.Queue
	sweeper *sweeper.Sweeper
	servers []runner
}

type runner interface {
	Run(ctx context.Context) error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	driver, err := newDriver(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	queue := reclaim.New(driver, c.ReclaimWorkers, c.ReclaimQueueSize, logger)
	stagingService := services.NewStagingFileService(db, rm, driver, queue, logger)
	fileService := services.NewFileService(db, rm, stagingService, driver, services.NewLogIndexer(logger), logger)

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		reclaim: queue,
		sweeper: sweeper.New(stagingService, fileService, c.SweepPeriod, c.StagingExpiration, c.SweepBatchLimit, logger),
		servers: []runner{
			rest.NewServer(c.EndpointAddrHTTP, rest.New(stagingService, fileService, c.SecretKey, logger), logger),
			gs.NewGRPCServer(c.EndpointAddrGRPC, db, healthCheckInterval, logger),
			rest.NewServer(c.EndpointAddrMetrics, metrics.Handler(), logger.With("endpoint", "metrics")),
		},
	}, nil
}

func newDriver(ctx context.Context, c *config.Config, logger logging.Logger) (storage.Driver, error) {
	staging, err := local.NewStaging(c.StagingPath, c.MaxFileSize)
	if err != nil {
		return nil, err
	}

	switch c.StorageDriver {
	case config.StorageDriverS3:
		client, err := s3driver.NewClient(ctx, s3driver.ClientConfig{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, err
		}
		return s3driver.New(staging, client, c.S3Bucket, logger), nil
	default:
		return local.New(staging, c.ResidentPath, local.WithLogger(logger))
	}
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

// Run serves until a termination signal arrives or a server fails. The
// sweeper is stopped before the reclaim queue so queued removals drain.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage_driver", app.config.StorageDriver)

	app.initSignalHandler(cancelFunc)

	app.reclaim.Start(ctx)
	app.sweeper.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range app.servers {
		g.Go(func() error { return s.Run(gctx) })
	}

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server failed", "error", err)
	}

	app.sweeper.Stop()
	app.reclaim.Stop()

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Warn(ctx, "closing database", "error", cerr)
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
