// Folio is a personal portfolio tracker: it imports brokerage transaction
// exports, enriches them with market data and serves the dashboard and API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/modules/charts"
	chartshandlers "github.com/aristath/folio/internal/modules/charts/handlers"
	"github.com/aristath/folio/internal/modules/importer"
	importhandlers "github.com/aristath/folio/internal/modules/importer/handlers"
	"github.com/aristath/folio/internal/modules/maintenance"
	maintenancehandlers "github.com/aristath/folio/internal/modules/maintenance/handlers"
	"github.com/aristath/folio/internal/modules/marketdata"
	marketdatahandlers "github.com/aristath/folio/internal/modules/marketdata/handlers"
	"github.com/aristath/folio/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/folio/internal/modules/portfolio/handlers"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/aristath/folio/internal/server"
	"github.com/aristath/folio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Folio exited with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	db, err := database.New(database.Config{Path: cfg.DatabasePath})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}
	log.Info().Str("path", cfg.DatabasePath).Msg("Database ready")

	conn := db.Conn()

	// Market data plumbing
	yahooClient := yahoo.NewClient(log)
	mapping, err := marketdata.LoadMappingFile(cfg.MappingFile)
	if err != nil {
		return err
	}
	log.Info().Int("entries", mapping.Size()).Msg("Ticker mapping loaded")

	resolver := marketdata.NewResolver(yahooClient, mapping, log)
	reconciler := marketdata.NewReconciler(conn, yahooClient, cfg.LookbackDays, log)
	indexSyncer := marketdata.NewIndexSyncer(conn, yahooClient, log)
	marketService := marketdata.NewService(conn, resolver, reconciler, indexSyncer, log)

	cache := clientdata.NewRepository(conn)
	liveService := marketdata.NewLiveService(conn, yahooClient, cache, log)

	// Portfolio views
	stockRepo := portfolio.NewStockRepository(conn, log)
	txRepo := portfolio.NewTransactionRepository(conn, log)
	priceRepo := portfolio.NewPriceRepository(conn, log)
	portfolioService := portfolio.NewService(stockRepo, txRepo, priceRepo, log)
	chartService := charts.NewService(stockRepo, txRepo, priceRepo, log)
	csvImporter := importer.NewImporter(stockRepo, txRepo, log)

	// Admin
	purger := maintenance.NewPurger(conn, log)
	var s3Client *reliability.S3Client
	if cfg.BackupEnabled() {
		s3Client, err = reliability.NewS3Client(context.Background(), reliability.S3Config{
			Bucket:    cfg.BackupBucket,
			Endpoint:  cfg.BackupEndpoint,
			Region:    cfg.BackupRegion,
			AccessKey: cfg.BackupAccessKey,
			SecretKey: cfg.BackupSecretKey,
		}, log)
		if err != nil {
			return err
		}
		log.Info().Str("bucket", cfg.BackupBucket).Msg("Backup upload enabled")
	}
	backupService := reliability.NewBackupService(
		db, filepath.Join(cfg.DataDir, "backups"), s3Client, cfg.BackupKeep, log)

	// Background refresh
	sched := scheduler.New(log)
	if cfg.RefreshSchedule != "" {
		if err := sched.AddJob(cfg.RefreshSchedule, scheduler.NewRefreshJob(marketService, log)); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := server.New(server.Config{
		Log:         log,
		DB:          db,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		Portfolio:   portfoliohandlers.NewHandler(portfolioService, log),
		Charts:      chartshandlers.NewHandler(chartService, log),
		MarketData:  marketdatahandlers.NewHandler(marketService, liveService, log),
		Import:      importhandlers.NewHandler(csvImporter, log),
		Maintenance: maintenancehandlers.NewHandler(purger, backupService, log),
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
