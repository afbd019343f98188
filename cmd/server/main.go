package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	httpadapter "coitrack/internal/adapters/http"
	"coitrack/internal/adapters/localfiles"
	pg "coitrack/internal/adapters/postgres"
	"coitrack/internal/adapters/render"
	"coitrack/internal/catalog"
	"coitrack/internal/config"
	"coitrack/internal/logger"
	"coitrack/internal/ports"
	certsvc "coitrack/internal/services/certificates"
	compsvc "coitrack/internal/services/compliance"
	reqsvc "coitrack/internal/services/requirements"
	"coitrack/internal/workers/notifier"
)

func main() {
	cfg, cfgErr := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if cfgErr != nil {
		log.Warn("config", "warning", cfgErr)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for Postgres adapters")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect error", "error", err)
	}
	defer db.Close()

	// Wire repositories to services (ports)
	var _ ports.CertificateRepository = db
	var _ ports.CatalogRepository = db
	var _ ports.OutboxRepository = db

	cat, err := loadCatalog(ctx, db, cfg, log)
	if err != nil {
		log.Fatal("catalog load error", "error", err)
	}

	files, err := localfiles.New(cfg.UploadsDir, cfg.BaseURL)
	if err != nil {
		log.Fatal("uploads dir error", "error", err)
	}

	resolver := reqsvc.New(cat)
	validator := compsvc.New(clockwork.NewRealClock(), cfg.ExpiryLookAheadDays)
	certs := certsvc.New(db, resolver, validator, render.TextRenderer{}, files, log)

	srv := httpadapter.New(certs, resolver, log)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	if cfg.NotifyWorkers > 0 {
		go notifier.Run(ctx, db, notifier.LogNotifier{Log: log}, cfg.NotifyWorkers, cfg.NotifyPollInterval, log)
		log.Info("notification dispatchers started", "count", cfg.NotifyWorkers)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
	log.Info("listening", "addr", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		log.Fatal("server error", "error", err)
	}
}

// loadCatalog builds the requirement catalog from Postgres, falling back to
// the built-in seed when the trades table is empty (fresh local database).
func loadCatalog(ctx context.Context, repo ports.CatalogRepository, cfg config.Config, log *logger.Logger) (*catalog.Catalog, error) {
	trades, err := repo.LoadTrades(ctx)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		log.Warn("catalog tables empty, using seed catalog")
		return catalog.SeedCatalog(), nil
	}
	programs, err := repo.LoadPrograms(ctx)
	if err != nil {
		return nil, err
	}
	jurisdiction, err := repo.LoadJurisdictionRequirements(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(trades, programs, jurisdiction, catalog.ParseRanking(cfg.TierPriority)), nil
}
