package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"medsales/m/internal/api"
	"medsales/m/internal/config"
	"medsales/m/internal/database"
	"medsales/m/internal/logger"
	"medsales/m/internal/metrics"
	"medsales/m/internal/migrations"
	"medsales/m/internal/report"
	"medsales/m/internal/seed"
	"medsales/m/internal/store"
)

func main() {
	flags := pflag.NewFlagSet("backend", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	seedFile := flags.String("seed", "", "inventory CSV or XLSX to import (overrides SEED_FILE)")
	seedOverwrite := flags.Bool("seed-overwrite", false, "let the seed sheet replace stored values of existing items")
	migrateOnly := flags.Bool("migrate-only", false, "apply migrations and exit")
	_ = flags.Parse(os.Args[1:])

	cfg := config.Load(*envFile)
	if *seedFile != "" {
		cfg.SeedFile = *seedFile
	}

	log := logger.Must(cfg.Env)
	defer func() { _ = log.Sync() }()
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	db, dialect, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(db, dialect, log); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}
	log.Info("migrations applied", zap.String("dialect", string(dialect)))
	if *migrateOnly {
		return
	}

	st := store.New(db, dialect)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := seed.EnsureAdmin(ctx, st, cfg.AdminUsername, cfg.AdminPassword, log); err != nil {
		log.Fatal("admin seed failed", zap.Error(err))
	}
	if _, err := seed.LoadInventory(ctx, st, cfg.SeedFile, *seedOverwrite, log); err != nil {
		log.Warn("inventory seed failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := api.Options{
		Secret:    cfg.Secret,
		PublicURL: cfg.PublicURL,
		StaticDir: cfg.StaticDir,
		Reports:   report.NewWriter(cfg.ReportDir),
		Logger:    log,
		Metrics:   metrics.NewRPC(reg, "medsales", "rpc_server"),
	}
	if cfg.MetricsEnabled {
		opts.Gatherer = reg
	}
	handler := api.New(st, opts)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			stop()
		}
	}()
	log.Info("medicine sales backend starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	log.Info("graceful shutdown complete")
}
