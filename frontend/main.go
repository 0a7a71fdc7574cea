package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"medsales/m/internal/app"
	"medsales/m/internal/config"
	"medsales/m/internal/logger"
	"medsales/m/internal/metrics"
	"medsales/m/internal/offline"
	"medsales/m/internal/rpc"
	"medsales/m/internal/shell"
)

func main() {
	flags := pflag.NewFlagSet("frontend", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	backendURL := flags.String("backend", "", "backend /exec endpoint (overrides BACKEND_URL)")
	transport := flags.String("transport", "", "post or jsonp (overrides RPC_TRANSPORT)")
	timeout := flags.Duration("timeout", 0, "per-call timeout (overrides RPC_TIMEOUT)")
	precache := flags.StringSlice("precache", nil, "extra URLs to warm the offline cache with")
	metricsAddr := flags.String("metrics-addr", "", "serve client metrics on this address")
	_ = flags.Parse(os.Args[1:])

	cfg := config.Load(*envFile)
	if *backendURL != "" {
		cfg.BackendURL = *backendURL
	}
	if *transport != "" {
		cfg.RPCTransport = *transport
	}
	if *timeout > 0 {
		cfg.RPCTimeout = *timeout
	}

	log := logger.Must(cfg.Env)
	defer func() { _ = log.Sync() }()
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, err := offline.New(http.DefaultTransport, cfg.BackendURL, cfg.CacheSize, log.Named("offline"))
	if err != nil {
		log.Fatal("offline cache setup failed", zap.Error(err))
	}
	client := cache.Client()
	if cfg.BackendURL == "" {
		log.Warn("BACKEND_URL not set; every call will fail until it is configured")
	} else {
		urls := append(shellAssets(cfg.BackendURL), *precache...)
		if err := cache.Precache(ctx, urls); err != nil {
			log.Debug("precache incomplete", zap.Error(err))
		}
		log.Debug("offline cache warmed", zap.Int("entries", cache.Len()))
	}

	tr, err := rpc.NewTransport(cfg.RPCTransport, cfg.BackendURL, client, rpc.NewCallbackRegistry())
	if err != nil {
		log.Fatal("rpc transport setup failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	bridge := rpc.NewBridge(tr,
		rpc.WithTimeout(cfg.RPCTimeout),
		rpc.WithLogger(log.Named("rpc")),
		rpc.WithMetrics(metrics.NewRPC(reg, "medsales", "rpc_client")),
	)
	log.Info("medicine sales terminal starting",
		zap.String("backend", cfg.BackendURL),
		zap.String("transport", cfg.RPCTransport),
		zap.Duration("timeout", bridge.Timeout()))
	if *metricsAddr != "" {
		srv := &http.Server{Addr: *metricsAddr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics server error", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	ctrl := app.New(bridge, app.WithLogger(log.Named("app")))
	sh := shell.New(ctrl, os.Stdin, os.Stdout, shell.WithDownloader(client))
	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("shell stopped", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("interrupted")
	}
}

// shellAssets lists the static pages served next to the backend endpoint.
func shellAssets(endpoint string) []string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil
	}
	base := u.Scheme + "://" + u.Host
	return []string{base + "/static/index.html"}
}
