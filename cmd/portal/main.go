package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/clinic-portal/internal/api/router"
	"github.com/clinicore/clinic-portal/internal/appointments"
	"github.com/clinicore/clinic-portal/internal/checkout"
	"github.com/clinicore/clinic-portal/internal/clinicapi"
	appconfig "github.com/clinicore/clinic-portal/internal/config"
	"github.com/clinicore/clinic-portal/internal/navigation"
	"github.com/clinicore/clinic-portal/internal/notes"
	"github.com/clinicore/clinic-portal/internal/observability/metrics"
	"github.com/clinicore/clinic-portal/internal/waittimes"
	"github.com/clinicore/clinic-portal/internal/wompi"
	"github.com/clinicore/clinic-portal/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic portal",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.ClinicAPIBaseURL == "" {
		logger.Error("CLINIC_API_BASE_URL is required")
		os.Exit(1)
	}
	if cfg.PortalJWTSecret == "" {
		logger.Error("PORTAL_JWT_SECRET is required")
		os.Exit(1)
	}

	clinicClient := clinicapi.NewClient(cfg.ClinicAPIBaseURL, cfg.ClinicAPIToken, logger).
		WithTimeout(cfg.ClinicAPITimeout)
	vendorClient := wompi.NewClient(cfg.VendorBaseURL, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	scripts := checkout.NewScriptLoader(vendorClient, cfg.VendorPublicKey)
	widgetFactory := func(params wompi.WidgetParams) checkout.Widget {
		return vendorClient.NewWidget(params)
	}

	checkoutHandler := checkout.NewHandler(clinicClient, scripts, widgetFactory, logger).
		WithInterval(cfg.CheckoutPollInterval).
		WithMetrics(checkoutMetrics).
		WithRedirectURL(cfg.VendorRedirectURL).
		WithInvoices(clinicClient)

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		checkoutHandler.WithJournal(checkout.NewRepository(pool))
		logger.Info("checkout attempt journal enabled")
	} else {
		logger.Warn("DATABASE_URL not set, checkout attempts will not be journaled")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	} else {
		logger.Warn("REDIS_ADDR not set, wait-time reports will not be cached")
	}

	waitTimesService := waittimes.NewService(clinicClient, rdb, cfg.WaitTimesTTL, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		NavigationHandler:   navigation.NewHandler(logger),
		AppointmentsHandler: appointments.NewHandler(clinicClient, logger),
		NotesHandler:        notes.NewHandler(clinicClient, logger),
		CheckoutHandler:     checkoutHandler,
		WaitTimesHandler:    waittimes.NewHandler(waitTimesService, logger),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		JWTSecret:           cfg.PortalJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
