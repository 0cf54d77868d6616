package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"quotewizard/internal/api"
	"quotewizard/internal/catalog"
	"quotewizard/internal/observability"
	"quotewizard/internal/submission"
	"quotewizard/internal/wizard"
)

func main() {
	// Until the config is loaded, log with whatever the process environment says.
	logger := observability.NewLogger(observability.ConfigFromEnv())

	configPath := flag.String("config", os.Getenv("QUOTEWIZARD_CONFIG"), "path to YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	addr := flag.String("addr", "", "listen address (host:port), overrides config")
	migrate := flag.String("migrate", "", "run migrations: 'up' to apply, 'status' to show status")
	flag.Parse()

	cfg, err := LoadConfig(*configPath, *envFile)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	logger = observability.NewLogger(cfg.LoggerConfig())

	sentryEnabled := false
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      envOr("SENTRY_ENVIRONMENT", "production"),
			Release:          envOr("APP_VERSION", "dev"),
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized", "environment", envOr("SENTRY_ENVIRONMENT", "production"))
			sentryEnabled = true
		}
	}

	if *migrate != "" {
		runMigrationsCLI(cfg, logger, *migrate)
		return
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			logger.Error("catalog load failed", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
		logger.Info("catalog loaded", "path", cfg.CatalogPath, "plans", len(cat.Plans), "countries", len(cat.Countries))
	}

	store, auditLogger := selectBackend(cfg, logger)

	metricsCfg := observability.MetricsConfigFromEnv()
	var metrics *observability.Metrics
	if metricsCfg.Enabled {
		metrics = observability.NewMetrics(metricsCfg)
		logger.Info("metrics enabled", "namespace", metricsCfg.Namespace, "version", metricsCfg.Version)
	} else {
		logger.Info("metrics disabled")
	}

	rateCfg := api.RateLimitConfig{
		RequestsPerSecond:       cfg.RateLimitRPS,
		Burst:                   cfg.RateLimitBurst,
		SubmitRequestsPerSecond: cfg.SubmitRateLimitRPS,
		SubmitBurst:             cfg.SubmitRateLimitBurst,
		Metrics:                 metrics,
	}
	if cfg.TrustedProxies != "" {
		proxies, err := api.ParseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			logger.Error("invalid trusted proxies", "error", err)
		} else {
			rateCfg.TrustedProxies = proxies
			logger.Info("trusted proxies configured", "count", len(proxies.CIDRs))
		}
	}
	if rateCfg.Enabled() {
		logger.Info("rate limiting configured",
			"requests_per_second", rateCfg.RequestsPerSecond, "burst", rateCfg.Burst,
			"submit_requests_per_second", rateCfg.SubmitRequestsPerSecond, "submit_burst", rateCfg.SubmitBurst)
	} else {
		logger.Info("rate limiting disabled")
	}

	var collab submission.Collaborator = submission.StoreCollaborator{Store: store}
	if cfg.Submission == SubmissionREST {
		collab = submission.NewRESTCollaborator(cfg.RESTURL, cfg.RESTKey, cfg.RESTTimeout)
		logger.Info("submitting quote requests over REST", "url", cfg.RESTURL, "key", redactedKey(cfg.RESTKey))
	}
	submitter := submission.NewSubmitter(collab, cat,
		submission.WithLogger(logger),
		submission.WithMetrics(metrics),
	)

	sessions := wizard.NewRegistry(cat,
		wizard.WithSessionTTL(cfg.SessionTTL),
		wizard.WithMetrics(metrics),
		wizard.WithLogger(logger),
		wizard.WithControllerOptions(
			wizard.WithSummaryDelay(cfg.SummaryDelay),
			wizard.WithStrictValidation(cfg.StrictContact),
		),
	)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sessions.Run(sweepCtx, cfg.SweepEvery)
	}()

	var adminHash []byte
	if cfg.AdminTokenHash != "" {
		adminHash = []byte(cfg.AdminTokenHash)
	} else {
		logger.Warn("no admin token hash configured; admin endpoints are disabled")
	}

	mux := http.NewServeMux()
	api.NewServer(mux, api.Options{
		Store:          store,
		Catalog:        cat,
		Sessions:       sessions,
		Submitter:      submitter,
		Logger:         logger,
		Metrics:        metrics,
		AuditLogger:    auditLogger,
		AdminTokenHash: adminHash,
		DashboardURL:   cfg.DashboardURL,
		StrictContact:  cfg.StrictContact,
	}).RegisterRoutes()

	// Order: metrics (outermost) -> requestID -> logging -> rateLimiting (innermost before handler)
	handler := api.ApplyMiddlewares(
		mux,
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.Slog()),
		api.RateLimitMiddleware(rateCfg, logger.Slog()),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RESTTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("quotewizard listening", "addr", cfg.Addr, "submission", cfg.Submission, "session_ttl", cfg.SessionTTL.String())
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	logger.Info("shutting down server", "timeout", "15s")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	stopSweep()
	<-sweepDone
	logger.Info("wizard sessions discarded", "count", sessions.Len())

	if err := store.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	}

	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
	logger.Info("shutdown complete")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// runMigrationsCLI executes migration commands.
func runMigrationsCLI(cfg *Config, logger observability.Logger, cmd string) {
	switch cmd {
	case "up":
		// Opening the store applies pending migrations.
		st, _ := selectBackend(cfg, logger)
		_ = st.Close()
		runMigrationsCLI(cfg, logger, "status")
	case "status":
		status := migrationStatus(cfg)
		if status == "" {
			status = "migrations status not available in this build"
		}
		logger.Info("migrations status", "status", status)
	default:
		logger.Warn("unknown migrate command", "command", cmd)
	}
}
