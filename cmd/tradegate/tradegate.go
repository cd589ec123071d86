package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradegate/internal/admission"
	"tradegate/internal/api"
	"tradegate/internal/config"
	"tradegate/internal/logger"
	"tradegate/internal/models"
	"tradegate/internal/observability"
	"tradegate/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// The policy table is pure configuration; build it even when the gate
	// is disabled so tracing filters can reuse the exemption set.
	table := admission.NewTable(
		cfg.Admission.RequestsPerWindow,
		cfg.Admission.Window,
		cfg.Admission.Routes,
		cfg.Admission.ExemptPaths,
	)

	var engine *admission.Engine
	if cfg.Admission.Enabled {
		engine = initializeEngine(cfg, table)
		defer engine.Close()
	}

	handlers := api.NewHandlers(engine)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName, table))
	}
	if engine != nil {
		routeOpts = append(routeOpts, api.WithAdmissionGate(admission.Gate(table, engine)))
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "admission_backend", backendName(engine))

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// initializeEngine builds the admission engine from configuration. A
// shared backend that cannot be reached at startup is logged and skipped
// rather than aborting: the gate then runs on the local store alone, the
// same degraded mode it would enter at runtime.
func initializeEngine(cfg *models.Config, table *admission.Table) *admission.Engine {
	local := wrapStore(cfg, admission.NewLocalStore(cfg.Admission.SweepInterval), "local")

	var shared admission.WindowStore
	sharedName := cfg.Admission.Backend

	switch cfg.Admission.Backend {
	case models.BackendRedis:
		store, err := admission.NewRedisStore(cfg.Admission.Redis)
		if err != nil {
			slog.Warn("Redis window store unavailable at startup, using local store only",
				"addr", cfg.Admission.Redis.Addr, "error", err)
		} else {
			shared = wrapStore(cfg, store, sharedName)
		}
	case models.BackendSQL:
		store, err := admission.NewSQLStore(cfg.Admission.Database, cfg.Admission.SweepInterval)
		if err != nil {
			slog.Warn("SQL window store unavailable at startup, using local store only",
				"driver", cfg.Admission.Database.Driver, "error", err)
		} else {
			shared = wrapStore(cfg, store, sharedName)
		}
	case models.BackendMemory:
		// Local store only; no shared backend, no fallback logic.
	}

	if shared == nil {
		sharedName = ""
	}

	return admission.NewEngine(table, shared, sharedName, local, cfg.Admission.StoreTimeout)
}

// wrapStore adds OpenTelemetry instrumentation when metrics are enabled.
func wrapStore(cfg *models.Config, store admission.WindowStore, backend string) admission.WindowStore {
	if !cfg.Metrics.Enabled {
		return store
	}

	instrumented, err := observability.NewInstrumentedStore(store, backend)
	if err != nil {
		slog.Warn("Failed to instrument window store", "backend", backend, "error", err)
		return store
	}
	return instrumented
}

func backendName(engine *admission.Engine) string {
	if engine == nil {
		return "disabled"
	}
	return engine.Backend()
}
