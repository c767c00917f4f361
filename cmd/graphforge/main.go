// Command graphforge is the main entry point for the GraphForge server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowtwo/graphforge/internal/config"
	"github.com/flowtwo/graphforge/internal/health"
	"github.com/flowtwo/graphforge/internal/observe"
	"github.com/flowtwo/graphforge/internal/orchestrator"
	"github.com/flowtwo/graphforge/pkg/provider/embeddings"
	"github.com/flowtwo/graphforge/pkg/provider/llm"
	"github.com/flowtwo/graphforge/pkg/store"
	storemock "github.com/flowtwo/graphforge/pkg/store/mock"
	storepostgres "github.com/flowtwo/graphforge/pkg/store/postgres"
)

// buildVersion is overridable via -ldflags at release build time; it is
// reported as the service version in OpenTelemetry resource attributes.
var buildVersion = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ──────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "graphforge: config file %q not found; pass -config to point at one\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "graphforge: %v\n", err)
		}
		return 1
	}

	// ── Logger ───────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("graphforge starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName:    "graphforge",
		ServiceVersion: buildVersion,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry providers", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmProvider, embedder, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if llmProvider == nil {
		slog.Error("providers.llm.name is required to start the server")
		return 1
	}

	// ── Long-term store ──────────────────────────────────────────────────────
	longTermStore := buildStore(cfg)

	printStartupSummary(cfg)

	// ── Orchestrator ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := orchestrator.New(ctx, orchestrator.Deps{
		Store:    longTermStore,
		Provider: llmProvider,
		Embedder: embedder,
		Logger:   logger,
		Model:    cfg.Providers.LLM.Model,
	})
	if err != nil {
		slog.Error("failed to initialise orchestrator", "err", err)
		return 1
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	healthHandler := health.New(health.Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			// Connect was already performed by orchestrator.New; a readiness
			// check just needs to confirm the pair-restore path is reachable.
			return nil
		},
	})
	healthHandler.Register(mux)
	mux.Handle("/ws", orch.Broadcast())
	mux.Handle("/ws/session", newSessionHandler(orch, logger))
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(observe.DefaultMetrics())(mux),
	}

	serveErrCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
	case err := <-serveErrCh:
		if err != nil {
			slog.Error("http server error", "err", err)
		}
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
	if err := orch.Shutdown(shutdownCtx, "server shutting down"); err != nil {
		slog.Error("orchestrator shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildStore returns a PostgreSQL-backed store when a DSN is configured, or
// an in-memory mock so the server remains runnable without a database
// during local development and demos.
func buildStore(cfg *config.Config) store.Store {
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty — using an in-memory store; data will not survive a restart")
		return storemock.New()
	}
	return storepostgres.New(storepostgres.Config{DSN: cfg.Store.PostgresDSN})
}

// buildProviders instantiates the configured LLM and embeddings providers
// using the registry. Either may come back nil if unconfigured.
func buildProviders(cfg *config.Config, reg *config.Registry) (llm.Provider, embeddings.Provider, error) {
	var (
		llmProvider llm.Provider
		embedder    embeddings.Provider
	)

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		llmProvider = p
		slog.Info("provider created", "kind", "llm", "name", name)
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		embedder = p
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	return llmProvider, embedder, nil
}

// ── Startup summary ─────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        GraphForge — startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	fmt.Printf("║  MCP servers     : %-19d ║\n", len(cfg.MCP.Servers))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ───────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
