package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guillermoBallester/querytap/internal/adapter/mcp"
	"github.com/guillermoBallester/querytap/internal/adapter/policy"
	"github.com/guillermoBallester/querytap/internal/adapter/postgres"
	"github.com/guillermoBallester/querytap/internal/config"
	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/guillermoBallester/querytap/internal/core/port"
	"github.com/guillermoBallester/querytap/internal/core/service"
	"github.com/guillermoBallester/querytap/internal/telemetry"
	"github.com/mattn/go-isatty"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

var version = "dev"

const serviceName = "querytap"

func main() {
	overrides, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := run(overrides); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(overrides config.Overrides) error {
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout is reserved for the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting querytap",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.String("database", redactDSN(cfg.DatabaseURL)),
		slog.String("transport", cfg.Transport),
		slog.Bool("read_only", cfg.ReadOnly),
		slog.Int("max_rows", cfg.MaxRows),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
		slog.Any("sinks", cfg.Sinks),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	provider, err := initTelemetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()
	tracer := provider.Tracer(serviceName)
	inst := provider.Instruments()

	var pol *policy.Policy
	if cfg.SinkConfigFile != "" {
		pol, err = policy.LoadFromFile(cfg.SinkConfigFile)
		if err != nil {
			return fmt.Errorf("loading sink config: %w", err)
		}
		logger.Info("sink config loaded",
			slog.String("file", cfg.SinkConfigFile),
			slog.Int("masked_binds", len(pol.Binds)),
		)
	}

	if cfg.HasSink(config.SinkOTel) && !cfg.OTelEnabled {
		logger.Warn("otel sink enabled without OTEL_ENABLED; its measurements go to a no-op meter")
	}

	sinks, err := buildSinks(ctx, cfg, pol, sinkEnv{
		console:    os.Stderr,
		logger:     logger,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
		meter:      provider.Meter(serviceName),
	})
	if err != nil {
		return err
	}

	diag := port.LogDiagnostics{Logger: logger}
	dispatcher := service.NewDispatcher(diag, inst, logger, sinks.regs...)
	dispatcher.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := dispatcher.Shutdown(shutdownCtx); err != nil {
			logger.Warn("sink dispatcher shutdown", slog.String("error", err.Error()))
		}
		for _, st := range dispatcher.Stats() {
			logger.Info("sink closed",
				slog.String("sink", st.Name),
				slog.Uint64("delivered", st.Delivered),
				slog.Uint64("dropped", st.Dropped),
				slog.Uint64("failed", st.Failed),
			)
		}
	}()

	collector := service.NewCollector(dispatcher, port.SlogLevel{Logger: logger}, service.CollectorOptions{
		IgnoreNames: cfg.IgnoreNames,
		Redactor:    domain.NewRedactor(postgres.CastForDisplay, pol.MaskSpec()),
		Formatter:   domain.NewFormatter(colorEnabled(cfg.Color, os.Stderr)),
		Diagnostics: diag,
		Fingerprint: cfg.Fingerprint,
	})

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.NewQueryTracer(collector),
		postgres.WithPoolSize(cfg.PoolMaxConns, cfg.PoolMinConns),
		postgres.WithMaxConnLifetime(cfg.PoolMaxConnLifetime),
	)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	logger.Info("database pool connected",
		slog.String("db.system", "postgresql"),
		slog.Int("pool_max_conns", int(cfg.PoolMaxConns)),
	)

	executor := postgres.NewExecutor(pool, cfg.ReadOnly, cfg.MaxRows, cfg.QueryTimeout)
	querySvc := service.NewQueryService(domain.NewPgQueryValidator(), executor, collector, logger, tracer, inst)
	mcpServer := mcp.NewServer(version, querySvc, dispatcher, logger, tracer, inst)

	if sinks.metrics != nil && cfg.MetricsAddr != "" {
		go func() {
			if err := serveMetrics(ctx, cfg.MetricsAddr, sinks.metrics, logger); err != nil {
				logger.Error("metrics listener", slog.String("error", err.Error()))
			}
		}()
	}

	switch cfg.Transport {
	case "http":
		if err := serveHTTP(ctx, cfg, mcpServer, sinks.metrics, logger); err != nil {
			return err
		}
	default:
		logger.Info("serving MCP over stdio")
		if err := mcpserver.NewStdioServer(mcpServer).Listen(ctx, os.Stdin, os.Stdout); err != nil {
			return fmt.Errorf("stdio server: %w", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// initTelemetry sets up OTel when enabled. A nil Provider is returned when
// it is not; its tracers and meters are no-ops.
func initTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*telemetry.Provider, error) {
	if !cfg.OTelEnabled {
		return nil, nil
	}
	provider, err := telemetry.Init(ctx, serviceName, version)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	logger.Info("opentelemetry enabled")
	return provider, nil
}

// colorEnabled resolves a COLOR mode against the destination of the
// console sink. NO_COLOR wins over auto.
func colorEnabled(mode string, f *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// redactDSN masks the password of a database URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
