package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Sink names accepted in SINKS.
const (
	SinkConsole    = "console"
	SinkSlog       = "slog"
	SinkFile       = "file"
	SinkRedis      = "redis"
	SinkPrometheus = "prometheus"
	SinkOTel       = "otel"
)

var knownSinks = []string{SinkConsole, SinkSlog, SinkFile, SinkRedis, SinkPrometheus, SinkOTel}

// Color modes accepted in COLOR.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Config struct {
	// Database connection.
	DatabaseURL  string
	ReadOnly     bool
	MaxRows      int
	QueryTimeout time.Duration

	// Logging. Debug enables the query lines.
	LogLevel slog.Level

	// Transport.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http

	// Connection pool.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled bool // enable OpenTelemetry tracing and metrics

	// Query telemetry.
	IgnoreNames       []string // nil means SCHEMA and EXPLAIN
	Sinks             []string
	SinkQueueCapacity int
	SinkFile          string // NDJSON path for the file sink
	SinkConfigFile    string // optional YAML with per-sink settings and bind masks
	RedisAddr         string
	RedisStream       string
	RedisMaxLen       int64
	MetricsAddr       string // separate listener for /metrics; empty serves it on HTTPAddr
	Color             string
	Fingerprint       bool
	ShutdownGrace     time.Duration
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL     *string
	LogLevel        *string
	MaxRows         *int
	QueryTimeout    *time.Duration
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	OTelEnabled     bool

	// Connection pool overrides.
	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration

	// Query telemetry overrides.
	Sinks          *[]string
	SinkFile       *string
	SinkConfigFile *string
	RedisAddr      *string
	MetricsAddr    *string
	Color          *string
	Fingerprint    bool
	ShutdownGrace  *time.Duration
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		ReadOnly:            true,
		MaxRows:             100,
		QueryTimeout:        10 * time.Second,
		LogLevel:            slog.LevelInfo,
		Transport:           "stdio",
		HTTPAddr:            ":8080",
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
		Sinks:               []string{SinkConsole},
		SinkQueueCapacity:   256,
		RedisStream:         "querytap:queries",
		RedisMaxLen:         10000,
		Color:               ColorAuto,
		ShutdownGrace:       5 * time.Second,
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("READ_ONLY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid READ_ONLY value %q: %w", v, err)
		}
		cfg.ReadOnly = b
	}

	if v := os.Getenv("MAX_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_ROWS value %q: must be a positive integer", v)
		}
		cfg.MaxRows = n
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.HTTPBearerToken = os.Getenv("HTTP_BEARER_TOKEN")

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	if err := loadPoolEnvVars(cfg); err != nil {
		return err
	}
	return loadTelemetryEnvVars(cfg)
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = int32(n)
	}
	if v := os.Getenv("POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMinConns = int32(n)
	}
	if v := os.Getenv("POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POOL_MAX_CONN_LIFETIME value %q: %w", v, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

// loadTelemetryEnvVars reads the query telemetry environment variables.
func loadTelemetryEnvVars(cfg *Config) error {
	// "none" turns the ignore list off.
	if v := os.Getenv("IGNORE_NAMES"); v != "" {
		if strings.EqualFold(strings.TrimSpace(v), "none") {
			cfg.IgnoreNames = []string{}
		} else {
			cfg.IgnoreNames = splitList(v)
		}
	}

	if v := os.Getenv("SINKS"); v != "" {
		cfg.Sinks = splitList(v)
	}

	if v := os.Getenv("SINK_QUEUE_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid SINK_QUEUE_CAPACITY value %q: must be a positive integer", v)
		}
		cfg.SinkQueueCapacity = n
	}

	cfg.SinkFile = os.Getenv("SINK_FILE")
	cfg.SinkConfigFile = os.Getenv("SINK_CONFIG_FILE")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if v := os.Getenv("REDIS_STREAM"); v != "" {
		cfg.RedisStream = v
	}
	if v := os.Getenv("REDIS_STREAM_MAXLEN"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid REDIS_STREAM_MAXLEN value %q: must be a positive integer", v)
		}
		cfg.RedisMaxLen = n
	}
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if v := os.Getenv("COLOR"); v != "" {
		cfg.Color = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv("QUERY_FINGERPRINT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_FINGERPRINT value %q: %w", v, err)
		}
		cfg.Fingerprint = b
	}

	if v := os.Getenv("SHUTDOWN_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SHUTDOWN_GRACE value %q: %w", v, err)
		}
		cfg.ShutdownGrace = d
	}
	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("invalid --max-rows value: must be a positive integer")
		}
		cfg.MaxRows = *o.MaxRows
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}

	if err := applyPoolOverrides(cfg, o); err != nil {
		return err
	}
	applyTelemetryOverrides(cfg, o)

	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// applyPoolOverrides applies connection pool CLI flag overrides.
func applyPoolOverrides(cfg *Config, o Overrides) error {
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMinConns != nil {
		if *o.PoolMinConns < 0 {
			return fmt.Errorf("invalid --pool-min-conns value: must be a non-negative integer")
		}
		cfg.PoolMinConns = *o.PoolMinConns
	}
	if o.PoolMaxConnLifetime != nil {
		cfg.PoolMaxConnLifetime = *o.PoolMaxConnLifetime
	}
	return nil
}

func applyTelemetryOverrides(cfg *Config, o Overrides) {
	if o.Sinks != nil {
		cfg.Sinks = *o.Sinks
	}
	if o.SinkFile != nil {
		cfg.SinkFile = *o.SinkFile
	}
	if o.SinkConfigFile != nil {
		cfg.SinkConfigFile = *o.SinkConfigFile
	}
	if o.RedisAddr != nil {
		cfg.RedisAddr = *o.RedisAddr
	}
	if o.MetricsAddr != nil {
		cfg.MetricsAddr = *o.MetricsAddr
	}
	if o.Color != nil {
		cfg.Color = strings.ToLower(strings.TrimSpace(*o.Color))
	}
	if o.ShutdownGrace != nil {
		cfg.ShutdownGrace = *o.ShutdownGrace
	}
	cfg.Fingerprint = cfg.Fingerprint || o.Fingerprint
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required (set via env var or --database-url flag)")
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}

	return validateTelemetry(cfg)
}

func validateTelemetry(cfg *Config) error {
	for _, s := range cfg.Sinks {
		if !slices.Contains(knownSinks, s) {
			return fmt.Errorf("invalid SINKS entry %q: must be one of %s", s, strings.Join(knownSinks, ", "))
		}
	}
	if cfg.HasSink(SinkFile) && cfg.SinkFile == "" {
		return fmt.Errorf("SINK_FILE is required when the file sink is enabled")
	}
	if cfg.HasSink(SinkRedis) && cfg.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when the redis sink is enabled")
	}
	if cfg.HasSink(SinkPrometheus) && cfg.MetricsAddr == "" && cfg.Transport != "http" {
		return fmt.Errorf("METRICS_ADDR is required for the prometheus sink unless transport is \"http\"")
	}

	switch cfg.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid COLOR value %q: must be auto, always, or never", cfg.Color)
	}

	if cfg.SinkQueueCapacity <= 0 {
		return fmt.Errorf("SINK_QUEUE_CAPACITY must be positive")
	}
	if cfg.ShutdownGrace <= 0 {
		return fmt.Errorf("SHUTDOWN_GRACE must be positive")
	}
	return nil
}

// HasSink reports whether name is among the enabled sinks.
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.Sinks, name)
}

func splitList(v string) []string {
	out := []string{}
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
