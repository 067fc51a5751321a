package main

import (
	"fmt"
	"os"
	"time"

	"github.com/guillermoBallester/querytap/internal/config"
	"github.com/spf13/pflag"
)

// parseFlags maps command-line flags onto config.Overrides. Only flags that
// were actually given are set, so environment values survive.
func parseFlags(args []string) (config.Overrides, error) {
	var o config.Overrides

	fs := pflag.NewFlagSet("querytap", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: querytap [flags]\n\nFlags override the matching environment variables.\n\n")
		fs.PrintDefaults()
	}

	var (
		databaseURL, logLevel, transport, httpAddr, bearer  string
		sinkFile, sinkConfig, redisAddr, metricsAddr, color string
		maxRows                                             int
		poolMax, poolMin                                    int32
		queryTimeout, poolLifetime, shutdownGrace           time.Duration
		sinks                                               []string
	)

	fs.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (env DATABASE_URL)")
	fs.StringVar(&logLevel, "log-level", "", "debug, info, warn or error; debug prints query lines (env LOG_LEVEL)")
	fs.IntVar(&maxRows, "max-rows", 0, "maximum rows returned per query (env MAX_ROWS)")
	fs.DurationVar(&queryTimeout, "query-timeout", 0, "statement timeout (env QUERY_TIMEOUT)")
	fs.StringVar(&transport, "transport", "", "stdio or http (env TRANSPORT)")
	fs.StringVar(&httpAddr, "http-addr", "", "listen address for the http transport (env HTTP_ADDR)")
	fs.StringVar(&bearer, "http-bearer-token", "", "bearer token required by the http transport (env HTTP_BEARER_TOKEN)")
	fs.BoolVar(&o.OTelEnabled, "otel", false, "enable OpenTelemetry export (env OTEL_ENABLED)")

	fs.Int32Var(&poolMax, "pool-max-conns", 0, "maximum pooled connections (env POOL_MAX_CONNS)")
	fs.Int32Var(&poolMin, "pool-min-conns", 0, "minimum pooled connections (env POOL_MIN_CONNS)")
	fs.DurationVar(&poolLifetime, "pool-max-conn-lifetime", 0, "maximum connection lifetime (env POOL_MAX_CONN_LIFETIME)")

	fs.StringSliceVar(&sinks, "sinks", nil, "query telemetry sinks: console, slog, file, redis, prometheus, otel (env SINKS)")
	fs.StringVar(&sinkFile, "sink-file", "", "NDJSON output path for the file sink (env SINK_FILE)")
	fs.StringVar(&sinkConfig, "sink-config", "", "YAML file with per-sink settings and bind masks (env SINK_CONFIG_FILE)")
	fs.StringVar(&redisAddr, "redis-addr", "", "redis address or URL for the redis sink (env REDIS_ADDR)")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "separate listen address for /metrics (env METRICS_ADDR)")
	fs.StringVar(&color, "color", "", "auto, always or never (env COLOR)")
	fs.BoolVar(&o.Fingerprint, "fingerprint", false, "attach a statement fingerprint to each record (env QUERY_FINGERPRINT)")
	fs.DurationVar(&shutdownGrace, "shutdown-grace", 0, "time allowed for sinks to drain on exit (env SHUTDOWN_GRACE)")

	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}

	if fs.Changed("database-url") {
		o.DatabaseURL = &databaseURL
	}
	if fs.Changed("log-level") {
		o.LogLevel = &logLevel
	}
	if fs.Changed("max-rows") {
		o.MaxRows = &maxRows
	}
	if fs.Changed("query-timeout") {
		o.QueryTimeout = &queryTimeout
	}
	if fs.Changed("transport") {
		o.Transport = &transport
	}
	if fs.Changed("http-addr") {
		o.HTTPAddr = &httpAddr
	}
	if fs.Changed("http-bearer-token") {
		o.HTTPBearerToken = &bearer
	}
	if fs.Changed("pool-max-conns") {
		o.PoolMaxConns = &poolMax
	}
	if fs.Changed("pool-min-conns") {
		o.PoolMinConns = &poolMin
	}
	if fs.Changed("pool-max-conn-lifetime") {
		o.PoolMaxConnLifetime = &poolLifetime
	}
	if fs.Changed("sinks") {
		o.Sinks = &sinks
	}
	if fs.Changed("sink-file") {
		o.SinkFile = &sinkFile
	}
	if fs.Changed("sink-config") {
		o.SinkConfigFile = &sinkConfig
	}
	if fs.Changed("redis-addr") {
		o.RedisAddr = &redisAddr
	}
	if fs.Changed("metrics-addr") {
		o.MetricsAddr = &metricsAddr
	}
	if fs.Changed("color") {
		o.Color = &color
	}
	if fs.Changed("shutdown-grace") {
		o.ShutdownGrace = &shutdownGrace
	}

	return o, nil
}
