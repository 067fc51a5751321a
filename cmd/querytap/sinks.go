package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/guillermoBallester/querytap/internal/adapter/policy"
	"github.com/guillermoBallester/querytap/internal/adapter/sink"
	"github.com/guillermoBallester/querytap/internal/config"
	"github.com/guillermoBallester/querytap/internal/core/port"
	"github.com/guillermoBallester/querytap/internal/core/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
)

// sinkEnv carries the process-level handles sinks attach to.
type sinkEnv struct {
	console    io.Writer
	logger     *slog.Logger
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	meter      metric.Meter
}

type sinkSet struct {
	regs []service.Registration
	// metrics serves the prometheus registry; nil unless the prometheus
	// sink is enabled.
	metrics http.Handler
}

// buildSinks opens every sink named in cfg.Sinks, in order, and pairs each
// with its resolved delivery rules. Sinks opened before a failure are closed.
func buildSinks(ctx context.Context, cfg *config.Config, pol *policy.Policy, env sinkEnv) (_ *sinkSet, err error) {
	set := &sinkSet{}
	defer func() {
		if err == nil {
			return
		}
		for _, reg := range set.regs {
			if c, ok := reg.Sink.(port.Closer); ok {
				_ = c.Close()
			}
		}
	}()

	for _, name := range cfg.Sinks {
		s, err := openSink(ctx, name, cfg, env)
		if err != nil {
			return nil, fmt.Errorf("opening %s sink: %w", name, err)
		}
		if name == config.SinkPrometheus {
			set.metrics = promhttp.HandlerFor(env.gatherer, promhttp.HandlerOpts{})
		}
		set.regs = append(set.regs, service.Registration{
			Sink:   s,
			Config: pol.SinkConfig(name, cfg.IgnoreNames, cfg.SinkQueueCapacity),
		})
		if env.logger != nil {
			env.logger.Info("query telemetry sink enabled", slog.String("sink", name))
		}
	}
	return set, nil
}

func openSink(ctx context.Context, name string, cfg *config.Config, env sinkEnv) (port.Sink, error) {
	switch name {
	case config.SinkConsole:
		return sink.NewConsole(env.console), nil
	case config.SinkSlog:
		if env.logger == nil {
			return nil, errors.New("no logger configured")
		}
		return sink.NewSlog(env.logger), nil
	case config.SinkFile:
		return sink.NewFile(cfg.SinkFile)
	case config.SinkRedis:
		return sink.NewRedis(ctx, cfg.RedisAddr, cfg.RedisStream, cfg.RedisMaxLen)
	case config.SinkPrometheus:
		return sink.NewPrometheus(env.registerer)
	case config.SinkOTel:
		return sink.NewOTel(env.meter)
	default:
		return nil, fmt.Errorf("unknown sink %q", name)
	}
}
