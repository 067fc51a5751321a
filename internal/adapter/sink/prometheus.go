package sink

import (
	"context"
	"errors"
	"strconv"

	"github.com/guillermoBallester/querytap/internal/core/port"
	"github.com/prometheus/client_golang/prometheus"
)

var durationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Prometheus counts statements and observes their duration, labelled by
// category.
type Prometheus struct {
	statements *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheus registers the sink's collectors with reg. Collectors that
// are already registered are reused.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querytap",
			Subsystem: "sql",
			Name:      "statements_total",
			Help:      "Count of observed SQL statements",
		}, []string{"category", "cached"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "querytap",
			Subsystem: "sql",
			Name:      "statement_duration_seconds",
			Help:      "Latency distribution of observed SQL statements",
			Buckets:   durationBuckets,
		}, []string{"category"}),
	}

	if err := reg.Register(p.statements); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		p.statements = existing
	}
	if err := reg.Register(p.duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		p.duration = existing
	}
	return p, nil
}

func (p *Prometheus) Name() string { return "prometheus" }

func (p *Prometheus) Write(_ context.Context, rec port.Record) error {
	category := rec.Category.String()
	p.statements.With(prometheus.Labels{
		"category": category,
		"cached":   strconv.FormatBool(rec.Event.Cached),
	}).Inc()
	p.duration.With(prometheus.Labels{"category": category}).Observe(rec.Event.DurationMillis / 1000)
	return nil
}
