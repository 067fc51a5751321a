package sink

import (
	"context"
	"strings"
	"testing"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestPrometheus_CountsByCategory(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, p.Write(ctx, userLoadRecord()))
	require.NoError(t, p.Write(ctx, userLoadRecord()))
	insert := userLoadRecord()
	insert.Category = domain.CategoryInsert
	require.NoError(t, p.Write(ctx, insert))

	assert.Equal(t, 2.0, testutil.ToFloat64(p.statements.WithLabelValues("SELECT", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.statements.WithLabelValues("INSERT", "false")))

	expected := `
# HELP querytap_sql_statements_total Count of observed SQL statements
# TYPE querytap_sql_statements_total counter
querytap_sql_statements_total{cached="false",category="INSERT"} 1
querytap_sql_statements_total{cached="false",category="SELECT"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "querytap_sql_statements_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(p.duration))
}

func TestPrometheus_ReusesRegisteredCollectors(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	first, err := NewPrometheus(reg)
	require.NoError(t, err)
	second, err := NewPrometheus(reg)
	require.NoError(t, err)

	require.NoError(t, second.Write(context.Background(), userLoadRecord()))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.statements.WithLabelValues("SELECT", "false")))
}

func TestOTel_RecordsHistogramPoints(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	o, err := NewOTel(mp.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, o.Write(ctx, userLoadRecord()))
	require.NoError(t, o.Write(ctx, userLoadRecord()))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	hist, ok := byName["querytap.sql.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 4.68, hist.DataPoints[0].Sum, 1e-9)
	category, _ := hist.DataPoints[0].Attributes.Value("db.query.category")
	assert.Equal(t, "SELECT", category.AsString())

	count, ok := byName["querytap.sql.statements"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, count.DataPoints, 1)
	assert.Equal(t, int64(2), count.DataPoints[0].Value)
}
