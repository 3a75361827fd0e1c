package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/shelfrank/pkg/observability"
)

func newTestReader(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	return mp, reader
}

func setupTestMeter(t *testing.T) (*observability.REDMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	mp, reader := newTestReader(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return red, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumInt64(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestREDMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)

	red.RecordRequest(context.Background(), "cli.run", observability.StatusOK, 100*time.Millisecond)

	rm := collectMetrics(t, reader)

	reqTotal := findMetric(rm, "shelfrank.requests.total")
	require.NotNil(t, reqTotal)
	assert.Equal(t, int64(1), sumInt64(t, reqTotal))

	require.NotNil(t, findMetric(rm, "shelfrank.request.duration.seconds"))
	assert.Nil(t, findMetric(rm, "shelfrank.errors.total"))
}

func TestREDMetrics_RecordRequestError(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)

	red.RecordRequest(context.Background(), "mcp.shelf_run", observability.StatusError, time.Second)

	errTotal := findMetric(collectMetrics(t, reader), "shelfrank.errors.total")
	require.NotNil(t, errTotal)
	assert.Equal(t, int64(1), sumInt64(t, errTotal))
}

func TestREDMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)

	done := red.TrackInflight(context.Background(), "http.run")

	inflight := findMetric(collectMetrics(t, reader), "shelfrank.inflight.requests")
	require.NotNil(t, inflight)
	assert.Equal(t, int64(1), sumInt64(t, inflight))

	done()

	inflight = findMetric(collectMetrics(t, reader), "shelfrank.inflight.requests")
	require.NotNil(t, inflight)
	assert.Equal(t, int64(0), sumInt64(t, inflight))
}

func TestREDMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var red *observability.REDMetrics

	red.RecordRequest(context.Background(), "noop", observability.StatusOK, time.Millisecond)
	red.TrackInflight(context.Background(), "noop")()
}

func TestStreamMetrics_RecordStream(t *testing.T) {
	t.Parallel()

	mp, reader := newTestReader(t)

	sm, err := observability.NewStreamMetrics(mp.Meter("test"))
	require.NoError(t, err)

	sm.RecordStream(context.Background(), observability.StreamStats{
		Prepends: 2,
		Appends:  3,
		Queries:  4,
		Length:   5,
	})
	sm.RecordStream(context.Background(), observability.StreamStats{Appends: 1, Length: 1, Failed: true})

	rm := collectMetrics(t, reader)

	commands := findMetric(rm, "shelfrank.stream.commands.total")
	require.NotNil(t, commands)
	assert.Equal(t, int64(10), sumInt64(t, commands))

	streams := findMetric(rm, "shelfrank.streams.total")
	require.NotNil(t, streams)
	assert.Equal(t, int64(2), sumInt64(t, streams))

	length := findMetric(rm, "shelfrank.stream.sequence.length")
	require.NotNil(t, length)

	hist, ok := length.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, int64(6), hist.DataPoints[0].Sum)
}

func TestStreamMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var sm *observability.StreamMetrics

	sm.RecordStream(context.Background(), observability.StreamStats{Queries: 1})
}
