package engine_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/shelfrank/pkg/command"
	"github.com/Sumatoshi-tech/shelfrank/pkg/engine"
	"github.com/Sumatoshi-tech/shelfrank/pkg/observability"
	"github.com/Sumatoshi-tech/shelfrank/pkg/shelf"
)

func textSource(t *testing.T, input string) command.Source {
	t.Helper()

	src, err := command.NewSource(strings.NewReader(input), command.FormatText)
	require.NoError(t, err)

	return src
}

func TestCollect_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []int64
	}{
		{"appends_only", "6\nR 1\nR 2\nR 3\n? 1\n? 2\n? 3\n", []int64{0, 1, 0}},
		{"prepend_then_append", "6\nL 1\nL 2\nR 3\n? 2\n? 1\n? 3\n", []int64{0, 1, 0}},
		{"mixed", "6\nR 1\nL 2\nR 3\nL 4\n? 2\n? 1\n", []int64{1, 1}},
		{"single_item", "2\nL only\n? only\n", []int64{0}},
		{"no_queries", "2\nL a\nR b\n", []int64{}},
		{"empty_stream", "0\n", []int64{}},
	}

	runner := engine.NewRunner(engine.Config{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			answers, _, err := runner.Collect(context.Background(), textSource(t, tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, answers)
		})
	}
}

func TestRun_Stats(t *testing.T) {
	t.Parallel()

	runner := engine.NewRunner(engine.Config{})
	src := command.NewSliceSource([]command.Command{
		{Op: command.OpAppend, ID: "1", Line: 1},
		{Op: command.OpAppend, ID: "2", Line: 2},
		{Op: command.OpAppend, ID: "3", Line: 3},
		{Op: command.OpPrepend, ID: "4", Line: 4},
		{Op: command.OpQuery, ID: "2", Line: 5},
		{Op: command.OpQuery, ID: "4", Line: 6},
	})

	answers, stats, err := runner.Collect(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 0}, answers)
	assert.Equal(t, int64(1), stats.Prepends)
	assert.Equal(t, int64(3), stats.Appends)
	assert.Equal(t, int64(2), stats.Queries)
	assert.Equal(t, int64(6), stats.Commands())
	assert.Equal(t, int64(4), stats.Length)
	assert.Equal(t, int64(1), stats.MaxAnswer)
	assert.Positive(t, stats.Duration)
}

func TestRun_TrackerErrorsCarryLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantErr  error
		wantLine int
		answers  []int64
	}{
		{"duplicate_prepend", "3\nL 1\n? 1\nL 1\n", shelf.ErrDuplicateIdentifier, 4, []int64{0}},
		{"duplicate_append", "2\nR x\nR x\n", shelf.ErrDuplicateIdentifier, 3, []int64{}},
		{"unknown_query", "3\nR 1\n? 1\n? 9\n", shelf.ErrUnknownIdentifier, 4, []int64{0}},
		{"malformed", "2\nR 1\nX 1\n", command.ErrMalformedCommand, 3, []int64{}},
		{"truncated", "3\nR 1\n? 1\n", command.ErrTruncatedStream, 4, []int64{0}},
	}

	runner := engine.NewRunner(engine.Config{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			answers, _, err := runner.Collect(context.Background(), textSource(t, tt.input))
			require.ErrorIs(t, err, tt.wantErr)

			line, ok := command.LineOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantLine, line)
			assert.Equal(t, tt.answers, answers)
		})
	}
}

func TestRun_EmitErrorStops(t *testing.T) {
	t.Parallel()

	sink := errors.New("sink closed")
	calls := 0

	runner := engine.NewRunner(engine.Config{})
	_, err := runner.Run(context.Background(), textSource(t, "4\nR 1\n? 1\n? 1\n? 1\n"), func(int64) error {
		calls++

		return sink
	})

	require.ErrorIs(t, err, engine.ErrEmit)
	require.ErrorIs(t, err, sink)
	assert.Equal(t, 1, calls)

	_, hasLine := command.LineOf(err)
	assert.False(t, hasLine)
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := engine.NewRunner(engine.Config{})
	answers, _, err := runner.Collect(ctx, textSource(t, "1\nR 1\n"))

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, answers)
}

func TestRun_FreshTrackerPerCall(t *testing.T) {
	t.Parallel()

	runner := engine.NewRunner(engine.Config{})

	for range 2 {
		answers, stats, err := runner.Collect(context.Background(), textSource(t, "2\nR a\n? a\n"))
		require.NoError(t, err)
		assert.Equal(t, []int64{0}, answers)
		assert.Equal(t, int64(1), stats.Length)
	}
}

func TestRun_SpanAndMetrics(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		require.NoError(t, tp.Shutdown(context.Background()))
		require.NoError(t, mp.Shutdown(context.Background()))
	})

	metrics, err := observability.NewStreamMetrics(mp.Meter("test"))
	require.NoError(t, err)

	runner := engine.NewRunner(engine.Config{Tracer: tp.Tracer("test"), Metrics: metrics})

	_, _, err = runner.Collect(context.Background(), textSource(t, "3\nR 1\nL 2\n? 1\n"))
	require.NoError(t, err)

	_, _, err = runner.Collect(context.Background(), textSource(t, "1\n? 1\n"))
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "shelfrank.stream", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)

	attrs := map[string]int64{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInt64()
	}

	assert.Equal(t, int64(1), attrs["stream.prepends"])
	assert.Equal(t, int64(1), attrs["stream.appends"])
	assert.Equal(t, int64(1), attrs["stream.queries"])
	assert.Equal(t, int64(2), attrs["stream.length"])

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	names := make([]string, 0)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names = append(names, m.Name)
	}

	assert.Contains(t, names, "shelfrank.streams.total")
	assert.Contains(t, names, "shelfrank.stream.commands.total")
}

func TestRun_LogsFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	runner := engine.NewRunner(engine.Config{Logger: logger})

	_, _, err := runner.Collect(context.Background(), textSource(t, "2\nR 1\nR 1\n"))
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "stream started")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "line=3")
}
