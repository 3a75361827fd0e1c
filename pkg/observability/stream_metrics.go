package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommandsTotal  = "shelfrank.stream.commands.total"
	metricStreamsTotal   = "shelfrank.streams.total"
	metricSequenceLength = "shelfrank.stream.sequence.length"

	attrCommand = "command"
	attrOutcome = "outcome"
)

// lengthBucketBoundaries spans one item to ten million items.
var lengthBucketBoundaries = []float64{1, 10, 100, 1e3, 1e4, 1e5, 1e6, 1e7}

// StreamMetrics holds OTel instruments describing processed command streams.
type StreamMetrics struct {
	commandsTotal  metric.Int64Counter
	streamsTotal   metric.Int64Counter
	sequenceLength metric.Int64Histogram
}

// StreamStats is what a finished stream reports, decoupled from engine types.
type StreamStats struct {
	Prepends int64
	Appends  int64
	Queries  int64
	Length   int64
	Failed   bool
}

// NewStreamMetrics creates stream metric instruments from the given meter.
func NewStreamMetrics(mt metric.Meter) (*StreamMetrics, error) {
	commands, err := mt.Int64Counter(metricCommandsTotal,
		metric.WithDescription("Commands applied to trackers, by command"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommandsTotal, err)
	}

	streams, err := mt.Int64Counter(metricStreamsTotal,
		metric.WithDescription("Command streams processed, by outcome"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStreamsTotal, err)
	}

	length, err := mt.Int64Histogram(metricSequenceLength,
		metric.WithDescription("Sequence length at the end of a stream"),
		metric.WithUnit("{item}"),
		metric.WithExplicitBucketBoundaries(lengthBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSequenceLength, err)
	}

	return &StreamMetrics{
		commandsTotal:  commands,
		streamsTotal:   streams,
		sequenceLength: length,
	}, nil
}

// RecordStream records the statistics of a finished stream.
// Safe to call on a nil receiver (no-op).
func (sm *StreamMetrics) RecordStream(ctx context.Context, stats StreamStats) {
	if sm == nil {
		return
	}

	sm.commandsTotal.Add(ctx, stats.Prepends, metric.WithAttributes(attribute.String(attrCommand, "prepend")))
	sm.commandsTotal.Add(ctx, stats.Appends, metric.WithAttributes(attribute.String(attrCommand, "append")))
	sm.commandsTotal.Add(ctx, stats.Queries, metric.WithAttributes(attribute.String(attrCommand, "query")))

	outcome := StatusOK
	if stats.Failed {
		outcome = StatusError
	}

	sm.streamsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
	sm.sequenceLength.Record(ctx, stats.Length)
}
