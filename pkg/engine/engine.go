// Package engine drives a command stream through a fresh shelf tracker,
// emitting query answers in order and collecting per-stream statistics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/shelfrank/pkg/command"
	"github.com/Sumatoshi-tech/shelfrank/pkg/observability"
	"github.com/Sumatoshi-tech/shelfrank/pkg/shelf"
)

const tracerName = "shelfrank/engine"

// ErrEmit wraps failures returned by the answer callback.
var ErrEmit = errors.New("emit answer")

// EmitFunc receives each query answer in stream order.
type EmitFunc func(answer int64) error

// Stats summarizes one processed stream.
type Stats struct {
	Prepends  int64         `json:"prepends"    yaml:"prepends"`
	Appends   int64         `json:"appends"     yaml:"appends"`
	Queries   int64         `json:"queries"     yaml:"queries"`
	Length    int64         `json:"length"      yaml:"length"`
	MaxAnswer int64         `json:"max_answer"  yaml:"max_answer"`
	Duration  time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Commands returns the number of commands applied successfully.
func (s Stats) Commands() int64 {
	return s.Prepends + s.Appends + s.Queries
}

// Config holds optional collaborators for a Runner.
type Config struct {
	// Logger is the structured logger. When nil, a discard logger is used.
	Logger *slog.Logger

	// Tracer creates the per-stream span. When nil, the global tracer is used.
	Tracer trace.Tracer

	// Metrics records per-stream counters. Nil-safe.
	Metrics *observability.StreamMetrics
}

// Runner processes command streams. It holds no per-stream state, so one
// Runner may serve concurrent calls.
type Runner struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.StreamMetrics
}

// NewRunner creates a Runner from cfg.
func NewRunner(cfg Config) *Runner {
	runner := &Runner{
		logger:  cfg.Logger,
		tracer:  cfg.Tracer,
		metrics: cfg.Metrics,
	}

	if runner.logger == nil {
		runner.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if runner.tracer == nil {
		runner.tracer = otel.Tracer(tracerName)
	}

	return runner
}

// sized is implemented by sources that know their command count upfront.
type sized interface {
	Len() int
}

// Run applies every command from src to a new tracker and passes each query
// answer to emit. Processing stops at the first failing command; answers
// emitted before it stay emitted. Tracker and parse failures carry their
// input position as a [command.LineError].
func (r *Runner) Run(ctx context.Context, src command.Source, emit EmitFunc) (Stats, error) {
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "shelfrank.stream")
	defer span.End()

	hint := 0
	if s, ok := src.(sized); ok {
		hint = s.Len()
	}

	tracker := shelf.NewWithCapacity[string](hint)

	r.logger.DebugContext(ctx, "stream started", "size_hint", hint)

	var stats Stats

	err := r.drain(ctx, src, tracker, emit, &stats)

	stats.Length = tracker.Len()
	stats.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int64("stream.prepends", stats.Prepends),
		attribute.Int64("stream.appends", stats.Appends),
		attribute.Int64("stream.queries", stats.Queries),
		attribute.Int64("stream.length", stats.Length),
	)

	r.metrics.RecordStream(ctx, observability.StreamStats{
		Prepends: stats.Prepends,
		Appends:  stats.Appends,
		Queries:  stats.Queries,
		Length:   stats.Length,
		Failed:   err != nil,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		attrs := []any{"error", err, "commands", stats.Commands()}
		if line, ok := command.LineOf(err); ok {
			attrs = append(attrs, "line", line)
		}

		r.logger.WarnContext(ctx, "stream failed", attrs...)

		return stats, err
	}

	r.logger.DebugContext(ctx, "stream finished",
		"commands", stats.Commands(), "length", stats.Length, "duration", stats.Duration)

	return stats, nil
}

func (r *Runner) drain(
	ctx context.Context,
	src command.Source,
	tracker *shelf.Tracker[string],
	emit EmitFunc,
	stats *Stats,
) error {
	for {
		err := ctx.Err()
		if err != nil {
			return fmt.Errorf("stream interrupted after %d commands: %w", stats.Commands(), err)
		}

		cmd, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		err = apply(tracker, cmd, emit, stats)
		if err != nil {
			return err
		}
	}
}

func apply(tracker *shelf.Tracker[string], cmd command.Command, emit EmitFunc, stats *Stats) error {
	switch cmd.Op {
	case command.OpPrepend:
		err := tracker.Prepend(cmd.ID)
		if err != nil {
			return lineError(cmd, err)
		}

		stats.Prepends++
	case command.OpAppend:
		err := tracker.Append(cmd.ID)
		if err != nil {
			return lineError(cmd, err)
		}

		stats.Appends++
	case command.OpQuery:
		answer, err := tracker.Query(cmd.ID)
		if err != nil {
			return lineError(cmd, err)
		}

		stats.Queries++
		stats.MaxAnswer = max(stats.MaxAnswer, answer)

		err = emit(answer)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEmit, err)
		}
	default:
		return lineError(cmd, fmt.Errorf("%w: unknown operation %q", command.ErrMalformedCommand, byte(cmd.Op)))
	}

	return nil
}

func lineError(cmd command.Command, err error) error {
	return &command.LineError{Line: cmd.Line, Text: cmd.String(), Err: err}
}

// Collect runs src and returns all answers in order. On failure the answers
// produced before the failing command are returned with the error.
func (r *Runner) Collect(ctx context.Context, src command.Source) ([]int64, Stats, error) {
	answers := make([]int64, 0)

	stats, err := r.Run(ctx, src, func(answer int64) error {
		answers = append(answers, answer)

		return nil
	})

	return answers, stats, err
}
