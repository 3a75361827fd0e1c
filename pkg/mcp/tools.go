package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/shelfrank/pkg/command"
	"github.com/Sumatoshi-tech/shelfrank/pkg/render"
)

// ToolNameRun is the name of the command stream tool.
const ToolNameRun = "shelf_run"

// Default input limits.
const (
	// DefaultMaxScriptBytes is the default maximum size of an inline script (1 MB).
	DefaultMaxScriptBytes = 1 << 20
	// DefaultMaxCommands is the default maximum number of commands per call.
	DefaultMaxCommands = 200_000
)

// Sentinel errors for tool input validation.
var (
	// ErrNoInput indicates neither commands nor script was given.
	ErrNoInput = errors.New("either commands or script is required")
	// ErrAmbiguousInput indicates both commands and script were given.
	ErrAmbiguousInput = errors.New("commands and script are mutually exclusive")
	// ErrInputTooLarge indicates the input exceeds a configured limit.
	ErrInputTooLarge = errors.New("input exceeds maximum size")
)

// Limits bounds tool inputs. Zero fields use the defaults.
type Limits struct {
	MaxScriptBytes int
	MaxCommands    int64
	MaxLineBytes   int
}

func (l Limits) withDefaults() Limits {
	if l.MaxScriptBytes <= 0 {
		l.MaxScriptBytes = DefaultMaxScriptBytes
	}

	if l.MaxCommands <= 0 {
		l.MaxCommands = DefaultMaxCommands
	}

	return l
}

// RunInput is the input schema for the shelf_run tool.
type RunInput struct {
	Commands []string `json:"commands,omitempty" jsonschema:"command lines such as L 1, R 2 or ? 1, without a count line"`
	Script   string   `json:"script,omitempty"   jsonschema:"full text stream: a count line followed by that many commands"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func (s *Server) handleRun(ctx context.Context, _ *mcpsdk.CallToolRequest, input RunInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	src, err := s.source(input)
	if err != nil {
		return errorResult(err)
	}

	answers, stats, err := s.runner.Collect(ctx, src)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(render.Result{Answers: answers, Stats: &stats})
}

func (s *Server) source(input RunInput) (command.Source, error) {
	hasCommands := len(input.Commands) > 0
	hasScript := strings.TrimSpace(input.Script) != ""

	switch {
	case hasCommands && hasScript:
		return nil, ErrAmbiguousInput
	case hasCommands:
		if int64(len(input.Commands)) > s.limits.MaxCommands {
			return nil, fmt.Errorf("%w: %d commands (max %d)", ErrInputTooLarge, len(input.Commands), s.limits.MaxCommands)
		}

		cmds, err := command.ParseLines(input.Commands)
		if err != nil {
			return nil, err
		}

		return command.NewSliceSource(cmds), nil
	case hasScript:
		if len(input.Script) > s.limits.MaxScriptBytes {
			return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(input.Script), s.limits.MaxScriptBytes)
		}

		return command.NewTextReader(strings.NewReader(input.Script),
			command.WithMaxCommands(s.limits.MaxCommands),
			command.WithMaxLineSize(s.limits.MaxLineBytes),
		), nil
	default:
		return nil, ErrNoInput
	}
}
