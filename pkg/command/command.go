// Package command parses the shelf instruction streams that drive a
// shelf.Tracker: the line protocol ("n" followed by n "L|R|? <id>" lines) and
// a JSON script form. Both are exposed through the Source interface.
package command

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Input formats.
const (
	// FormatAuto selects the format from the input file extension.
	FormatAuto = "auto"
	// FormatText is the line protocol.
	FormatText = "text"
	// FormatJSON is the JSON script format.
	FormatJSON = "json"
)

// Sentinel parse errors.
var (
	// ErrMissingCount indicates the stream ended before the command count.
	ErrMissingCount = errors.New("missing command count")
	// ErrInvalidCount indicates the count line is not a non-negative integer.
	ErrInvalidCount = errors.New("invalid command count")
	// ErrTooManyCommands indicates the declared count exceeds the configured limit.
	ErrTooManyCommands = errors.New("too many commands")
	// ErrMalformedCommand indicates an unrecognized op or a missing or extra token.
	ErrMalformedCommand = errors.New("malformed command")
	// ErrTruncatedStream indicates fewer command lines than the declared count.
	ErrTruncatedStream = errors.New("truncated command stream")
	// ErrLineTooLong indicates a line longer than the configured maximum.
	ErrLineTooLong = errors.New("line too long")
	// ErrInvalidScript indicates a JSON script that fails schema validation.
	ErrInvalidScript = errors.New("invalid command script")
	// ErrInvalidInputFormat indicates an unsupported input format name.
	ErrInvalidInputFormat = errors.New("invalid input format")
)

// Op is a shelf instruction.
type Op byte

// Instruction letters as they appear on the wire.
const (
	OpPrepend Op = 'L'
	OpAppend  Op = 'R'
	OpQuery   Op = '?'
)

// String returns the wire letter.
func (op Op) String() string {
	return string(rune(op))
}

// ParseOp maps a wire token to its Op.
func ParseOp(token string) (Op, error) {
	switch token {
	case "L":
		return OpPrepend, nil
	case "R":
		return OpAppend, nil
	case "?":
		return OpQuery, nil
	default:
		return 0, fmt.Errorf("%w: unknown op %q", ErrMalformedCommand, token)
	}
}

// Command is one parsed instruction. Line is the 1-based input line for the
// line protocol, or the 1-based command index for scripts.
type Command struct {
	Op   Op
	ID   string
	Line int
}

// String renders the command in wire form.
func (c Command) String() string {
	return c.Op.String() + " " + c.ID
}

// Source yields commands in stream order. Next returns io.EOF once the
// stream is exhausted.
type Source interface {
	Next() (Command, error)
}

// LineError attaches an input position to a stream failure.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}

	return fmt.Sprintf("line %d (%s): %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// LineOf returns the input line recorded anywhere in err's chain.
func LineOf(err error) (int, bool) {
	var le *LineError
	if errors.As(err, &le) {
		return le.Line, true
	}

	return 0, false
}

// ParseLine parses one "op id" line.
func ParseLine(text string, line int) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Command{}, &LineError{
			Line: line,
			Text: text,
			Err:  fmt.Errorf("%w: want 2 fields, got %d", ErrMalformedCommand, len(fields)),
		}
	}

	op, err := ParseOp(fields[0])
	if err != nil {
		return Command{}, &LineError{Line: line, Text: text, Err: err}
	}

	return Command{Op: op, ID: fields[1], Line: line}, nil
}

// ParseLines parses a list of command lines without a count header.
func ParseLines(lines []string) ([]Command, error) {
	cmds := make([]Command, 0, len(lines))

	for i, text := range lines {
		cmd, err := ParseLine(text, i+1)
		if err != nil {
			return nil, err
		}

		cmds = append(cmds, cmd)
	}

	return cmds, nil
}

// SliceSource replays a fixed list of commands.
type SliceSource struct {
	cmds []Command
	pos  int
}

// NewSliceSource creates a Source over cmds.
func NewSliceSource(cmds []Command) *SliceSource {
	return &SliceSource{cmds: cmds}
}

// Next returns the next command or io.EOF.
func (s *SliceSource) Next() (Command, error) {
	if s.pos >= len(s.cmds) {
		return Command{}, io.EOF
	}

	cmd := s.cmds[s.pos]
	s.pos++

	return cmd, nil
}

// Len returns the total number of commands.
func (s *SliceSource) Len() int {
	return len(s.cmds)
}

// ResolveInputFormat resolves FormatAuto against the input path extension.
// Compression suffixes are ignored during detection.
func ResolveInputFormat(inputPath, inputFormat string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(inputFormat))
	if normalized == "" || normalized == FormatAuto {
		base := strings.TrimSuffix(strings.ToLower(inputPath), lz4Ext)
		if filepath.Ext(base) == ".json" {
			return FormatJSON, nil
		}

		return FormatText, nil
	}

	switch normalized {
	case FormatText, FormatJSON:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidInputFormat, inputFormat)
	}
}

// NewSource opens a Source of the given resolved format over r.
func NewSource(r io.Reader, format string, opts ...Option) (Source, error) {
	switch format {
	case FormatText:
		return NewTextReader(r, opts...), nil
	case FormatJSON:
		return NewScriptReader(r, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidInputFormat, format)
	}
}
