package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultMaxLineSize bounds a single protocol line (64 KiB).
const DefaultMaxLineSize = 64 << 10

// initialLineBuffer is the scanner's starting buffer size.
const initialLineBuffer = 4 << 10

// options holds reader limits.
type options struct {
	maxLineSize int
	maxCommands int64
}

// Option configures a reader.
type Option func(*options)

// WithMaxLineSize caps the length of a single input line. Values <= 0 keep the default.
func WithMaxLineSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.maxLineSize = size
		}
	}
}

// WithMaxCommands rejects streams declaring more than limit commands. Zero means unlimited.
func WithMaxCommands(limit int64) Option {
	return func(o *options) {
		o.maxCommands = limit
	}
}

func buildOptions(opts []Option) options {
	o := options{maxLineSize: DefaultMaxLineSize}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// TextReader reads the line protocol: a count line followed by that many
// command lines. Lines after the last declared command are never read.
type TextReader struct {
	scanner  *bufio.Scanner
	opts     options
	line     int
	declared int64
	read     int64
	started  bool
}

// NewTextReader creates a TextReader over r.
func NewTextReader(r io.Reader, opts ...Option) *TextReader {
	o := buildOptions(opts)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(initialLineBuffer, o.maxLineSize)), o.maxLineSize)

	return &TextReader{scanner: scanner, opts: o}
}

// Declared returns the command count from the header, or -1 before it is read.
func (tr *TextReader) Declared() int64 {
	if !tr.started {
		return -1
	}

	return tr.declared
}

// Next returns the next command, or io.EOF after the declared count.
func (tr *TextReader) Next() (Command, error) {
	if !tr.started {
		err := tr.readHeader()
		if err != nil {
			return Command{}, err
		}
	}

	if tr.read >= tr.declared {
		return Command{}, io.EOF
	}

	text, ok, err := tr.scan()
	if err != nil {
		return Command{}, err
	}

	if !ok {
		return Command{}, &LineError{
			Line: tr.line + 1,
			Err:  fmt.Errorf("%w: declared %d commands, got %d", ErrTruncatedStream, tr.declared, tr.read),
		}
	}

	cmd, err := ParseLine(text, tr.line)
	if err != nil {
		return Command{}, err
	}

	tr.read++

	return cmd, nil
}

// readHeader consumes blank lines and the count line.
func (tr *TextReader) readHeader() error {
	for {
		text, ok, err := tr.scan()
		if err != nil {
			return err
		}

		if !ok {
			return &LineError{Line: tr.line + 1, Err: ErrMissingCount}
		}

		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}

		count, parseErr := strconv.ParseInt(trimmed, 10, 64)
		if parseErr != nil || count < 0 {
			return &LineError{Line: tr.line, Text: trimmed, Err: ErrInvalidCount}
		}

		if tr.opts.maxCommands > 0 && count > tr.opts.maxCommands {
			return &LineError{
				Line: tr.line,
				Text: trimmed,
				Err:  fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyCommands, count, tr.opts.maxCommands),
			}
		}

		tr.declared = count
		tr.started = true

		return nil
	}
}

func (tr *TextReader) scan() (string, bool, error) {
	if tr.scanner.Scan() {
		tr.line++

		return tr.scanner.Text(), true, nil
	}

	err := tr.scanner.Err()
	if err == nil {
		return "", false, nil
	}

	if errors.Is(err, bufio.ErrTooLong) {
		return "", false, &LineError{
			Line: tr.line + 1,
			Err:  fmt.Errorf("%w: limit %d bytes", ErrLineTooLong, tr.opts.maxLineSize),
		}
	}

	return "", false, fmt.Errorf("read commands: %w", err)
}
