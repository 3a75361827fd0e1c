// Package render writes query answers and stream statistics in the
// supported output formats.
package render

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/shelfrank/pkg/engine"
)

// Output formats.
const (
	FormatPlain = "plain"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

const yamlIndent = 2

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Result is the structured document produced for a finished stream.
type Result struct {
	Answers []int64       `json:"answers"         yaml:"answers"`
	Stats   *engine.Stats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// AnswerWriter receives answers as they are produced.
type AnswerWriter interface {
	// Write records one answer.
	Write(answer int64) error
	// Close completes the output after a successful stream.
	Close() error
	// Abort ends the output after a failed stream. Streamed formats keep
	// what was already produced; document formats write nothing.
	Abort() error
}

// NewAnswerWriter returns an AnswerWriter for format.
func NewAnswerWriter(w io.Writer, format string) (AnswerWriter, error) {
	switch format {
	case FormatPlain, "":
		return &plainWriter{buf: bufio.NewWriter(w)}, nil
	case FormatJSON:
		return &documentWriter{out: w, encode: encodeJSON}, nil
	case FormatYAML:
		return &documentWriter{out: w, encode: encodeYAML}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteResult writes a complete result document in format. Plain output
// lists the answers only.
func WriteResult(w io.Writer, format string, result Result) error {
	if result.Answers == nil {
		result.Answers = []int64{}
	}

	switch format {
	case FormatPlain, "":
		aw := &plainWriter{buf: bufio.NewWriter(w)}

		for _, answer := range result.Answers {
			err := aw.Write(answer)
			if err != nil {
				return err
			}
		}

		return aw.Close()
	case FormatJSON:
		return encodeJSON(w, result)
	case FormatYAML:
		return encodeYAML(w, result)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

type plainWriter struct {
	buf     *bufio.Writer
	scratch []byte
}

func (p *plainWriter) Write(answer int64) error {
	p.scratch = strconv.AppendInt(p.scratch[:0], answer, 10)
	p.scratch = append(p.scratch, '\n')

	_, err := p.buf.Write(p.scratch)
	if err != nil {
		return fmt.Errorf("write answer: %w", err)
	}

	return nil
}

func (p *plainWriter) Close() error {
	err := p.buf.Flush()
	if err != nil {
		return fmt.Errorf("flush answers: %w", err)
	}

	return nil
}

func (p *plainWriter) Abort() error {
	return p.Close()
}

type documentWriter struct {
	out     io.Writer
	encode  func(io.Writer, Result) error
	answers []int64
}

func (d *documentWriter) Write(answer int64) error {
	d.answers = append(d.answers, answer)

	return nil
}

func (d *documentWriter) Close() error {
	answers := d.answers
	if answers == nil {
		answers = []int64{}
	}

	return d.encode(d.out, Result{Answers: answers})
}

func (d *documentWriter) Abort() error {
	d.answers = nil

	return nil
}

func encodeJSON(w io.Writer, result Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(result)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func encodeYAML(w io.Writer, result Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(result)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return nil
}
