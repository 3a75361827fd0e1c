// Package verify compares produced answers against an expected answer list
// and renders line diffs for mismatches.
package verify

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Sentinel errors.
var (
	ErrAnswerMismatch = errors.New("answers do not match expected output")
	ErrInvalidAnswer  = errors.New("invalid expected answer")
)

// ParseAnswers reads one integer answer per line. Blank lines are skipped.
func ParseAnswers(r io.Reader) ([]int64, error) {
	scanner := bufio.NewScanner(r)
	answers := make([]int64, 0)
	line := 0

	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		answer, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidAnswer, line, text)
		}

		answers = append(answers, answer)
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read expected answers: %w", err)
	}

	return answers, nil
}

// Report describes how produced answers differ from expected ones.
type Report struct {
	Diffs []diffmatchpatch.Diff

	// FirstMismatch is the 1-based index of the first differing answer,
	// or 0 when the lists match.
	FirstMismatch int
	Got           int
	Want          int
}

// Equal reports whether no difference was found.
func (r *Report) Equal() bool {
	return r.FirstMismatch == 0
}

// Compare diffs got against want line by line. The returned error wraps
// ErrAnswerMismatch when they differ.
func Compare(got, want []int64) (*Report, error) {
	report := &Report{Got: len(got), Want: len(want)}

	for i := range max(len(got), len(want)) {
		if i >= len(got) || i >= len(want) || got[i] != want[i] {
			report.FirstMismatch = i + 1

			break
		}
	}

	if report.Equal() {
		return report, nil
	}

	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(joinAnswers(want), joinAnswers(got))
	report.Diffs = dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lines)

	return report, fmt.Errorf("%w: first difference at answer %d (got %d answers, want %d)",
		ErrAnswerMismatch, report.FirstMismatch, report.Got, report.Want)
}

func joinAnswers(answers []int64) string {
	if len(answers) == 0 {
		return ""
	}

	lines := lo.Map(answers, func(answer int64, _ int) string {
		return strconv.FormatInt(answer, 10)
	})

	return strings.Join(lines, "\n") + "\n"
}

// WriteDiff writes the report as unified-style lines: "-" for expected
// answers that are missing, "+" for produced answers that are unexpected.
func (r *Report) WriteDiff(w io.Writer) error {
	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)

	for _, d := range r.Diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}

			var err error

			switch d.Type {
			case diffmatchpatch.DiffDelete:
				_, err = removed.Fprint(w, "-"+line)
			case diffmatchpatch.DiffInsert:
				_, err = added.Fprint(w, "+"+line)
			case diffmatchpatch.DiffEqual:
				_, err = fmt.Fprint(w, " "+line)
			}

			if err != nil {
				return fmt.Errorf("write diff: %w", err)
			}
		}
	}

	return nil
}
