package command

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// lz4Ext marks LZ4-framed files.
const lz4Ext = ".lz4"

// StdStream is the path that selects stdin or stdout.
const StdStream = "-"

// IsLZ4 reports whether path names an LZ4-framed file.
func IsLZ4(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), lz4Ext)
}

// Open opens an input path for reading. "-" and "" read stdin; paths ending
// in .lz4 are decompressed transparently.
func Open(path string) (io.ReadCloser, error) {
	if path == "" || path == StdStream {
		return io.NopCloser(os.Stdin), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	if !IsLZ4(path) {
		return file, nil
	}

	return &lz4ReadCloser{Reader: lz4.NewReader(file), file: file}, nil
}

type lz4ReadCloser struct {
	*lz4.Reader

	file *os.File
}

func (rc *lz4ReadCloser) Close() error {
	return rc.file.Close()
}

// Create opens an output path for writing. "-" and "" write to stdout; paths
// ending in .lz4 are compressed as an LZ4 frame that is finalised on Close.
func Create(path string) (io.WriteCloser, error) {
	if path == "" || path == StdStream {
		return nopWriteCloser{Writer: os.Stdout}, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	if !IsLZ4(path) {
		return file, nil
	}

	return &lz4WriteCloser{Writer: lz4.NewWriter(file), file: file}, nil
}

type lz4WriteCloser struct {
	*lz4.Writer

	file *os.File
}

func (wc *lz4WriteCloser) Close() error {
	return errors.Join(wc.Writer.Close(), wc.file.Close())
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
