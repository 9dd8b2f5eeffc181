// Package logging builds the loggers used across sevensync.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log output goes.
type Options struct {
	// File, when non-empty, mirrors output into a size-rotated log file.
	File       string
	MaxSizeMB  int
	MaxBackups int

	// Quiet drops stderr output, leaving only the file (if any).
	Quiet bool
}

// New returns a logger with the given prefix writing to stderr and, when
// configured, a rotating file. The returned closer flushes and closes the
// file writer; it is a no-op when no file was configured.
func New(prefix string, opts Options) (*log.Logger, io.Closer) {
	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stderr)
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		writers = append(writers, lj)
		closer = lj
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	return log.New(out, prefix, log.LstdFlags), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
