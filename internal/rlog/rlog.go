// rlog.go - the log-file opener and the diagnostics logger.
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2
//
// One of spec.md's "explicitly out of scope" external collaborators (the
// log-file opener), plus the structured-logging shim that every cmd/*
// binary uses for the same purpose repairshr.c's log_change/log_error did:
// a single mutex-guarded sink for human-readable diagnostics, separate from
// the CSV records on stdout. Built on github.com/opencoff/go-logger, the
// way go-fio's own test harness wires it up in testsuite/run.go.
package rlog

import (
	"fmt"
	"os"
	"time"

	logger "github.com/opencoff/go-logger"
)

// Log is a thin wrapper around a go-logger.Logger, giving every cmd/*
// binary the same diagnostics surface regardless of whether its
// destination is stderr (pwalk, repairshr) or a timestamped log file
// (ppurge).
type Log struct {
	l logger.Logger
}

// NewStderr returns a Log that writes to stderr, for pwalk and repairshr.
func NewStderr(name string) (*Log, error) {
	l, err := logger.NewLogger(os.Stderr, logger.LOG_DEBUG, name, logger.Ldate|logger.Ltime)
	if err != nil {
		return nil, fmt.Errorf("rlog: %w", err)
	}
	return &Log{l: l}, nil
}

// NewTimestampedFile opens "<prefix>-YYYY.MM.DD-HH_MM_SS.log" in the
// current directory and returns a Log that writes to it -- ppurge's
// per-run log file, per spec.md §6.
func NewTimestampedFile(prefix string, now time.Time) (*Log, string, error) {
	name := fmt.Sprintf("%s-%s.log", prefix, now.Format("2006.01.02-15_04_05"))
	f, err := os.Create(name)
	if err != nil {
		return nil, "", fmt.Errorf("rlog: open %s: %w", name, err)
	}
	l, err := logger.NewLogger(f, logger.LOG_DEBUG, prefix, logger.Ldate|logger.Ltime)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("rlog: %w", err)
	}
	return &Log{l: l}, name, nil
}

// Errorf logs a per-entry diagnostic. Per-entry errors are expected to be
// frequent and are never fatal to the walk (spec.md §7).
func (r *Log) Errorf(format string, args ...any) {
	r.l.Err(format, args...)
}

// Info logs a non-error, non-error diagnostic (repair "would change"/
// "changed" lines, summary lines).
func (r *Log) Info(format string, args ...any) {
	r.l.Info(format, args...)
}

// Close releases the underlying logger (and its log file, if any).
func (r *Log) Close() error {
	return r.l.Close()
}
