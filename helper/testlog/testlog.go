// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

// Package testlog writes component logs through testing.T so output only
// shows up for failing (or verbose) tests.
package testlog

import (
	"io"
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// LogPrinter is the methods of testing.T (or testing.B) needed by the test
// logger.
type LogPrinter interface {
	Logf(format string, args ...interface{})
}

// writer implements io.Writer on top of a LogPrinter.
type writer struct {
	t LogPrinter
}

// Write to an underlying LogPrinter. Never returns an error.
func (w *writer) Write(p []byte) (n int, err error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

// UseStderr returns true if MURAL_TEST_STDERR is set, bypassing testing.T so
// logs stream out even while a test hangs.
func UseStderr() bool {
	return os.Getenv("MURAL_TEST_STDERR") == "1"
}

// NewWriter creates a new io.Writer backed by a LogPrinter.
func NewWriter(t LogPrinter) io.Writer {
	if UseStderr() {
		return os.Stderr
	}
	return &writer{t}
}

// HCLogger returns a new hclog logger for t. The level defaults to trace and
// may be overridden with MURAL_TEST_LOG_LEVEL.
func HCLogger(t LogPrinter) hclog.InterceptLogger {
	level := hclog.Trace
	if env := os.Getenv("MURAL_TEST_LOG_LEVEL"); env != "" {
		level = hclog.LevelFromString(env)
	}
	return hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Level:           level,
		Output:          NewWriter(t),
		IncludeLocation: true,
	})
}
