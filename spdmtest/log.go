// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package spdmtest

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
)

// TestingLog returns a writer that emits each write as one line of the test
// log.
func TestingLog(tb testing.TB) io.Writer { return testLog{tb} }

type testLog struct{ tb testing.TB }

func (l testLog) Write(p []byte) (int, error) {
	l.tb.Helper()
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		l.tb.Log(string(line))
	}
	return len(p), nil
}

// DebugLog routes the default slog logger to the test log at debug level
// until the test completes.
func DebugLog(tb testing.TB) {
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(TestingLog(tb), &slog.HandlerOptions{Level: slog.LevelDebug})))
	tb.Cleanup(func() { slog.SetDefault(prev) })
}
