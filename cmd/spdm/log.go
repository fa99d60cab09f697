// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package main

import (
	"io"
	"log/slog"
	"os"

	"hermannm.dev/devlog"
)

// level is raised to debug by the --debug flag.
var level slog.LevelVar

// setupLogging routes the default logger to w, or to stderr when w is nil.
func setupLogging(w io.Writer, debug bool) {
	if w == nil {
		w = os.Stderr
	}
	if debug {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	slog.SetDefault(slog.New(devlog.NewHandler(w, &devlog.Options{Level: &level})))
}
