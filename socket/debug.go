// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package socket

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/go-spdm/spdm/protocol"
)

func debugEnabled() bool {
	return slog.Default().Enabled(context.Background(), slog.LevelDebug)
}

func debugMessage(direction string, msg []byte) {
	if !debugEnabled() {
		return
	}
	code, err := protocol.PeekCode(msg)
	if err != nil {
		slog.Debug("socket: "+direction, "bytes", len(msg), "hex", hex.EncodeToString(msg))
		return
	}
	slog.Debug("socket: "+direction, "code", code, "bytes", len(msg), "hex", hex.EncodeToString(msg))
}
