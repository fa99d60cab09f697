// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package spdmtest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-spdm/spdm/codec"
	"github.com/go-spdm/spdm/protocol"
)

// MaxMessageSize bounds requests and responses handled by Serve.
const MaxMessageSize = 4096

// Serve answers requests read from a raw SPDM message stream until the peer
// closes the stream or the context is canceled. If conn is an io.Closer it is
// closed when the context is done.
func Serve(ctx context.Context, conn io.ReadWriter, r protocol.Responder) error {
	if c, ok := conn.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	req := make([]byte, 0, MaxMessageSize)
	resp := make([]byte, MaxMessageSize)
	need := protocol.HeaderSize
	for {
		if _, err := io.ReadFull(conn, req[len(req):need]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) && len(req) == 0 {
				return nil
			}
			return fmt.Errorf("error reading request: %w", err)
		}
		req = req[:need]

		_, produced, err := r.Respond(req, resp)
		if n, ok := codec.Need(err); ok {
			if n <= len(req) || n > cap(req) {
				return fmt.Errorf("error responding to %d byte request: %w", len(req), err)
			}
			need = n
			continue
		}
		if err != nil {
			return fmt.Errorf("error responding: %w", err)
		}

		if _, err := conn.Write(resp[:produced]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("error writing response: %w", err)
		}
		req, need = req[:0], protocol.HeaderSize
	}
}
