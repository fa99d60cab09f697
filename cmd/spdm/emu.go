// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/go-spdm/spdm/protocol"
	"github.com/go-spdm/spdm/spdmtest"
)

func responderCommand() *cli.Command {
	return &cli.Command{
		Name:    "responder-emu",
		Aliases: []string{"emu"},
		Usage:   "Run an emulated responder",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Value:   "127.0.0.1:2345",
				Usage:   "TCP address to listen on",
				Sources: cli.EnvVars("SPDM_LISTEN"),
			},
			&cli.UintFlag{
				Name:  "ct-exponent",
				Usage: "Cryptographic timeout exponent advertised in CAPABILITIES",
			},
			&cli.IntFlag{
				Name:  "busy",
				Usage: "Answer this many requests of each connection with Busy",
			},
		},
		Action: runResponder,
	}
}

func runResponder(ctx context.Context, cmd *cli.Command) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cmd.String("listen"))
	if err != nil {
		return fmt.Errorf("error listening: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	slog.Info("responder listening", "addr", ln.Addr())

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("error accepting connection: %w", err)
		}

		resp := &spdmtest.Responder{
			Versions:   []protocol.VersionNumberEntry{protocol.Version10},
			CTExponent: uint8(cmd.Uint("ct-exponent")),
			BusyCount:  cmd.Int("busy"),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = conn.Close() }()
			slog.Debug("connection accepted", "remote", conn.RemoteAddr())
			if err := spdmtest.Serve(ctx, conn, resp); err != nil && ctx.Err() == nil {
				slog.Warn("connection failed", "remote", conn.RemoteAddr(), "error", err)
			}
		}()
	}
}
