// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/go-spdm/spdm"
	"github.com/go-spdm/spdm/protocol"
	"github.com/go-spdm/spdm/socket"
)

func requesterCommand() *cli.Command {
	return &cli.Command{
		Name:    "requester",
		Aliases: []string{"req"},
		Usage:   "Negotiate with a responder and print the result",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   "127.0.0.1:2345",
				Usage:   "Responder TCP address",
				Sources: cli.EnvVars("SPDM_ADDR"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Second,
				Usage: "Time limit for each negotiation",
			},
			&cli.IntFlag{
				Name:  "busy-retries",
				Value: socket.DefaultBusyRetries,
				Usage: "Times to resend a request answered with Busy (negative to disable)",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Negotiate repeatedly at this interval until interrupted",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics at this address (e.g. :9100)",
			},
		},
		Action: runRequester,
	}
}

func runRequester(ctx context.Context, cmd *cli.Command) error {
	var metrics *socket.Metrics
	if addr := cmd.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		metrics = socket.NewMetrics(reg)
		stop, err := serveMetrics(addr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	interval := cmd.Duration("interval")
	for {
		conn, err := negotiate(ctx, cmd, metrics)
		if err != nil && interval == 0 {
			return err
		}
		if err != nil {
			slog.Warn("negotiation failed", "addr", cmd.String("addr"), "error", err)
		} else {
			printConnection(cmd.Root().Writer, conn)
		}
		if interval == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func negotiate(ctx context.Context, cmd *cli.Command, metrics *socket.Metrics) (*spdm.Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	tr, err := socket.Dial(ctx, "tcp", cmd.String("addr"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = tr.Close() }()
	tr.BusyRetries = cmd.Int("busy-retries")
	tr.Metrics = metrics

	r, err := spdm.NewRequester(spdm.RequesterConfig{})
	if err != nil {
		return nil, err
	}
	return tr.Negotiate(ctx, r)
}

func serveMetrics(addr string, reg *prometheus.Registry) (stop func(), _ error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error listening for metrics on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr())
	return func() { _ = srv.Close() }, nil
}

func printConnection(w io.Writer, c *spdm.Connection) {
	ext := func(algs []protocol.ExtAlgorithm) string {
		if len(algs) == 0 {
			return "none"
		}
		return fmt.Sprint(algs)
	}
	fmt.Fprintf(w, "Version:                   %s (peer offered %v)\n", c.Version, c.PeerVersions)
	fmt.Fprintf(w, "Capabilities:              %s\n", c.Flags)
	fmt.Fprintf(w, "CT exponent:               %d\n", c.CTExponent)
	fmt.Fprintf(w, "Measurement specification: %s\n", c.MeasurementSpecification)
	fmt.Fprintf(w, "Measurement hash:          %s\n", c.MeasurementHashAlgo)
	fmt.Fprintf(w, "Base asymmetric algorithm: %s\n", c.BaseAsymAlgo)
	fmt.Fprintf(w, "Base hash algorithm:       %s\n", c.BaseHashAlgo)
	fmt.Fprintf(w, "Extended asymmetric:       %s\n", ext(c.ExtAsym))
	fmt.Fprintf(w, "Extended hash:             %s\n", ext(c.ExtHash))
}
