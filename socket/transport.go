// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package socket drives SPDM negotiation over a byte stream carrying raw SPDM
// messages with no transport header.
package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/go-spdm/spdm"
	"github.com/go-spdm/spdm/protocol"
)

// Defaults for zero Transport fields
const (
	DefaultMaxMessageSize = 4096
	DefaultBusyRetries    = 3
	DefaultBusyDelay      = 100 * time.Millisecond
)

// Transport feeds a [spdm.Requester] from a stream connection.
type Transport struct {
	// Conn carries raw SPDM messages. If it implements SetDeadline, the
	// context deadline and cancellation are applied to it.
	Conn io.ReadWriter

	// MaxMessageSize bounds a single response. Defaults to 4096.
	MaxMessageSize int

	// BusyRetries is the number of times each request answered with a Busy
	// error is resent. The count restarts once a request is answered with
	// its response. Negative values disable retries. Defaults to 3.
	BusyRetries int

	// BusyDelay is the wait before resending after Busy. Defaults to 100ms.
	BusyDelay time.Duration

	// Metrics, if set, records message and negotiation statistics.
	Metrics *Metrics
}

// Dial connects to a responder.
func Dial(ctx context.Context, network, addr string) (*Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("error dialing %s %s: %w", network, addr, err)
	}
	return &Transport{Conn: conn}, nil
}

// Close closes the connection if it is an io.Closer.
func (t *Transport) Close() error {
	if c, ok := t.Conn.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *Transport) maxMessageSize() int {
	if t.MaxMessageSize <= 0 {
		return DefaultMaxMessageSize
	}
	return t.MaxMessageSize
}

func (t *Transport) busyRetries() int {
	switch {
	case t.BusyRetries < 0:
		return 0
	case t.BusyRetries == 0:
		return DefaultBusyRetries
	default:
		return t.BusyRetries
	}
}

func (t *Transport) busyDelay() time.Duration {
	if t.BusyDelay <= 0 {
		return DefaultBusyDelay
	}
	return t.BusyDelay
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// Negotiate steps the requester until it is negotiated or fails. Peer ERROR
// responses other than retried Busy errors are returned as a wrapped
// protocol.ErrorResponse, leaving the requester in the matching send state.
func (t *Transport) Negotiate(ctx context.Context, r *spdm.Requester) (*spdm.Connection, error) {
	if t.Conn == nil {
		return nil, errors.New("socket: no connection")
	}
	if c, ok := t.Conn.(deadliner); ok {
		if deadline, ok := ctx.Deadline(); ok {
			if err := c.SetDeadline(deadline); err != nil {
				return nil, fmt.Errorf("error setting deadline: %w", err)
			}
		}
		stop := context.AfterFunc(ctx, func() { _ = c.SetDeadline(time.Unix(1, 0)) })
		defer func() {
			stop()
			_ = c.SetDeadline(time.Time{})
		}()
	}

	start := time.Now()
	conn, err := t.negotiate(ctx, r)
	t.Metrics.negotiation(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	slog.Debug("socket: negotiated", "connection", conn, "duration", time.Since(start))
	return conn, nil
}

func (t *Transport) negotiate(ctx context.Context, r *spdm.Requester) (*spdm.Connection, error) {
	size := t.maxMessageSize()
	wbuf := make([]byte, size)
	rbuf := make([]byte, 0, size)

	var busy int
	for !r.Negotiated() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		need, produced, err := r.Step(rbuf, wbuf)
		var peerErr protocol.ErrorResponse
		switch {
		case errors.As(err, &peerErr):
			t.received(rbuf)
			rbuf = rbuf[:0]
			t.Metrics.peerError(peerErr.Code)
			if peerErr.Code != protocol.Busy || busy >= t.busyRetries() {
				return nil, fmt.Errorf("socket: peer error in state %s: %w", r.State(), err)
			}
			busy++
			slog.Debug("socket: responder busy", "attempt", busy, "state", r.State())
			if err := sleep(ctx, t.busyDelay()); err != nil {
				return nil, err
			}

		case err != nil:
			return nil, fmt.Errorf("socket: negotiation failed in state %s: %w", r.State(), err)

		case produced > 0:
			if _, err := t.Conn.Write(wbuf[:produced]); err != nil {
				return nil, t.ioErr(ctx, "writing request", err)
			}
			debugMessage(directionSent, wbuf[:produced])
			t.Metrics.message(directionSent, wbuf[:produced])

		case need > 0:
			have := len(rbuf)
			if have+need > cap(rbuf) {
				return nil, fmt.Errorf("socket: response exceeds %d bytes", cap(rbuf))
			}
			if _, err := io.ReadFull(t.Conn, rbuf[have:have+need]); err != nil {
				return nil, t.ioErr(ctx, "reading response", err)
			}
			rbuf = rbuf[:have+need]

		default:
			if len(rbuf) > 0 {
				t.received(rbuf)
				rbuf = rbuf[:0]
				busy = 0
			}
		}
	}
	return r.Connection(), nil
}

func (t *Transport) received(msg []byte) {
	debugMessage(directionReceived, msg)
	t.Metrics.message(directionReceived, msg)
}

func (t *Transport) ioErr(ctx context.Context, action string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("socket: error %s: %w", action, ctxErr)
	}
	return fmt.Errorf("socket: error %s: %w", action, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
