// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package socket

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/go-spdm/spdm"
	"github.com/go-spdm/spdm/protocol"
)

// Metrics holds Prometheus collectors for negotiations run by a [Transport].
// A nil *Metrics records nothing.
//
// Metrics collected:
//   - spdm_socket_messages_total: messages by direction and code
//   - spdm_socket_bytes_total: bytes by direction
//   - spdm_socket_peer_errors_total: ERROR responses by error code
//   - spdm_socket_negotiations_total: negotiations by result
//   - spdm_socket_negotiation_duration_seconds: negotiation duration
type Metrics struct {
	messages     *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	peerErrors   *prometheus.CounterVec
	negotiations *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewMetrics creates and registers the collectors. A nil Registerer uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spdm",
			Subsystem: "socket",
			Name:      "messages_total",
			Help:      "Total number of SPDM messages sent and received",
		}, []string{"direction", "code"}),

		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spdm",
			Subsystem: "socket",
			Name:      "bytes_total",
			Help:      "Total number of SPDM message bytes sent and received",
		}, []string{"direction"}),

		peerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spdm",
			Subsystem: "socket",
			Name:      "peer_errors_total",
			Help:      "Total number of ERROR responses by error code",
		}, []string{"error_code"}),

		negotiations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spdm",
			Subsystem: "socket",
			Name:      "negotiations_total",
			Help:      "Total number of negotiations by result",
		}, []string{"result"}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spdm",
			Subsystem: "socket",
			Name:      "negotiation_duration_seconds",
			Help:      "Negotiation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}),
	}
}

const (
	directionSent     = "sent"
	directionReceived = "received"
)

func (m *Metrics) message(direction string, msg []byte) {
	if m == nil {
		return
	}
	code := "invalid"
	if c, err := protocol.PeekCode(msg); err == nil {
		code = c.String()
	}
	m.messages.WithLabelValues(direction, code).Inc()
	m.bytes.WithLabelValues(direction).Add(float64(len(msg)))
}

func (m *Metrics) peerError(code protocol.ErrorCode) {
	if m == nil {
		return
	}
	m.peerErrors.WithLabelValues(code.String()).Inc()
}

func (m *Metrics) negotiation(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
	m.negotiations.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	var peerErr protocol.ErrorResponse
	switch {
	case err == nil:
		return "negotiated"
	case errors.As(err, &peerErr):
		return "peer_error"
	case errors.Is(err, protocol.MajorVersionMismatch):
		return "version_mismatch"
	case errors.Is(err, spdm.ErrInvalidSelection), errors.Is(err, spdm.ErrMissingCapabilities):
		return "rejected"
	case errors.Is(err, protocol.InvalidRequest), errors.Is(err, protocol.UnexpectedRequest):
		return "malformed"
	default:
		return "transport_error"
	}
}
