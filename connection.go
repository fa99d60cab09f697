// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package spdm

import (
	"log/slog"

	"github.com/go-spdm/spdm/protocol"
)

// Connection is the outcome of a successful negotiation.
type Connection struct {
	// Version is the responder's entry for the selected version.
	Version protocol.VersionNumberEntry

	// PeerVersions lists every version advertised by the responder.
	PeerVersions []protocol.VersionNumberEntry

	// Responder capabilities
	CTExponent uint8
	Flags      protocol.CapabilityFlags

	// Selected algorithms
	MeasurementSpecification protocol.MeasurementSpecification
	MeasurementHashAlgo      protocol.MeasurementHashAlgo
	BaseAsymAlgo             protocol.BaseAsymAlgo
	BaseHashAlgo             protocol.BaseHashAlgo
	ExtAsym                  []protocol.ExtAlgorithm
	ExtHash                  []protocol.ExtAlgorithm
}

// LogValue implements slog.LogValuer.
func (c *Connection) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", c.Version.String()),
		slog.Any("flags", c.Flags),
		slog.Any("measurementSpec", c.MeasurementSpecification),
		slog.Any("measurementHash", c.MeasurementHashAlgo),
		slog.Any("baseAsym", c.BaseAsymAlgo),
		slog.Any("baseHash", c.BaseHashAlgo),
	)
}
