// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package spdm

import (
	"fmt"

	"github.com/go-spdm/spdm/protocol"
)

// Algorithm offers used when the corresponding RequesterConfig field is zero.
const (
	DefaultMeasurementSpecification = protocol.DMTFMeasurementSpec
	DefaultBaseAsymAlgo             = protocol.ECDSAP256 | protocol.ECDSAP384
	DefaultBaseHashAlgo             = protocol.SHA256 | protocol.SHA384
)

// RequesterConfig controls what a [Requester] offers and accepts. The zero
// value is usable.
type RequesterConfig struct {
	// Versions supported locally. Only SPDM 1.0 message layouts are
	// implemented, so every entry must be a 1.0 version (update and alpha
	// may vary). Defaults to 1.0.
	Versions []protocol.VersionNumberEntry

	// RequireFlags are capabilities the responder must advertise. Negotiation
	// fails after CAPABILITIES when any is missing.
	RequireFlags protocol.CapabilityFlags

	// Algorithms offered in NEGOTIATE_ALGORITHMS
	MeasurementSpecification protocol.MeasurementSpecification
	BaseAsymAlgo             protocol.BaseAsymAlgo
	BaseHashAlgo             protocol.BaseHashAlgo
	ExtAsym                  []protocol.ExtAlgorithm
	ExtHash                  []protocol.ExtAlgorithm
}

func (c RequesterConfig) withDefaults() (RequesterConfig, error) {
	if len(c.Versions) == 0 {
		c.Versions = []protocol.VersionNumberEntry{protocol.Version10}
	}
	if len(c.Versions) > protocol.MaxVersionNumberEntries {
		return c, fmt.Errorf("too many versions: %d > %d", len(c.Versions), protocol.MaxVersionNumberEntries)
	}
	for _, v := range c.Versions {
		if !v.Compatible(protocol.Version10) {
			return c, fmt.Errorf("unsupported version %s", v)
		}
	}
	if len(c.ExtAsym) > protocol.MaxExtAlgorithms || len(c.ExtHash) > protocol.MaxExtAlgorithms {
		return c, fmt.Errorf("too many extended algorithms: max %d of each kind", protocol.MaxExtAlgorithms)
	}
	if c.MeasurementSpecification == 0 {
		c.MeasurementSpecification = DefaultMeasurementSpecification
	}
	if c.BaseAsymAlgo == 0 {
		c.BaseAsymAlgo = DefaultBaseAsymAlgo
	}
	if c.BaseHashAlgo == 0 {
		c.BaseHashAlgo = DefaultBaseHashAlgo
	}
	return c, nil
}

func (c *RequesterConfig) negotiateAlgorithms(version protocol.VersionNumberEntry) protocol.NegotiateAlgorithms {
	m := protocol.NegotiateAlgorithms{
		Header:                   protocol.Header{SPDMVersion: version.SPDMVersion()},
		MeasurementSpecification: c.MeasurementSpecification,
		BaseAsymAlgo:             c.BaseAsymAlgo,
		BaseHashAlgo:             c.BaseHashAlgo,
		ExtAsymCount:             uint8(len(c.ExtAsym)),
		ExtHashCount:             uint8(len(c.ExtHash)),
	}
	copy(m.ExtAsym[:], c.ExtAsym)
	copy(m.ExtHash[:], c.ExtHash)
	return m
}
