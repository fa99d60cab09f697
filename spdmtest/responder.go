// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package spdmtest contains an SPDM responder emulator and other test
// utilities.
package spdmtest

import (
	"log/slog"
	"math/bits"

	"github.com/go-spdm/spdm/codec"
	"github.com/go-spdm/spdm/protocol"
)

// Defaults used by the zero value of Responder.
const (
	DefaultFlags        = protocol.CertCap | protocol.ChalCap | protocol.MeasCapSig
	DefaultBaseAsymAlgo = protocol.ECDSAP256 | protocol.ECDSAP384
	DefaultBaseHashAlgo = protocol.SHA256 | protocol.SHA384
	DefaultMeasHashAlgo = protocol.MeasSHA384
)

// Responder emulates the version, capabilities and algorithms negotiation of
// an SPDM 1.0 responder. It holds no session state other than fault
// injection counters.
type Responder struct {
	// Versions advertised in VERSION. Defaults to 1.0.
	Versions []protocol.VersionNumberEntry

	// Capabilities advertised in CAPABILITIES. Flags defaults to
	// DefaultFlags.
	CTExponent uint8
	Flags      protocol.CapabilityFlags

	// Supported algorithms. From the intersection with what is offered, the
	// highest bit is selected.
	BaseAsymAlgo        protocol.BaseAsymAlgo
	BaseHashAlgo        protocol.BaseHashAlgo
	MeasurementHashAlgo protocol.MeasurementHashAlgo

	// BusyCount is the number of requests answered with a Busy error before
	// any request is processed normally.
	BusyCount int

	// ErrorOn answers every request of a code with the given error.
	ErrorOn map[protocol.Code]protocol.ErrorCode

	// Tamper, if set, is called with each encoded response and may modify it
	// in place.
	Tamper func(code protocol.Code, resp []byte)

	busy int
}

var _ protocol.Responder = (*Responder)(nil)

func (r *Responder) versions() []protocol.VersionNumberEntry {
	if len(r.Versions) == 0 {
		return []protocol.VersionNumberEntry{protocol.Version10}
	}
	return r.Versions
}

func (r *Responder) flags() protocol.CapabilityFlags {
	if r.Flags == 0 {
		return DefaultFlags
	}
	return r.Flags
}

func (r *Responder) supports(spdmVersion uint8) bool {
	for _, v := range r.versions() {
		if v.SPDMVersion() == spdmVersion {
			return true
		}
	}
	return false
}

// Respond implements protocol.Responder.
func (r *Responder) Respond(req, resp []byte) (consumed, produced int, err error) {
	var h protocol.Header
	if _, err := h.Decode(req); err != nil {
		if _, ok := codec.Need(err); ok {
			return 0, 0, err
		}
		slog.Debug("spdmtest: malformed request header", "error", err)
		return r.encode(len(req), 0, errorFor(protocol.Header{SPDMVersion: protocol.SPDMVersion10}, protocol.InvalidRequest), resp)
	}

	consumed, msg, err := r.handle(h, req)
	if _, ok := codec.Need(err); ok {
		return 0, 0, err
	}
	if err != nil {
		slog.Debug("spdmtest: malformed request", "code", h.Code, "error", err)
		return r.encode(len(req), h.Code, errorFor(h, protocol.InvalidRequest), resp)
	}

	if code, ok := r.ErrorOn[h.Code]; ok {
		msg = errorFor(h, code)
	} else if r.busy < r.BusyCount {
		r.busy++
		msg = errorFor(h, protocol.Busy)
	}
	return r.encode(consumed, h.Code, msg, resp)
}

func (r *Responder) encode(consumed int, code protocol.Code, msg codec.Encoder, resp []byte) (int, int, error) {
	n, err := msg.Encode(resp)
	if err != nil {
		return 0, 0, err
	}
	if r.Tamper != nil {
		r.Tamper(code, resp[:n])
	}
	slog.Debug("spdmtest: response", "request", code, "bytes", n)
	return consumed, n, nil
}

func errorFor(h protocol.Header, code protocol.ErrorCode) protocol.ErrorResponse {
	e := protocol.ErrorResponse{SPDMVersion: h.SPDMVersion, Code: code}
	if code == protocol.ResponseNotReady {
		e.NotReady = protocol.ResponseNotReadyData{RDTExponent: 10, RequestCode: h.Code, Token: 1, RDTM: 1}
	}
	return e
}

func (r *Responder) handle(h protocol.Header, req []byte) (int, codec.Encoder, error) {
	if h.Code != protocol.GetVersionCode && !r.supports(h.SPDMVersion) {
		return protocol.HeaderSize, errorFor(h, protocol.MajorVersionMismatch), nil
	}

	switch h.Code {
	case protocol.GetVersionCode:
		var m protocol.GetVersion
		n, err := m.Decode(req)
		if err != nil {
			return 0, nil, err
		}
		resp, err := protocol.NewVersion(r.versions()...)
		if err != nil {
			return 0, nil, err
		}
		return n, resp, nil

	case protocol.GetCapabilitiesCode:
		var m protocol.GetCapabilities
		n, err := m.Decode(req)
		if err != nil {
			return 0, nil, err
		}
		return n, protocol.Capabilities{
			Header:     protocol.Header{SPDMVersion: h.SPDMVersion},
			CTExponent: r.CTExponent,
			Flags:      r.flags(),
		}, nil

	case protocol.NegotiateAlgorithmsCode:
		var m protocol.NegotiateAlgorithms
		n, err := m.Decode(req)
		if err != nil {
			return 0, nil, err
		}
		return n, r.selectAlgorithms(m), nil

	default:
		return protocol.HeaderSize, errorFor(h, protocol.UnsupportedRequest), nil
	}
}

func (r *Responder) selectAlgorithms(m protocol.NegotiateAlgorithms) protocol.Algorithms {
	asym, hash, measHash := r.BaseAsymAlgo, r.BaseHashAlgo, r.MeasurementHashAlgo
	if asym == 0 {
		asym = DefaultBaseAsymAlgo
	}
	if hash == 0 {
		hash = DefaultBaseHashAlgo
	}
	if measHash == 0 {
		measHash = DefaultMeasHashAlgo
	}

	sel := protocol.Algorithms{
		Header:                      protocol.Header{SPDMVersion: m.SPDMVersion},
		MeasurementSpecificationSel: m.MeasurementSpecification & protocol.DMTFMeasurementSpec,
		BaseAsymSel:                 highestBit(m.BaseAsymAlgo & asym),
		BaseHashSel:                 highestBit(m.BaseHashAlgo & hash),
	}
	if r.flags().MeasCap() != 0 && sel.MeasurementSpecificationSel != 0 {
		sel.MeasurementHashAlgo = highestBit(measHash)
	}
	return sel
}

func highestBit[T ~uint32](v T) T {
	if v == 0 {
		return 0
	}
	return 1 << (bits.Len32(uint32(v)) - 1)
}
