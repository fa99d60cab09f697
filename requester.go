// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package spdm

import (
	"fmt"
	"log/slog"

	"github.com/go-spdm/spdm/codec"
	"github.com/go-spdm/spdm/protocol"
)

// Requester drives the VCA negotiation with a single responder. It is not
// safe for concurrent use.
type Requester struct {
	cfg   RequesterConfig
	state State
	cause error

	version protocol.VersionNumberEntry
	peer    protocol.Version
	caps    protocol.Capabilities
	algs    protocol.Algorithms
}

// NewRequester validates the config and returns a Requester in the
// AwaitingVersionSend state.
func NewRequester(cfg RequesterConfig) (*Requester, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("error in requester config: %w", err)
	}
	return &Requester{cfg: cfg}, nil
}

// State returns the current negotiation phase.
func (r *Requester) State() State { return r.state }

// Negotiated reports whether negotiation completed successfully.
func (r *Requester) Negotiated() bool { return r.state == Negotiated }

// Err returns the cause of a terminal failure or nil.
func (r *Requester) Err() error { return r.cause }

// Reset discards all negotiated state and returns to AwaitingVersionSend.
func (r *Requester) Reset() {
	*r = Requester{cfg: r.cfg}
}

// Connection returns the negotiated parameters or nil if negotiation has not
// completed.
func (r *Requester) Connection() *Connection {
	if r.state != Negotiated {
		return nil
	}
	return &Connection{
		Version:                  r.version,
		PeerVersions:             append([]protocol.VersionNumberEntry(nil), r.peer.List()...),
		CTExponent:               r.caps.CTExponent,
		Flags:                    r.caps.Flags,
		MeasurementSpecification: r.algs.MeasurementSpecificationSel,
		MeasurementHashAlgo:      r.algs.MeasurementHashAlgo,
		BaseAsymAlgo:             r.algs.BaseAsymSel,
		BaseHashAlgo:             r.algs.BaseHashSel,
		ExtAsym:                  append([]protocol.ExtAlgorithm(nil), r.algs.ExtAsymSel[:r.algs.ExtAsymSelCount]...),
		ExtHash:                  append([]protocol.ExtAlgorithm(nil), r.algs.ExtHashSel[:r.algs.ExtHashSelCount]...),
	}
}

type stepFunc func(r *Requester, rbuf, wbuf []byte) (need, produced int, err error)

var steps = [numStates]stepFunc{
	AwaitingVersionSend:      (*Requester).sendGetVersion,
	AwaitingVersionRecv:      (*Requester).recvVersion,
	AwaitingCapabilitiesSend: (*Requester).sendGetCapabilities,
	AwaitingCapabilitiesRecv: (*Requester).recvCapabilities,
	AwaitingAlgorithmsSend:   (*Requester).sendNegotiateAlgorithms,
	AwaitingAlgorithmsRecv:   (*Requester).recvAlgorithms,
	Negotiated:               (*Requester).negotiated,
	Failed:                   (*Requester).failed,
}

// responses holds the code each receiving state accepts besides ERROR.
var responses = [numStates]protocol.Code{
	AwaitingVersionRecv:      protocol.VersionCode,
	AwaitingCapabilitiesRecv: protocol.CapabilitiesCode,
	AwaitingAlgorithmsRecv:   protocol.AlgorithmsCode,
}

// Step advances the negotiation by at most one message.
//
// In a sending state, the next request is encoded to the start of wbuf and
// its length is returned as produced. The caller must transmit exactly those
// bytes. If wbuf is too small, a codec.ShortBufferError is returned and the
// state does not change.
//
// In a receiving state, rbuf must hold all bytes of the current response
// received so far. If they are not yet a complete message, need is the number
// of additional bytes to append before calling Step again. Otherwise the
// response is consumed, need and produced are zero, and the state advances.
// Once the header is complete, a response code other than the expected one or
// ERROR fails with UnexpectedRequest, and a version byte other than 0x10 for
// VERSION or the negotiated version afterwards fails with
// MajorVersionMismatch. Both checks apply to ERROR responses too.
//
// A peer ERROR response is returned unchanged as a protocol.ErrorResponse and
// the state returns to the matching sending state so that the request may be
// resent. Any other error is terminal.
//
// Once Negotiated, Step returns (0, 0, nil).
func (r *Requester) Step(rbuf, wbuf []byte) (need, produced int, err error) {
	if r.state >= numStates {
		return 0, 0, fmt.Errorf("invalid requester state %s", r.state)
	}
	return steps[r.state](r, rbuf, wbuf)
}

func (r *Requester) fail(err error) error {
	slog.Debug("spdm: negotiation failed", "state", r.state, "error", err)
	r.state, r.cause = Failed, err
	return err
}

func (r *Requester) failed(_, _ []byte) (int, int, error) {
	return 0, 0, fmt.Errorf("%w: %w", ErrFailed, r.cause)
}

func (r *Requester) negotiated(_, _ []byte) (int, int, error) { return 0, 0, nil }

func (r *Requester) send(wbuf []byte, msg codec.Encoder, next State) (int, int, error) {
	n, err := msg.Encode(wbuf)
	if _, short := codec.Need(err); short {
		return 0, 0, err
	}
	if err != nil {
		return 0, 0, r.fail(fmt.Errorf("error encoding request: %w", err))
	}
	slog.Debug("spdm: request", "state", r.state, "bytes", n)
	r.state = next
	return 0, n, nil
}

// recv decodes the response expected in the current state into msg. When
// rbuf holds an ERROR response instead, it is returned as the error and the
// state reverts to prev. The bool result is true only when msg was decoded.
func (r *Requester) recv(rbuf []byte, msg codec.Decoder, prev State) (int, bool, error) {
	if len(rbuf) < protocol.HeaderSize {
		return protocol.HeaderSize - len(rbuf), false, nil
	}
	code, err := protocol.PeekCode(rbuf)
	if err != nil {
		return r.recvErr(rbuf, err)
	}
	if want := responses[r.state]; code != want && code != protocol.ErrorResponseCode {
		return 0, false, r.fail(fmt.Errorf("error in state %s: %w: expected %s, got %s",
			r.state, protocol.UnexpectedRequest, want, code))
	}
	if err := r.checkVersion(rbuf[0], r.responseVersion()); err != nil {
		return 0, false, err
	}

	if code == protocol.ErrorResponseCode {
		var resp protocol.ErrorResponse
		if _, err := resp.Decode(rbuf); err != nil {
			return r.recvErr(rbuf, err)
		}
		slog.Debug("spdm: peer error", "state", r.state, "code", resp.Code, "data", resp.Data)
		r.state = prev
		return 0, false, resp
	}

	n, err := msg.Decode(rbuf)
	if err != nil {
		return r.recvErr(rbuf, err)
	}
	if n < len(rbuf) {
		slog.Debug("spdm: ignoring trailing bytes", "state", r.state, "bytes", len(rbuf)-n)
	}
	return 0, true, nil
}

func (r *Requester) recvErr(rbuf []byte, err error) (int, bool, error) {
	if need, short := codec.Need(err); short {
		return need - len(rbuf), false, nil
	}
	return 0, false, r.fail(fmt.Errorf("error decoding response in state %s: %w", r.state, err))
}

// responseVersion is the SPDMVersion byte every response in the current
// state must carry.
func (r *Requester) responseVersion() uint8 {
	if r.state == AwaitingVersionRecv {
		return protocol.SPDMVersion10
	}
	return r.version.SPDMVersion()
}

func (r *Requester) checkVersion(got, want uint8) error {
	if got != want {
		return r.fail(fmt.Errorf("%w: %w: got 0x%02x, expected 0x%02x",
			protocol.MajorVersionMismatch, ErrVersionMismatch, got, want))
	}
	return nil
}

func (r *Requester) sendGetVersion(_, wbuf []byte) (int, int, error) {
	return r.send(wbuf, protocol.NewGetVersion(), AwaitingVersionRecv)
}

func (r *Requester) recvVersion(rbuf, _ []byte) (int, int, error) {
	var msg protocol.Version
	need, ok, err := r.recv(rbuf, &msg, AwaitingVersionSend)
	if !ok {
		return need, 0, err
	}

	version, found := SelectVersion(r.cfg.Versions, msg.List())
	if !found {
		return 0, 0, r.fail(fmt.Errorf("%w: %w: local %v, peer %v",
			protocol.MajorVersionMismatch, ErrNoCommonVersion, r.cfg.Versions, msg.List()))
	}
	slog.Debug("spdm: selected version", "version", version, "peer", msg.List())
	r.version, r.peer = version, msg
	r.state = AwaitingCapabilitiesSend
	return 0, 0, nil
}

func (r *Requester) sendGetCapabilities(_, wbuf []byte) (int, int, error) {
	return r.send(wbuf, protocol.NewGetCapabilities(r.version), AwaitingCapabilitiesRecv)
}

func (r *Requester) recvCapabilities(rbuf, _ []byte) (int, int, error) {
	var msg protocol.Capabilities
	need, ok, err := r.recv(rbuf, &msg, AwaitingCapabilitiesSend)
	if !ok {
		return need, 0, err
	}
	if !msg.Flags.Has(r.cfg.RequireFlags) {
		return 0, 0, r.fail(fmt.Errorf("%w: missing %s", ErrMissingCapabilities, r.cfg.RequireFlags&^msg.Flags))
	}
	slog.Debug("spdm: capabilities", "flags", msg.Flags, "ctExponent", msg.CTExponent)
	r.caps = msg
	r.state = AwaitingAlgorithmsSend
	return 0, 0, nil
}

func (r *Requester) sendNegotiateAlgorithms(_, wbuf []byte) (int, int, error) {
	return r.send(wbuf, r.cfg.negotiateAlgorithms(r.version), AwaitingAlgorithmsRecv)
}

func (r *Requester) recvAlgorithms(rbuf, _ []byte) (int, int, error) {
	var msg protocol.Algorithms
	need, ok, err := r.recv(rbuf, &msg, AwaitingAlgorithmsSend)
	if !ok {
		return need, 0, err
	}
	if err := validateSelection(&r.cfg, r.caps.Flags, &msg); err != nil {
		return 0, 0, r.fail(err)
	}
	r.algs = msg
	r.state = Negotiated
	slog.Debug("spdm: negotiated", "connection", r.Connection())
	return 0, 0, nil
}
