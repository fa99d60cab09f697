// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package spdm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-spdm/spdm"
	"github.com/go-spdm/spdm/codec"
	"github.com/go-spdm/spdm/protocol"
	"github.com/go-spdm/spdm/spdmtest"
)

// run drives a requester against an in-memory responder, delivering each
// response only as far as the requester asks for it.
func run(t *testing.T, r *spdm.Requester, resp protocol.Responder) error {
	t.Helper()

	wbuf := make([]byte, 256)
	rbuf := make([]byte, 256)
	respBuf := make([]byte, 256)
	var pending []byte
	var have int
	for i := 0; i < 100; i++ {
		if r.State() == spdm.Negotiated {
			return nil
		}
		need, produced, err := r.Step(rbuf[:have], wbuf)
		if err != nil {
			return err
		}
		switch {
		case produced > 0:
			require.Zero(t, need)
			consumed, n, err := resp.Respond(wbuf[:produced], respBuf)
			require.NoError(t, err)
			require.Equal(t, produced, consumed)
			pending, have = respBuf[:n], 0
		case need > 0:
			require.LessOrEqual(t, have+need, len(pending), "requester asked for more bytes than the response holds")
			copy(rbuf[have:], pending[have:have+need])
			have += need
		default:
			pending, have = nil, 0
		}
	}
	t.Fatal("negotiation did not complete")
	return nil
}

// answerAs responds to requests with code on as if they had code as.
type answerAs struct {
	protocol.Responder
	on, as protocol.Code
}

func (a *answerAs) Respond(req, resp []byte) (int, int, error) {
	if code, err := protocol.PeekCode(req); err != nil || code != a.on {
		return a.Responder.Respond(req, resp)
	}
	swapped := append([]byte(nil), req...)
	swapped[1] = byte(a.as)
	_, n, err := a.Responder.Respond(swapped, resp)
	return len(req), n, err
}

func newRequester(t *testing.T, cfg spdm.RequesterConfig) *spdm.Requester {
	t.Helper()
	r, err := spdm.NewRequester(cfg)
	require.NoError(t, err)
	return r
}

func TestRequesterFirstStep(t *testing.T) {
	r := newRequester(t, spdm.RequesterConfig{})
	assert.Equal(t, spdm.AwaitingVersionSend, r.State())

	t.Run("short write buffer", func(t *testing.T) {
		need, produced, err := r.Step(nil, make([]byte, 3))
		n, ok := codec.Need(err)
		require.True(t, ok, "%v", err)
		assert.Equal(t, 4, n)
		assert.Zero(t, need)
		assert.Zero(t, produced)
		assert.Equal(t, spdm.AwaitingVersionSend, r.State())
	})

	wbuf := make([]byte, 64)
	need, produced, err := r.Step(nil, wbuf)
	require.NoError(t, err)
	assert.Zero(t, need)
	assert.Equal(t, 4, produced)
	assert.Equal(t, []byte{0x10, 0x84, 0x00, 0x00}, wbuf[:produced])
	assert.Equal(t, spdm.AwaitingVersionRecv, r.State())
}

func TestRequesterPartialResponse(t *testing.T) {
	r := newRequester(t, spdm.RequesterConfig{})
	_, _, err := r.Step(nil, make([]byte, 4))
	require.NoError(t, err)

	resp := []byte{0x10, 0x04, 0x00, 0x00, 0x00, 0x02, 0x00, 0x10, 0x00, 0x11}
	for _, test := range []struct {
		have int
		need int
	}{
		{0, 4},
		{2, 2},
		{4, 2},
		{5, 1},
		{6, 4},
		{7, 3},
		{9, 1},
	} {
		need, produced, err := r.Step(resp[:test.have], nil)
		require.NoError(t, err, "have %d", test.have)
		assert.Equal(t, test.need, need, "have %d", test.have)
		assert.Zero(t, produced)
		assert.Equal(t, spdm.AwaitingVersionRecv, r.State())
	}

	need, produced, err := r.Step(resp, nil)
	require.NoError(t, err)
	assert.Zero(t, need)
	assert.Zero(t, produced)
	assert.Equal(t, spdm.AwaitingCapabilitiesSend, r.State())

	wbuf := make([]byte, 4)
	_, produced, err = r.Step(nil, wbuf)
	require.NoError(t, err)
	assert.Equal(t, 4, produced)
	assert.Equal(t, []byte{0x10, 0xe1, 0x00, 0x00}, wbuf)
}

func TestRequesterRejectsHeader(t *testing.T) {
	for _, test := range []struct {
		name   string
		header []byte
		expect []error
	}{
		{
			name:   "capabilities in place of version",
			header: []byte{0x10, 0x61, 0x00, 0x00},
			expect: []error{protocol.UnexpectedRequest},
		},
		{
			name:   "unknown opcode",
			header: []byte{0x10, 0x00, 0x00, 0x00},
			expect: []error{protocol.InvalidRequest},
		},
		{
			name:   "version response not 1.0",
			header: []byte{0x11, 0x04, 0x00, 0x00},
			expect: []error{protocol.MajorVersionMismatch, spdm.ErrVersionMismatch},
		},
		{
			name:   "error response not 1.0",
			header: []byte{0x11, 0x7f, 0x03, 0x00},
			expect: []error{protocol.MajorVersionMismatch, spdm.ErrVersionMismatch},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			r := newRequester(t, spdm.RequesterConfig{})
			_, _, err := r.Step(nil, make([]byte, 4))
			require.NoError(t, err)

			need, produced, err := r.Step(test.header, nil)
			for _, target := range test.expect {
				assert.ErrorIs(t, err, target)
			}
			assert.Zero(t, need)
			assert.Zero(t, produced)
			assert.Equal(t, spdm.Failed, r.State())
		})
	}
}

func TestRequesterNegotiate(t *testing.T) {
	spdmtest.DebugLog(t)

	r := newRequester(t, spdm.RequesterConfig{
		RequireFlags: protocol.CertCap | protocol.ChalCap,
	})
	assert.Nil(t, r.Connection())
	require.NoError(t, run(t, r, &spdmtest.Responder{CTExponent: 14}))
	assert.True(t, r.Negotiated())

	conn := r.Connection()
	require.NotNil(t, conn)
	assert.Equal(t, &spdm.Connection{
		Version:                  protocol.Version10,
		PeerVersions:             []protocol.VersionNumberEntry{protocol.Version10},
		CTExponent:               14,
		Flags:                    spdmtest.DefaultFlags,
		MeasurementSpecification: protocol.DMTFMeasurementSpec,
		MeasurementHashAlgo:      protocol.MeasSHA384,
		BaseAsymAlgo:             protocol.ECDSAP384,
		BaseHashAlgo:             protocol.SHA384,
		ExtAsym:                  []protocol.ExtAlgorithm{},
		ExtHash:                  []protocol.ExtAlgorithm{},
	}, normalize(conn))

	for range 3 {
		need, produced, err := r.Step([]byte{0xff}, make([]byte, 64))
		require.NoError(t, err)
		assert.Zero(t, need)
		assert.Zero(t, produced)
		assert.Equal(t, spdm.Negotiated, r.State())
	}
}

// normalize replaces nil slices so that connections compare equal.
func normalize(c *spdm.Connection) *spdm.Connection {
	if c.ExtAsym == nil {
		c.ExtAsym = []protocol.ExtAlgorithm{}
	}
	if c.ExtHash == nil {
		c.ExtHash = []protocol.ExtAlgorithm{}
	}
	return c
}

func TestRequesterAlgorithmOffer(t *testing.T) {
	cfg := spdm.RequesterConfig{
		BaseAsymAlgo: protocol.ECDSAP256 | protocol.RSAPSS3072,
		BaseHashAlgo: protocol.SHA256,
		ExtHash:      []protocol.ExtAlgorithm{{RegistryID: protocol.RegistryTCG, AlgorithmID: 0x12}},
	}
	r := newRequester(t, cfg)
	require.NoError(t, run(t, r, &spdmtest.Responder{
		BaseAsymAlgo: protocol.ECDSAP256 | protocol.ECDSAP384 | protocol.RSAPSS3072,
	}))
	conn := r.Connection()
	assert.Equal(t, protocol.ECDSAP256, conn.BaseAsymAlgo)
	assert.Equal(t, protocol.SHA256, conn.BaseHashAlgo)
}

func TestRequesterPeerError(t *testing.T) {
	t.Run("busy is returned and may be resent", func(t *testing.T) {
		resp := &spdmtest.Responder{BusyCount: 2}
		r := newRequester(t, spdm.RequesterConfig{})

		for range 2 {
			err := run(t, r, resp)
			require.ErrorIs(t, err, protocol.Busy)
			var errResp protocol.ErrorResponse
			require.True(t, errors.As(err, &errResp))
			assert.Equal(t, protocol.Busy, errResp.Code)
			assert.Equal(t, spdm.AwaitingVersionSend, r.State())
		}
		require.NoError(t, run(t, r, resp))
	})

	t.Run("error on later request reverts to its send state", func(t *testing.T) {
		resp := &spdmtest.Responder{ErrorOn: map[protocol.Code]protocol.ErrorCode{
			protocol.NegotiateAlgorithmsCode: protocol.ResponseNotReady,
		}}
		r := newRequester(t, spdm.RequesterConfig{})

		err := run(t, r, resp)
		require.ErrorIs(t, err, protocol.ResponseNotReady)
		var errResp protocol.ErrorResponse
		require.True(t, errors.As(err, &errResp))
		assert.Equal(t, protocol.NegotiateAlgorithmsCode, errResp.NotReady.RequestCode)
		assert.Equal(t, spdm.AwaitingAlgorithmsSend, r.State())

		delete(resp.ErrorOn, protocol.NegotiateAlgorithmsCode)
		require.NoError(t, run(t, r, resp))
	})
}

func TestRequesterFailure(t *testing.T) {
	for _, test := range []struct {
		name   string
		cfg    spdm.RequesterConfig
		resp   protocol.Responder
		expect []error
		state  spdm.State
	}{
		{
			name:   "no common version",
			resp:   &spdmtest.Responder{Versions: []protocol.VersionNumberEntry{protocol.Version11, protocol.Version12}},
			expect: []error{protocol.MajorVersionMismatch, spdm.ErrNoCommonVersion},
			state:  spdm.AwaitingVersionRecv,
		},
		{
			name: "version response not 1.0",
			resp: &spdmtest.Responder{Tamper: func(code protocol.Code, resp []byte) {
				if code == protocol.GetVersionCode {
					resp[0] = 0x11
				}
			}},
			expect: []error{protocol.MajorVersionMismatch, spdm.ErrVersionMismatch},
			state:  spdm.AwaitingVersionRecv,
		},
		{
			name: "capabilities with wrong version",
			resp: &spdmtest.Responder{Tamper: func(code protocol.Code, resp []byte) {
				if code == protocol.GetCapabilitiesCode {
					resp[0] = 0x12
				}
			}},
			expect: []error{protocol.MajorVersionMismatch, spdm.ErrVersionMismatch},
			state:  spdm.AwaitingCapabilitiesRecv,
		},
		{
			name: "unexpected response",
			resp: &spdmtest.Responder{Tamper: func(code protocol.Code, resp []byte) {
				if code == protocol.GetCapabilitiesCode {
					resp[1] = byte(protocol.AlgorithmsCode)
				}
			}},
			expect: []error{protocol.UnexpectedRequest},
			state:  spdm.AwaitingCapabilitiesRecv,
		},
		{
			name: "unknown opcode",
			resp: &spdmtest.Responder{Tamper: func(code protocol.Code, resp []byte) {
				if code == protocol.GetVersionCode {
					resp[1] = 0x00
				}
			}},
			expect: []error{protocol.InvalidRequest},
			state:  spdm.AwaitingVersionRecv,
		},
		{
			name: "too many versions",
			resp: &spdmtest.Responder{Tamper: func(code protocol.Code, resp []byte) {
				if code == protocol.GetVersionCode {
					resp[5] = 11
				}
			}},
			expect: []error{protocol.InvalidRequest, protocol.ErrTooManyEntries},
			state:  spdm.AwaitingVersionRecv,
		},
		{
			name:   "capabilities in place of algorithms",
			resp:   &answerAs{Responder: &spdmtest.Responder{}, on: protocol.NegotiateAlgorithmsCode, as: protocol.GetCapabilitiesCode},
			expect: []error{protocol.UnexpectedRequest},
			state:  spdm.AwaitingAlgorithmsRecv,
		},
		{
			name: "error response with wrong version",
			resp: &spdmtest.Responder{
				ErrorOn: map[protocol.Code]protocol.ErrorCode{protocol.GetCapabilitiesCode: protocol.Busy},
				Tamper: func(code protocol.Code, resp []byte) {
					if code == protocol.GetCapabilitiesCode {
						resp[0] = 0x11
					}
				},
			},
			expect: []error{protocol.MajorVersionMismatch, spdm.ErrVersionMismatch},
			state:  spdm.AwaitingCapabilitiesRecv,
		},
		{
			name:   "missing capabilities",
			cfg:    spdm.RequesterConfig{RequireFlags: protocol.KeyExCap},
			resp:   &spdmtest.Responder{},
			expect: []error{spdm.ErrMissingCapabilities},
			state:  spdm.AwaitingCapabilitiesRecv,
		},
		{
			name: "algorithm not offered",
			resp: &spdmtest.Responder{Tamper: func(code protocol.Code, resp []byte) {
				if code == protocol.NegotiateAlgorithmsCode {
					resp[12] = byte(protocol.RSASSA2048)
				}
			}},
			expect: []error{spdm.ErrInvalidSelection},
			state:  spdm.AwaitingAlgorithmsRecv,
		},
		{
			name: "multiple hash algorithms selected",
			resp: &spdmtest.Responder{Tamper: func(code protocol.Code, resp []byte) {
				if code == protocol.NegotiateAlgorithmsCode {
					resp[16] = byte(protocol.SHA256 | protocol.SHA384)
				}
			}},
			expect: []error{spdm.ErrInvalidSelection},
			state:  spdm.AwaitingAlgorithmsRecv,
		},
		{
			name: "algorithms length field",
			resp: &spdmtest.Responder{Tamper: func(code protocol.Code, resp []byte) {
				if code == protocol.NegotiateAlgorithmsCode {
					resp[4]++
				}
			}},
			expect: []error{protocol.InvalidRequest, protocol.ErrLengthMismatch},
			state:  spdm.AwaitingAlgorithmsRecv,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			r := newRequester(t, test.cfg)
			err := run(t, r, test.resp)
			require.Error(t, err)
			for _, target := range test.expect {
				assert.ErrorIs(t, err, target)
			}
			assert.Equal(t, spdm.Failed, r.State())
			assert.Equal(t, err, r.Err())
			assert.Nil(t, r.Connection())

			_, _, again := r.Step(nil, make([]byte, 64))
			assert.ErrorIs(t, again, spdm.ErrFailed)
			for _, target := range test.expect {
				assert.ErrorIs(t, again, target)
			}

			r.Reset()
			assert.Equal(t, spdm.AwaitingVersionSend, r.State())
			assert.NoError(t, r.Err())
		})
	}
}

func TestRequesterConfig(t *testing.T) {
	for _, cfg := range []spdm.RequesterConfig{
		{Versions: []protocol.VersionNumberEntry{protocol.Version12}},
		{Versions: make([]protocol.VersionNumberEntry, 11)},
		{ExtAsym: make([]protocol.ExtAlgorithm, 9)},
	} {
		_, err := spdm.NewRequester(cfg)
		assert.Error(t, err)
	}

	_, err := spdm.NewRequester(spdm.RequesterConfig{
		Versions: []protocol.VersionNumberEntry{protocol.NewVersionNumberEntry(1, 0, 3, 0)},
	})
	assert.NoError(t, err)
}

func TestSelectVersion(t *testing.T) {
	v := protocol.NewVersionNumberEntry
	for _, test := range []struct {
		name   string
		local  []protocol.VersionNumberEntry
		peer   []protocol.VersionNumberEntry
		expect protocol.VersionNumberEntry
		found  bool
	}{
		{"single", []protocol.VersionNumberEntry{v(1, 0, 0, 0)}, []protocol.VersionNumberEntry{v(1, 0, 0, 0)}, v(1, 0, 0, 0), true},
		{"highest common", []protocol.VersionNumberEntry{v(1, 0, 0, 0), v(1, 1, 0, 0)},
			[]protocol.VersionNumberEntry{v(1, 2, 0, 0), v(1, 1, 0, 0), v(1, 0, 0, 0)}, v(1, 1, 0, 0), true},
		{"update ignored", []protocol.VersionNumberEntry{v(1, 0, 0, 0)}, []protocol.VersionNumberEntry{v(1, 0, 2, 0)}, v(1, 0, 2, 0), true},
		{"peer order irrelevant", []protocol.VersionNumberEntry{v(1, 0, 0, 0), v(1, 2, 0, 0)},
			[]protocol.VersionNumberEntry{v(1, 0, 0, 0), v(1, 2, 1, 0)}, v(1, 2, 1, 0), true},
		{"none", []protocol.VersionNumberEntry{v(1, 0, 0, 0)}, []protocol.VersionNumberEntry{v(1, 1, 0, 0)}, 0, false},
		{"empty peer", []protocol.VersionNumberEntry{v(1, 0, 0, 0)}, nil, 0, false},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, found := spdm.SelectVersion(test.local, test.peer)
			assert.Equal(t, test.found, found)
			assert.Equal(t, test.expect, got)
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AwaitingVersionSend", spdm.AwaitingVersionSend.String())
	assert.Equal(t, "Failed", spdm.Failed.String())
	assert.Equal(t, "State(42)", spdm.State(42).String())
	assert.True(t, spdm.AwaitingCapabilitiesSend.Sending())
	assert.False(t, spdm.AwaitingCapabilitiesRecv.Sending())
	assert.True(t, spdm.Negotiated.Done())
}
