// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package protocol_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-spdm/spdm/codec"
	"github.com/go-spdm/spdm/protocol"
)

func TestParseCode(t *testing.T) {
	known := map[byte]string{
		0x81: "GET_DIGESTS(0x81)",
		0x82: "GET_CERTIFICATE(0x82)",
		0x83: "CHALLENGE(0x83)",
		0x84: "GET_VERSION(0x84)",
		0xE0: "GET_MEASUREMENTS(0xe0)",
		0xE1: "GET_CAPABILITIES(0xe1)",
		0xE3: "NEGOTIATE_ALGORITHMS(0xe3)",
		0xFE: "VENDOR_DEFINED_REQUEST(0xfe)",
		0xFF: "RESPOND_IF_READY(0xff)",
		0x01: "DIGESTS(0x01)",
		0x02: "CERTIFICATE(0x02)",
		0x03: "CHALLENGE_AUTH(0x03)",
		0x04: "VERSION(0x04)",
		0x60: "MEASUREMENTS(0x60)",
		0x61: "CAPABILITIES(0x61)",
		0x63: "ALGORITHMS(0x63)",
		0x7E: "VENDOR_DEFINED_RESPONSE(0x7e)",
		0x7F: "ERROR(0x7f)",
	}
	for b := 0; b <= 0xff; b++ {
		code, err := protocol.ParseCode(byte(b))
		name, ok := known[byte(b)]
		if !ok {
			assert.ErrorIs(t, err, protocol.InvalidRequest, "byte 0x%02x", b)
			continue
		}
		require.NoError(t, err, "byte 0x%02x", b)
		assert.Equal(t, name, code.String())
		assert.Equal(t, b >= 0x80, code.IsRequest(), "%s", code)
	}
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "ALGORITHMS(0x63)", protocol.AlgorithmsCode.String())
	assert.Equal(t, "UNKNOWN(0x00)", protocol.Code(0).String())
}

func TestErrorCode(t *testing.T) {
	for _, test := range []struct {
		b    byte
		code protocol.ErrorCode
		name string
	}{
		{0x01, protocol.InvalidRequest, "InvalidRequest"},
		{0x03, protocol.Busy, "Busy"},
		{0x04, protocol.UnexpectedRequest, "UnexpectedRequest"},
		{0x05, protocol.Unspecified, "Unspecified"},
		{0x07, protocol.UnsupportedRequest, "UnsupportedRequest"},
		{0x41, protocol.MajorVersionMismatch, "MajorVersionMismatch"},
		{0x42, protocol.ResponseNotReady, "ResponseNotReady"},
		{0x43, protocol.RequestResynch, "RequestResynch"},
		{0xFF, protocol.VendorStandardsDefined, "VendorStandardsDefined"},
	} {
		code, err := protocol.ParseErrorCode(test.b)
		require.NoError(t, err)
		assert.Equal(t, test.code, code)
		assert.Equal(t, test.name, code.String())
		assert.Equal(t, test.name, code.Error())
	}

	_, err := protocol.ParseErrorCode(0x02)
	assert.ErrorIs(t, err, protocol.InvalidRequest)
}

func TestHeader(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		h := protocol.Header{SPDMVersion: 0x11, Code: protocol.CapabilitiesCode, Param1: 1, Param2: 2}
		buf := make([]byte, protocol.HeaderSize)
		n, err := h.Encode(buf)
		require.NoError(t, err)
		assert.Equal(t, protocol.HeaderSize, n)
		assert.Equal(t, []byte{0x11, 0x61, 0x01, 0x02}, buf)

		var got protocol.Header
		n, err = got.Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, protocol.HeaderSize, n)
		assert.Equal(t, h, got)
	})

	t.Run("short", func(t *testing.T) {
		var h protocol.Header
		_, err := h.Decode([]byte{0x10, 0x04})
		need, ok := codec.Need(err)
		require.True(t, ok)
		assert.Equal(t, 4, need)
	})

	t.Run("unknown opcode", func(t *testing.T) {
		var h protocol.Header
		_, err := h.Decode([]byte{0x10, 0x00, 0x00, 0x00})
		assert.ErrorIs(t, err, protocol.InvalidRequest)
		_, ok := codec.Need(err)
		assert.False(t, ok)
	})

	t.Run("peek", func(t *testing.T) {
		code, err := protocol.PeekCode([]byte{0x10, 0x63})
		require.NoError(t, err)
		assert.Equal(t, protocol.AlgorithmsCode, code)

		_, err = protocol.PeekCode([]byte{0x10})
		need, _ := codec.Need(err)
		assert.Equal(t, 2, need)

		_, err = protocol.PeekCode([]byte{0x10, 0x00})
		assert.ErrorIs(t, err, protocol.InvalidRequest)
	})
}

func TestErrorResponse(t *testing.T) {
	t.Run("busy", func(t *testing.T) {
		buf := []byte{0x10, 0x7f, 0x03, 0x00}
		var e protocol.ErrorResponse
		n, err := e.Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, protocol.Busy, e.Code)
		assert.ErrorIs(t, e, protocol.Busy)
		assert.NotErrorIs(t, e, protocol.InvalidRequest)

		out := make([]byte, 4)
		_, err = e.Encode(out)
		require.NoError(t, err)
		assert.Equal(t, buf, out)
	})

	t.Run("response not ready", func(t *testing.T) {
		e := protocol.ErrorResponse{
			SPDMVersion: 0x10,
			Code:        protocol.ResponseNotReady,
			NotReady: protocol.ResponseNotReadyData{
				RDTExponent: 5,
				RequestCode: protocol.GetCapabilitiesCode,
				Token:       9,
				RDTM:        2,
			},
		}
		buf := make([]byte, 8)
		n, err := e.Encode(buf)
		require.NoError(t, err)
		assert.Equal(t, 8, n)
		assert.Equal(t, []byte{0x10, 0x7f, 0x42, 0x00, 0x05, 0xe1, 0x09, 0x02}, buf)

		var got protocol.ErrorResponse
		_, err = got.Decode(buf[:6])
		need, ok := codec.Need(err)
		require.True(t, ok)
		assert.Equal(t, 8, need)

		_, err = got.Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, e, got)
		assert.Contains(t, got.Error(), "GET_CAPABILITIES(0xe1)")
	})

	t.Run("unknown error code", func(t *testing.T) {
		var e protocol.ErrorResponse
		_, err := e.Decode([]byte{0x10, 0x7f, 0x99, 0x00})
		assert.ErrorIs(t, err, protocol.InvalidRequest)
	})

	t.Run("not an error", func(t *testing.T) {
		var e protocol.ErrorResponse
		_, err := e.Decode([]byte{0x10, 0x04, 0x00, 0x00})
		assert.ErrorIs(t, err, protocol.UnexpectedRequest)
		assert.False(t, errors.Is(err, protocol.InvalidRequest))
	})
}
