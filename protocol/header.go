// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package protocol

import (
	"fmt"

	"github.com/go-spdm/spdm/codec"
)

// HeaderSize is the size of the header common to all SPDM messages.
const HeaderSize = 4

// Header offsets
const (
	versionOffset = 0
	codeOffset    = 1
	param1Offset  = 2
	param2Offset  = 3
)

// Header is the four byte header common to all SPDM messages.
type Header struct {
	SPDMVersion uint8
	Code        Code
	Param1      uint8
	Param2      uint8
}

var _ codec.Codec = (*Header)(nil)

// Decode implements codec.Decoder. A code byte outside of the known set fails
// with InvalidRequest.
func (h *Header) Decode(b []byte) (int, error) {
	var raw [HeaderSize]codec.Uint8
	if _, err := codec.ReadN(codec.NewReader(b), versionOffset, raw[:]); err != nil {
		return 0, err
	}
	code, err := ParseCode(byte(raw[codeOffset]))
	if err != nil {
		return 0, err
	}
	*h = Header{
		SPDMVersion: uint8(raw[versionOffset]),
		Code:        code,
		Param1:      uint8(raw[param1Offset]),
		Param2:      uint8(raw[param2Offset]),
	}
	return HeaderSize, nil
}

// Encode implements codec.Encoder.
func (h Header) Encode(b []byte) (int, error) {
	raw := [HeaderSize]codec.Uint8{
		versionOffset: codec.Uint8(h.SPDMVersion),
		codeOffset:    codec.Uint8(h.Code),
		param1Offset:  codec.Uint8(h.Param1),
		param2Offset:  codec.Uint8(h.Param2),
	}
	return codec.WriteN(codec.NewWriter(b), versionOffset, raw[:])
}

// PeekCode returns the code of a message without decoding the rest of the
// header.
func PeekCode(b []byte) (Code, error) {
	raw, _, err := codec.Read[codec.Uint8](codec.NewReader(b), codeOffset)
	if err != nil {
		return 0, err
	}
	return ParseCode(byte(raw))
}

func expect(h Header, c Code) error {
	if h.Code != c {
		return fmt.Errorf("%w: expected %s, got %s", UnexpectedRequest, c, h.Code)
	}
	return nil
}

// decodeExpected validates the header against c as soon as it is complete.
// For a shorter buffer it returns a zero Header and no error, leaving the
// caller's layout reads to report the full minimum length.
func decodeExpected(b []byte, c Code) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, nil
	}
	if _, err := h.Decode(b); err != nil {
		return h, err
	}
	return h, expect(h, c)
}
