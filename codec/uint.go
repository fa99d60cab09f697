// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package codec

import "encoding/binary"

// Uint8 is a one byte unsigned integer field.
type Uint8 uint8

// Uint16 is a two byte little-endian unsigned integer field.
type Uint16 uint16

// Uint32 is a four byte little-endian unsigned integer field.
type Uint32 uint32

var (
	_ Codec = (*Uint8)(nil)
	_ Codec = (*Uint16)(nil)
	_ Codec = (*Uint32)(nil)
)

// Decode implements Decoder.
func (v *Uint8) Decode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, ShortBufferError{Need: 1}
	}
	*v = Uint8(b[0])
	return 1, nil
}

// Encode implements Encoder.
func (v Uint8) Encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, ShortBufferError{Need: 1}
	}
	b[0] = byte(v)
	return 1, nil
}

// Decode implements Decoder.
func (v *Uint16) Decode(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, ShortBufferError{Need: 2}
	}
	*v = Uint16(binary.LittleEndian.Uint16(b))
	return 2, nil
}

// Encode implements Encoder.
func (v Uint16) Encode(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, ShortBufferError{Need: 2}
	}
	binary.LittleEndian.PutUint16(b, uint16(v))
	return 2, nil
}

// Decode implements Decoder.
func (v *Uint32) Decode(b []byte) (int, error) {
	if len(b) < 4 {
		return 0, ShortBufferError{Need: 4}
	}
	*v = Uint32(binary.LittleEndian.Uint32(b))
	return 4, nil
}

// Encode implements Encoder.
func (v Uint32) Encode(b []byte) (int, error) {
	if len(b) < 4 {
		return 0, ShortBufferError{Need: 4}
	}
	binary.LittleEndian.PutUint32(b, uint32(v))
	return 4, nil
}
