// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package codec implements fixed-layout, little-endian encoding of protocol
// fields into caller-owned byte buffers.
//
// Every operation reports either the number of bytes consumed/written or, via
// [ShortBufferError], the minimum buffer length required measured from the
// start of the slice that was given. This allows a caller which receives data
// incrementally to retry once more bytes are available without re-deriving
// any size arithmetic.
//
// Nothing in this package retains a reference to a buffer after a call
// returns.
package codec

import (
	"errors"
	"fmt"
	"io"
)

// Decoder is implemented by types which can decode themselves from the start
// of a byte slice. On success the number of bytes consumed is returned. When
// the slice is too short a [ShortBufferError] is returned.
//
// Decoders must not validate value ranges beyond what is needed to determine
// the layout; semantic validation belongs to the message type.
type Decoder interface {
	Decode([]byte) (int, error)
}

// Encoder is implemented by types which can encode themselves to the start of
// a byte slice. On success the number of bytes written is returned. When the
// slice is too short a [ShortBufferError] is returned and the contents of the
// slice are unspecified.
type Encoder interface {
	Encode([]byte) (int, error)
}

// Codec is implemented by types which are both a [Decoder] (on a pointer
// receiver) and an [Encoder].
type Codec interface {
	Decoder
	Encoder
}

// ShortBufferError indicates that a buffer was too short. Need is the minimum
// total length of the buffer required, not the number of missing bytes.
type ShortBufferError struct {
	Need int
}

func (e ShortBufferError) Error() string {
	return fmt.Sprintf("short buffer: need %d bytes", e.Need)
}

// Is allows errors.Is(err, io.ErrShortBuffer) to match.
func (e ShortBufferError) Is(target error) bool { return target == io.ErrShortBuffer }

// Need returns the required buffer length if err is (or wraps) a
// [ShortBufferError].
func Need(err error) (int, bool) {
	var short ShortBufferError
	if errors.As(err, &short) {
		return short.Need, true
	}
	return 0, false
}

// shift offsets a short buffer error by n bytes so that it is expressed
// relative to an enclosing buffer. Other errors are returned unchanged.
func shift(err error, n int) error {
	var short ShortBufferError
	if errors.As(err, &short) {
		return ShortBufferError{Need: n + short.Need}
	}
	return err
}
