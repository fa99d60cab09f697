// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package codec

// Reader decodes fields at absolute offsets of an immutable buffer. Fields
// may be read in any order.
//
// All errors returned by the Read functions are expressed as the minimum
// total length of the underlying buffer, so that nested decoding can surface
// a single aggregate requirement.
type Reader struct {
	buf []byte
}

// NewReader wraps a buffer.
func NewReader(b []byte) Reader { return Reader{buf: b} }

// Len returns the length of the underlying buffer.
func (r Reader) Len() int { return len(r.buf) }

func (r Reader) from(offset int) []byte {
	if offset >= len(r.buf) {
		return nil
	}
	return r.buf[offset:]
}

// Read decodes a T at the given (non-negative) offset and returns it along
// with the number of bytes consumed.
func Read[T any, P interface {
	*T
	Decoder
}](r Reader, offset int) (T, int, error) {
	var v T
	n, err := P(&v).Decode(r.from(offset))
	if err != nil {
		return v, 0, shift(err, offset)
	}
	return v, n, nil
}

// ReadN decodes len(dst) contiguous values starting at offset, each
// immediately following the bytes consumed by the previous one. The total
// number of bytes consumed is returned.
//
// When the buffer is too short, the required length accounts for every
// remaining element, not only the first one that failed.
func ReadN[T any, P interface {
	*T
	Decoder
}](r Reader, offset int, dst []T) (int, error) {
	var n int
	for i := range dst {
		m, err := P(&dst[i]).Decode(r.from(offset + n))
		if err != nil {
			need, ok := Need(err)
			if !ok {
				return 0, err
			}
			total := offset + n + need
			for j := i + 1; j < len(dst); j++ {
				var scratch T
				_, err := P(&scratch).Decode(nil)
				size, ok := Need(err)
				if !ok {
					break
				}
				total += size
			}
			return 0, ShortBufferError{Need: total}
		}
		n += m
	}
	return n, nil
}

// Writer encodes fields at absolute offsets of a mutable buffer.
//
// On any failure the contents written so far are unspecified and must be
// treated as invalid.
type Writer struct {
	buf []byte
}

// NewWriter wraps a buffer.
func NewWriter(b []byte) Writer { return Writer{buf: b} }

// Len returns the length of the underlying buffer.
func (w Writer) Len() int { return len(w.buf) }

func (w Writer) to(offset int) []byte {
	if offset >= len(w.buf) {
		return nil
	}
	return w.buf[offset:]
}

// sizeOf reports the encoded size of v by encoding into an empty buffer.
func sizeOf[T Encoder](v T) int {
	_, err := v.Encode(nil)
	need, _ := Need(err)
	return need
}

// Write encodes v at the given (non-negative) offset and returns the number
// of bytes written. It fails whenever offset is beyond the end of the buffer,
// independent of the size of v.
func Write[T Encoder](w Writer, offset int, v T) (int, error) {
	if offset > len(w.buf) {
		return 0, ShortBufferError{Need: offset + sizeOf(v)}
	}
	n, err := v.Encode(w.to(offset))
	if err != nil {
		return 0, shift(err, offset)
	}
	return n, nil
}

// WriteN encodes each value of src contiguously starting at offset and
// returns the total number of bytes written.
func WriteN[T Encoder](w Writer, offset int, src []T) (int, error) {
	if offset > len(w.buf) {
		total := offset
		for _, v := range src {
			total += sizeOf(v)
		}
		return 0, ShortBufferError{Need: total}
	}
	var n int
	for i, v := range src {
		m, err := v.Encode(w.to(offset + n))
		if err != nil {
			need, ok := Need(err)
			if !ok {
				return 0, err
			}
			total := offset + n + need
			for _, rest := range src[i+1:] {
				total += sizeOf(rest)
			}
			return 0, ShortBufferError{Need: total}
		}
		n += m
	}
	return n, nil
}
