// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package protocol

import (
	"errors"
	"fmt"

	"github.com/go-spdm/spdm/codec"
)

// ErrorCode is the closed set of SPDM error codes carried in Param1 of an
// ERROR response. ErrorCode values are also used as errors, so that
// errors.Is(err, protocol.InvalidRequest) may be used to classify failures.
type ErrorCode uint8

// SPDM 1.0 error codes
const (
	InvalidRequest         ErrorCode = 0x01
	Busy                   ErrorCode = 0x03
	UnexpectedRequest      ErrorCode = 0x04
	Unspecified            ErrorCode = 0x05
	UnsupportedRequest     ErrorCode = 0x07
	MajorVersionMismatch   ErrorCode = 0x41
	ResponseNotReady       ErrorCode = 0x42
	RequestResynch         ErrorCode = 0x43
	VendorStandardsDefined ErrorCode = 0xFF
)

// ParseErrorCode validates an error code byte.
func ParseErrorCode(b byte) (ErrorCode, error) {
	switch c := ErrorCode(b); c {
	case InvalidRequest, Busy, UnexpectedRequest, Unspecified, UnsupportedRequest,
		MajorVersionMismatch, ResponseNotReady, RequestResynch, VendorStandardsDefined:
		return c, nil
	default:
		return 0, malformed("unknown error code 0x%02x", b)
	}
}

func (c ErrorCode) String() string {
	switch c {
	case InvalidRequest:
		return "InvalidRequest"
	case Busy:
		return "Busy"
	case UnexpectedRequest:
		return "UnexpectedRequest"
	case Unspecified:
		return "Unspecified"
	case UnsupportedRequest:
		return "UnsupportedRequest"
	case MajorVersionMismatch:
		return "MajorVersionMismatch"
	case ResponseNotReady:
		return "ResponseNotReady"
	case RequestResynch:
		return "RequestResynch"
	case VendorStandardsDefined:
		return "VendorStandardsDefined"
	default:
		return fmt.Sprintf("ErrorCode(0x%02x)", uint8(c))
	}
}

// Error implements the standard error interface.
func (c ErrorCode) Error() string { return c.String() }

// Malformed-field errors. These are always wrapped together with
// [InvalidRequest] and are never signaled as a short buffer.
var (
	ErrTooManyEntries = errors.New("entry count exceeds capacity")
	ErrLengthMismatch = errors.New("length field does not match message size")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{InvalidRequest}, args...)...)
}

func tooMany(what string, count, max int) error {
	return fmt.Errorf("%w: %w: %s count %d > %d", InvalidRequest, ErrTooManyEntries, what, count, max)
}

// ErrorResponse is the ERROR message sent by a responder when a request could
// not be processed. It implements error and matches its [ErrorCode] with
// errors.Is.
//
//	Offset  Field
//	0       SPDMVersion
//	1       RequestResponseCode (0x7F)
//	2       Param1: ErrorCode
//	3       Param2: ErrorData
//	4       ExtendedErrorData (ResponseNotReady only, 4 bytes)
type ErrorResponse struct {
	SPDMVersion uint8
	Code        ErrorCode
	Data        uint8

	// NotReady is only transmitted when Code is ResponseNotReady.
	NotReady ResponseNotReadyData
}

// ResponseNotReadyData is the extended error data of a ResponseNotReady
// error.
type ResponseNotReadyData struct {
	RDTExponent uint8
	RequestCode Code
	Token       uint8
	RDTM        uint8
}

const (
	errorExtOffset   = 4
	errorNotReadyLen = 8
)

var _ codec.Codec = (*ErrorResponse)(nil)

// Len returns the encoded size of the message.
func (e *ErrorResponse) Len() int {
	if e.Code == ResponseNotReady {
		return errorNotReadyLen
	}
	return HeaderSize
}

// Decode implements codec.Decoder.
func (e *ErrorResponse) Decode(b []byte) (int, error) {
	var h Header
	if _, err := h.Decode(b); err != nil {
		return 0, err
	}
	if err := expect(h, ErrorResponseCode); err != nil {
		return 0, err
	}
	code, err := ParseErrorCode(h.Param1)
	if err != nil {
		return 0, err
	}
	*e = ErrorResponse{SPDMVersion: h.SPDMVersion, Code: code, Data: h.Param2}
	if code != ResponseNotReady {
		return HeaderSize, nil
	}

	var ext [4]codec.Uint8
	if _, err := codec.ReadN(codec.NewReader(b), errorExtOffset, ext[:]); err != nil {
		return 0, err
	}
	e.NotReady = ResponseNotReadyData{
		RDTExponent: uint8(ext[0]),
		RequestCode: Code(ext[1]),
		Token:       uint8(ext[2]),
		RDTM:        uint8(ext[3]),
	}
	return errorNotReadyLen, nil
}

// Encode implements codec.Encoder.
func (e ErrorResponse) Encode(b []byte) (int, error) {
	if len(b) < e.Len() {
		return 0, codec.ShortBufferError{Need: e.Len()}
	}
	h := Header{SPDMVersion: e.SPDMVersion, Code: ErrorResponseCode, Param1: uint8(e.Code), Param2: e.Data}
	if _, err := h.Encode(b); err != nil {
		return 0, err
	}
	if e.Code != ResponseNotReady {
		return HeaderSize, nil
	}
	ext := [4]codec.Uint8{
		codec.Uint8(e.NotReady.RDTExponent),
		codec.Uint8(e.NotReady.RequestCode),
		codec.Uint8(e.NotReady.Token),
		codec.Uint8(e.NotReady.RDTM),
	}
	if _, err := codec.WriteN(codec.NewWriter(b), errorExtOffset, ext[:]); err != nil {
		return 0, err
	}
	return errorNotReadyLen, nil
}

// Error implements the standard error interface.
func (e ErrorResponse) Error() string {
	if e.Code == ResponseNotReady {
		return fmt.Sprintf("ERROR response %s [data=0x%02x,request=%s,token=%d,rdt=%d*2^%d us]",
			e.Code, e.Data, e.NotReady.RequestCode, e.NotReady.Token, e.NotReady.RDTM, e.NotReady.RDTExponent)
	}
	return fmt.Sprintf("ERROR response %s [data=0x%02x]", e.Code, e.Data)
}

// Is allows errors.Is to match the error code of the response.
func (e ErrorResponse) Is(target error) bool {
	c, ok := target.(ErrorCode)
	return ok && c == e.Code
}
