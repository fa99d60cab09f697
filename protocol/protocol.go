// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package protocol contains the SPDM message catalog: request/response codes,
// error codes and the fixed-layout messages of the version, capabilities and
// algorithms negotiation.
//
// Every message type implements [codec.Decoder] on its pointer and
// [codec.Encoder] on its value. Fields are addressed by constant offsets so
// that they may be decoded independently of one another.
package protocol

import "fmt"

// Code is the RequestResponseCode of an SPDM message. Request and response
// codes occupy disjoint ranges.
type Code uint8

// SPDM 1.0 request codes
const (
	GetDigestsCode           Code = 0x81
	GetCertificateCode       Code = 0x82
	ChallengeCode            Code = 0x83
	GetVersionCode           Code = 0x84
	GetMeasurementsCode      Code = 0xE0
	GetCapabilitiesCode      Code = 0xE1
	NegotiateAlgorithmsCode  Code = 0xE3
	VendorDefinedRequestCode Code = 0xFE
	RespondIfReadyCode       Code = 0xFF
)

// SPDM 1.0 response codes
const (
	DigestsCode               Code = 0x01
	CertificateCode           Code = 0x02
	ChallengeAuthCode         Code = 0x03
	VersionCode               Code = 0x04
	MeasurementsCode          Code = 0x60
	CapabilitiesCode          Code = 0x61
	AlgorithmsCode            Code = 0x63
	VendorDefinedResponseCode Code = 0x7E
	ErrorResponseCode         Code = 0x7F
)

// ParseCode validates a RequestResponseCode byte. Any value outside of the
// closed set of known codes is rejected with [InvalidRequest].
func ParseCode(b byte) (Code, error) {
	switch c := Code(b); c {
	case GetDigestsCode, GetCertificateCode, ChallengeCode, GetVersionCode,
		GetMeasurementsCode, GetCapabilitiesCode, NegotiateAlgorithmsCode,
		VendorDefinedRequestCode, RespondIfReadyCode,
		DigestsCode, CertificateCode, ChallengeAuthCode, VersionCode,
		MeasurementsCode, CapabilitiesCode, AlgorithmsCode,
		VendorDefinedResponseCode, ErrorResponseCode:
		return c, nil
	default:
		return 0, InvalidRequest
	}
}

// IsRequest reports whether the code is in the request range.
func (c Code) IsRequest() bool { return c&0x80 != 0 }

func (c Code) name() string {
	switch c {
	case GetDigestsCode:
		return "GET_DIGESTS"
	case GetCertificateCode:
		return "GET_CERTIFICATE"
	case ChallengeCode:
		return "CHALLENGE"
	case GetVersionCode:
		return "GET_VERSION"
	case GetMeasurementsCode:
		return "GET_MEASUREMENTS"
	case GetCapabilitiesCode:
		return "GET_CAPABILITIES"
	case NegotiateAlgorithmsCode:
		return "NEGOTIATE_ALGORITHMS"
	case VendorDefinedRequestCode:
		return "VENDOR_DEFINED_REQUEST"
	case RespondIfReadyCode:
		return "RESPOND_IF_READY"
	case DigestsCode:
		return "DIGESTS"
	case CertificateCode:
		return "CERTIFICATE"
	case ChallengeAuthCode:
		return "CHALLENGE_AUTH"
	case VersionCode:
		return "VERSION"
	case MeasurementsCode:
		return "MEASUREMENTS"
	case CapabilitiesCode:
		return "CAPABILITIES"
	case AlgorithmsCode:
		return "ALGORITHMS"
	case VendorDefinedResponseCode:
		return "VENDOR_DEFINED_RESPONSE"
	case ErrorResponseCode:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// String returns the name and value of the code, e.g. ALGORITHMS(0x63).
func (c Code) String() string {
	return fmt.Sprintf("%s(0x%02x)", c.name(), uint8(c))
}
