// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package protocol

import (
	"strings"

	"github.com/go-spdm/spdm/codec"
)

// CapabilityFlags is the Flags field of a CAPABILITIES response.
type CapabilityFlags uint32

// Capability flags. Bits above MeasFreshCap were introduced after SPDM 1.0
// and are only named here for display purposes.
const (
	CacheCap                CapabilityFlags = 1 << 0
	CertCap                 CapabilityFlags = 1 << 1
	ChalCap                 CapabilityFlags = 1 << 2
	MeasCapNoSig            CapabilityFlags = 1 << 3
	MeasCapSig              CapabilityFlags = 2 << 3
	MeasFreshCap            CapabilityFlags = 1 << 5
	EncryptCap              CapabilityFlags = 1 << 6
	MACCap                  CapabilityFlags = 1 << 7
	MutAuthCap              CapabilityFlags = 1 << 8
	KeyExCap                CapabilityFlags = 1 << 9
	PSKCapNoContext         CapabilityFlags = 1 << 10
	PSKCapContext           CapabilityFlags = 2 << 10
	EncapCap                CapabilityFlags = 1 << 12
	HbeatCap                CapabilityFlags = 1 << 13
	KeyUpdCap               CapabilityFlags = 1 << 14
	HandshakeInTheClearCap  CapabilityFlags = 1 << 15
	PubKeyIDCap             CapabilityFlags = 1 << 16
	measCapMask             CapabilityFlags = 3 << 3
	pskCapMask              CapabilityFlags = 3 << 10
)

// MeasCap returns the two-bit measurement capability: 0 for none, 1 for
// measurements without signature and 2 for signed measurements.
func (f CapabilityFlags) MeasCap() uint8 { return uint8((f & measCapMask) >> 3) }

// Has reports whether all bits of flag are set.
func (f CapabilityFlags) Has(flag CapabilityFlags) bool { return f&flag == flag }

func (f CapabilityFlags) String() string {
	var names []string
	for _, flag := range []struct {
		bit  CapabilityFlags
		name string
	}{
		{CacheCap, "CACHE_CAP"},
		{CertCap, "CERT_CAP"},
		{ChalCap, "CHAL_CAP"},
		{MeasFreshCap, "MEAS_FRESH_CAP"},
		{EncryptCap, "ENCRYPT_CAP"},
		{MACCap, "MAC_CAP"},
		{MutAuthCap, "MUT_AUTH_CAP"},
		{KeyExCap, "KEY_EX_CAP"},
		{EncapCap, "ENCAP_CAP"},
		{HbeatCap, "HBEAT_CAP"},
		{KeyUpdCap, "KEY_UPD_CAP"},
		{HandshakeInTheClearCap, "HANDSHAKE_IN_THE_CLEAR_CAP"},
		{PubKeyIDCap, "PUB_KEY_ID_CAP"},
	} {
		if f.Has(flag.bit) {
			names = append(names, flag.name)
		}
	}
	switch f & measCapMask {
	case MeasCapNoSig:
		names = append(names, "MEAS_CAP_NO_SIG")
	case MeasCapSig:
		names = append(names, "MEAS_CAP_SIG")
	}
	switch f & pskCapMask {
	case PSKCapNoContext:
		names = append(names, "PSK_CAP")
	case PSKCapContext:
		names = append(names, "PSK_CAP_WITH_CONTEXT")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// GetCapabilities is the SPDM 1.0 GET_CAPABILITIES request. It has no
// payload.
type GetCapabilities struct {
	Header
}

var _ codec.Codec = (*GetCapabilities)(nil)

// NewGetCapabilities returns a GET_CAPABILITIES request for the negotiated
// version.
func NewGetCapabilities(version VersionNumberEntry) GetCapabilities {
	return GetCapabilities{Header: Header{SPDMVersion: version.SPDMVersion(), Code: GetCapabilitiesCode}}
}

// Decode implements codec.Decoder.
func (m *GetCapabilities) Decode(b []byte) (int, error) {
	var h Header
	n, err := h.Decode(b)
	if err != nil {
		return 0, err
	}
	if err := expect(h, GetCapabilitiesCode); err != nil {
		return 0, err
	}
	m.Header = h
	return n, nil
}

// Encode implements codec.Encoder.
func (m GetCapabilities) Encode(b []byte) (int, error) {
	h := m.Header
	h.Code = GetCapabilitiesCode
	return h.Encode(b)
}

// Capabilities is the SPDM 1.0 CAPABILITIES response.
//
//	Offset  Field
//	0       Header
//	4       Reserved
//	5       CTExponent
//	6       Reserved (2 bytes)
//	8       Flags (4 bytes)
type Capabilities struct {
	Header
	CTExponent uint8
	Flags      CapabilityFlags
}

// CapabilitiesLen is the encoded size of a CAPABILITIES response.
const CapabilitiesLen = 12

const (
	capsReserved0Offset  = 4
	capsCTExponentOffset = 5
	capsReserved1Offset  = 6
	capsFlagsOffset      = 8
)

var _ codec.Codec = (*Capabilities)(nil)

// Decode implements codec.Decoder.
func (m *Capabilities) Decode(b []byte) (int, error) {
	h, err := decodeExpected(b, CapabilitiesCode)
	if err != nil {
		return 0, err
	}
	if len(b) < CapabilitiesLen {
		return 0, codec.ShortBufferError{Need: CapabilitiesLen}
	}

	r := codec.NewReader(b)
	ct, _, err := codec.Read[codec.Uint8](r, capsCTExponentOffset)
	if err != nil {
		return 0, err
	}
	flags, _, err := codec.Read[codec.Uint32](r, capsFlagsOffset)
	if err != nil {
		return 0, err
	}
	*m = Capabilities{Header: h, CTExponent: uint8(ct), Flags: CapabilityFlags(flags)}
	return CapabilitiesLen, nil
}

// Encode implements codec.Encoder.
func (m Capabilities) Encode(b []byte) (int, error) {
	if len(b) < CapabilitiesLen {
		return 0, codec.ShortBufferError{Need: CapabilitiesLen}
	}
	h := m.Header
	h.Code = CapabilitiesCode
	if _, err := h.Encode(b); err != nil {
		return 0, err
	}

	w := codec.NewWriter(b)
	if _, err := codec.Write(w, capsReserved0Offset, codec.Uint8(0)); err != nil {
		return 0, err
	}
	if _, err := codec.Write(w, capsCTExponentOffset, codec.Uint8(m.CTExponent)); err != nil {
		return 0, err
	}
	if _, err := codec.Write(w, capsReserved1Offset, codec.Uint16(0)); err != nil {
		return 0, err
	}
	if _, err := codec.Write(w, capsFlagsOffset, codec.Uint32(m.Flags)); err != nil {
		return 0, err
	}
	return CapabilitiesLen, nil
}
