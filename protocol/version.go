// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package protocol

import (
	"fmt"

	"github.com/go-spdm/spdm/codec"
)

// SPDMVersion10 is the SPDMVersion header byte of GET_VERSION and VERSION
// messages, which are always exchanged using version 1.0.
const SPDMVersion10 uint8 = 0x10

// MaxVersionNumberEntries is the capacity of a VERSION message.
const MaxVersionNumberEntries = 10

// VersionNumberEntry is a packed 16-bit version number.
//
//	Bits   Field
//	15:12  MajorVersion
//	11:8   MinorVersion
//	7:4    UpdateVersionNumber
//	3:0    Alpha
type VersionNumberEntry uint16

// Well-known versions
const (
	Version10 VersionNumberEntry = 0x1000
	Version11 VersionNumberEntry = 0x1100
	Version12 VersionNumberEntry = 0x1200
)

// NewVersionNumberEntry packs four nibbles. Bits above the low four of each
// argument are discarded.
func NewVersionNumberEntry(major, minor, update, alpha uint8) VersionNumberEntry {
	return VersionNumberEntry(uint16(major&0xf)<<12 | uint16(minor&0xf)<<8 | uint16(update&0xf)<<4 | uint16(alpha&0xf))
}

func (e VersionNumberEntry) bits(lo uint) uint8 { return uint8(uint16(e)>>lo) & 0xf }

// Major returns the MajorVersion nibble.
func (e VersionNumberEntry) Major() uint8 { return e.bits(12) }

// Minor returns the MinorVersion nibble.
func (e VersionNumberEntry) Minor() uint8 { return e.bits(8) }

// Update returns the UpdateVersionNumber nibble.
func (e VersionNumberEntry) Update() uint8 { return e.bits(4) }

// Alpha returns the Alpha nibble.
func (e VersionNumberEntry) Alpha() uint8 { return e.bits(0) }

// SPDMVersion returns the header byte used by messages of this version.
func (e VersionNumberEntry) SPDMVersion() uint8 { return e.Major()<<4 | e.Minor() }

// Compatible reports whether two entries share major and minor versions.
func (e VersionNumberEntry) Compatible(other VersionNumberEntry) bool {
	return e.SPDMVersion() == other.SPDMVersion()
}

func (e VersionNumberEntry) String() string {
	if e.Alpha() != 0 {
		return fmt.Sprintf("%d.%d.%d-alpha%d", e.Major(), e.Minor(), e.Update(), e.Alpha())
	}
	return fmt.Sprintf("%d.%d.%d", e.Major(), e.Minor(), e.Update())
}

// Decode implements codec.Decoder.
func (e *VersionNumberEntry) Decode(b []byte) (int, error) {
	return (*codec.Uint16)(e).Decode(b)
}

// Encode implements codec.Encoder.
func (e VersionNumberEntry) Encode(b []byte) (int, error) {
	return codec.Uint16(e).Encode(b)
}

// GetVersion is the GET_VERSION request. It has no payload.
type GetVersion struct {
	Header
}

var _ codec.Codec = (*GetVersion)(nil)

// NewGetVersion returns a GET_VERSION request.
func NewGetVersion() GetVersion {
	return GetVersion{Header: Header{SPDMVersion: SPDMVersion10, Code: GetVersionCode}}
}

// Decode implements codec.Decoder.
func (m *GetVersion) Decode(b []byte) (int, error) {
	var h Header
	n, err := h.Decode(b)
	if err != nil {
		return 0, err
	}
	if err := expect(h, GetVersionCode); err != nil {
		return 0, err
	}
	m.Header = h
	return n, nil
}

// Encode implements codec.Encoder. The version 1.0 header with zero
// parameters is always emitted.
func (m GetVersion) Encode(b []byte) (int, error) {
	return Header{SPDMVersion: SPDMVersion10, Code: GetVersionCode}.Encode(b)
}

// Version is the VERSION response.
//
//	Offset  Field
//	0       Header
//	4       Reserved
//	5       VersionNumberEntryCount
//	6       VersionNumberEntry[count], 2 bytes each
type Version struct {
	Header
	Count   uint8
	Entries [MaxVersionNumberEntries]VersionNumberEntry
}

const (
	versionReservedOffset = 4
	versionCountOffset    = 5
	versionEntriesOffset  = 6
)

var _ codec.Codec = (*Version)(nil)

// NewVersion returns a VERSION response listing the given entries.
func NewVersion(entries ...VersionNumberEntry) (Version, error) {
	v := Version{Header: Header{SPDMVersion: SPDMVersion10, Code: VersionCode}}
	if len(entries) > MaxVersionNumberEntries {
		return v, tooMany("version number entry", len(entries), MaxVersionNumberEntries)
	}
	v.Count = uint8(copy(v.Entries[:], entries))
	return v, nil
}

// List returns the transmitted entries.
func (m *Version) List() []VersionNumberEntry {
	return m.Entries[:min(int(m.Count), MaxVersionNumberEntries)]
}

// Len returns the encoded size of the message.
func (m *Version) Len() int { return versionEntriesOffset + 2*int(m.Count) }

// Decode implements codec.Decoder. A complete header is validated first.
// Otherwise the count byte is read first, so any buffer shorter than 6 bytes
// reports a requirement of 6.
func (m *Version) Decode(b []byte) (int, error) {
	h, err := decodeExpected(b, VersionCode)
	if err != nil {
		return 0, err
	}
	r := codec.NewReader(b)
	count, _, err := codec.Read[codec.Uint8](r, versionCountOffset)
	if err != nil {
		return 0, err
	}
	if int(count) > MaxVersionNumberEntries {
		return 0, tooMany("version number entry", int(count), MaxVersionNumberEntries)
	}

	var entries [MaxVersionNumberEntries]VersionNumberEntry
	n, err := codec.ReadN(r, versionEntriesOffset, entries[:count])
	if err != nil {
		return 0, err
	}
	*m = Version{Header: h, Count: uint8(count), Entries: entries}
	return versionEntriesOffset + n, nil
}

// Encode implements codec.Encoder.
func (m Version) Encode(b []byte) (int, error) {
	if int(m.Count) > MaxVersionNumberEntries {
		return 0, tooMany("version number entry", int(m.Count), MaxVersionNumberEntries)
	}
	if len(b) < m.Len() {
		return 0, codec.ShortBufferError{Need: m.Len()}
	}

	w := codec.NewWriter(b)
	h := m.Header
	h.Code = VersionCode
	if _, err := h.Encode(b); err != nil {
		return 0, err
	}
	if _, err := codec.Write(w, versionReservedOffset, codec.Uint8(0)); err != nil {
		return 0, err
	}
	if _, err := codec.Write(w, versionCountOffset, codec.Uint8(m.Count)); err != nil {
		return 0, err
	}
	n, err := codec.WriteN(w, versionEntriesOffset, m.Entries[:m.Count])
	if err != nil {
		return 0, err
	}
	return versionEntriesOffset + n, nil
}
