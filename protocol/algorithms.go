// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package protocol

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/go-spdm/spdm/codec"
)

// MeasurementSpecification is a bitmask of measurement specifications.
type MeasurementSpecification uint8

// DMTFMeasurementSpec is the only defined measurement specification.
const DMTFMeasurementSpec MeasurementSpecification = 1 << 0

func (s MeasurementSpecification) String() string { return bitNames(uint32(s), []string{"DMTF"}) }

// BaseAsymAlgo is a bitmask of asymmetric signature algorithms.
type BaseAsymAlgo uint32

// Asymmetric signature algorithms
const (
	RSASSA2048 BaseAsymAlgo = 1 << 0
	RSAPSS2048 BaseAsymAlgo = 1 << 1
	RSASSA3072 BaseAsymAlgo = 1 << 2
	RSAPSS3072 BaseAsymAlgo = 1 << 3
	ECDSAP256  BaseAsymAlgo = 1 << 4
	RSASSA4096 BaseAsymAlgo = 1 << 5
	RSAPSS4096 BaseAsymAlgo = 1 << 6
	ECDSAP384  BaseAsymAlgo = 1 << 7
	ECDSAP521  BaseAsymAlgo = 1 << 8
)

var baseAsymNames = []string{"RSASSA_2048", "RSAPSS_2048", "RSASSA_3072", "RSAPSS_3072",
	"ECDSA_P256", "RSASSA_4096", "RSAPSS_4096", "ECDSA_P384", "ECDSA_P521"}

func (a BaseAsymAlgo) String() string { return bitNames(uint32(a), baseAsymNames) }

// BaseHashAlgo is a bitmask of hash algorithms.
type BaseHashAlgo uint32

// Hash algorithms
const (
	SHA256   BaseHashAlgo = 1 << 0
	SHA384   BaseHashAlgo = 1 << 1
	SHA512   BaseHashAlgo = 1 << 2
	SHA3_256 BaseHashAlgo = 1 << 3
	SHA3_384 BaseHashAlgo = 1 << 4
	SHA3_512 BaseHashAlgo = 1 << 5
)

var baseHashNames = []string{"SHA_256", "SHA_384", "SHA_512", "SHA3_256", "SHA3_384", "SHA3_512"}

func (a BaseHashAlgo) String() string { return bitNames(uint32(a), baseHashNames) }

// MeasurementHashAlgo is a bitmask of measurement hash algorithms.
type MeasurementHashAlgo uint32

// Measurement hash algorithms
const (
	RawBitStreamOnly MeasurementHashAlgo = 1 << 0
	MeasSHA256       MeasurementHashAlgo = 1 << 1
	MeasSHA384       MeasurementHashAlgo = 1 << 2
	MeasSHA512       MeasurementHashAlgo = 1 << 3
	MeasSHA3_256     MeasurementHashAlgo = 1 << 4
	MeasSHA3_384     MeasurementHashAlgo = 1 << 5
	MeasSHA3_512     MeasurementHashAlgo = 1 << 6
)

var measurementHashNames = []string{"RAW_BIT_STREAM_ONLY", "SHA_256", "SHA_384", "SHA_512",
	"SHA3_256", "SHA3_384", "SHA3_512"}

func (a MeasurementHashAlgo) String() string { return bitNames(uint32(a), measurementHashNames) }

func bitNames(v uint32, all []string) string {
	if v == 0 {
		return "none"
	}
	var set []string
	for v != 0 {
		i := bits.TrailingZeros32(v)
		v &^= 1 << i
		if i < len(all) {
			set = append(set, all[i])
		} else {
			set = append(set, fmt.Sprintf("BIT%d", i))
		}
	}
	return strings.Join(set, "|")
}

// SingleBit reports whether exactly one bit of v is set.
func SingleBit[T ~uint8 | ~uint32](v T) bool {
	return v != 0 && v&(v-1) == 0
}

// MaxExtAlgorithms is the capacity of each extended algorithm list.
const MaxExtAlgorithms = 8

// ExtAlgorithmSize is the encoded size of an [ExtAlgorithm].
const ExtAlgorithmSize = 4

// Registry IDs of extended algorithms
const (
	RegistryDMTF    uint8 = 0x00
	RegistryTCG     uint8 = 0x01
	RegistryUSB     uint8 = 0x02
	RegistryPCISIG  uint8 = 0x03
	RegistryIANA    uint8 = 0x04
	RegistryHDBaseT uint8 = 0x05
	RegistryMIPI    uint8 = 0x06
	RegistryCXL     uint8 = 0x07
	RegistryJEDEC   uint8 = 0x08
)

// ExtAlgorithm is an extended (registry-defined) algorithm.
//
//	Offset  Field
//	0       RegistryID
//	1       Reserved
//	2       AlgorithmID (2 bytes)
type ExtAlgorithm struct {
	RegistryID  uint8
	AlgorithmID uint16
}

var _ codec.Codec = (*ExtAlgorithm)(nil)

// Decode implements codec.Decoder.
func (a *ExtAlgorithm) Decode(b []byte) (int, error) {
	if len(b) < ExtAlgorithmSize {
		return 0, codec.ShortBufferError{Need: ExtAlgorithmSize}
	}
	r := codec.NewReader(b)
	reg, _, err := codec.Read[codec.Uint8](r, 0)
	if err != nil {
		return 0, err
	}
	id, _, err := codec.Read[codec.Uint16](r, 2)
	if err != nil {
		return 0, err
	}
	*a = ExtAlgorithm{RegistryID: uint8(reg), AlgorithmID: uint16(id)}
	return ExtAlgorithmSize, nil
}

// Encode implements codec.Encoder.
func (a ExtAlgorithm) Encode(b []byte) (int, error) {
	if len(b) < ExtAlgorithmSize {
		return 0, codec.ShortBufferError{Need: ExtAlgorithmSize}
	}
	w := codec.NewWriter(b)
	if _, err := codec.Write(w, 0, codec.Uint8(a.RegistryID)); err != nil {
		return 0, err
	}
	if _, err := codec.Write(w, 1, codec.Uint8(0)); err != nil {
		return 0, err
	}
	if _, err := codec.Write(w, 2, codec.Uint16(a.AlgorithmID)); err != nil {
		return 0, err
	}
	return ExtAlgorithmSize, nil
}

func (a ExtAlgorithm) String() string {
	return fmt.Sprintf("%d:0x%04x", a.RegistryID, a.AlgorithmID)
}

var zeroReserved [12]codec.Uint8

// NegotiateAlgorithms is the SPDM 1.0 NEGOTIATE_ALGORITHMS request.
//
//	Offset   Field
//	0        Header
//	4        Length (2 bytes)
//	6        MeasurementSpecification
//	7        Reserved
//	8        BaseAsymAlgo (4 bytes)
//	12       BaseHashAlgo (4 bytes)
//	16       Reserved (12 bytes)
//	28       ExtAsymCount
//	29       ExtHashCount
//	30       Reserved (2 bytes)
//	32       ExtAsym[ExtAsymCount], 4 bytes each
//	32+4*A   ExtHash[ExtHashCount], 4 bytes each
type NegotiateAlgorithms struct {
	Header
	MeasurementSpecification MeasurementSpecification
	BaseAsymAlgo             BaseAsymAlgo
	BaseHashAlgo             BaseHashAlgo
	ExtAsymCount             uint8
	ExtHashCount             uint8
	ExtAsym                  [MaxExtAlgorithms]ExtAlgorithm
	ExtHash                  [MaxExtAlgorithms]ExtAlgorithm
}

const (
	negLengthOffset    = 4
	negMeasSpecOffset  = 6
	negReserved0Offset = 7
	negBaseAsymOffset  = 8
	negBaseHashOffset  = 12
	negReserved1Offset = 16
	negExtAsymCountOff = 28
	negExtHashCountOff = 29
	negReserved2Offset = 30
	negExtOffset       = 32
)

var _ codec.Codec = (*NegotiateAlgorithms)(nil)

// Len returns the encoded size of the message.
func (m *NegotiateAlgorithms) Len() int {
	return negExtOffset + ExtAlgorithmSize*(int(m.ExtAsymCount)+int(m.ExtHashCount))
}

// Decode implements codec.Decoder.
func (m *NegotiateAlgorithms) Decode(b []byte) (int, error) {
	h, err := decodeExpected(b, NegotiateAlgorithmsCode)
	if err != nil {
		return 0, err
	}
	r := codec.NewReader(b)
	asymCount, _, err := codec.Read[codec.Uint8](r, negExtAsymCountOff)
	if err != nil {
		return 0, err
	}
	hashCount, _, err := codec.Read[codec.Uint8](r, negExtHashCountOff)
	if err != nil {
		return 0, err
	}

	if int(asymCount) > MaxExtAlgorithms {
		return 0, tooMany("ExtAsym", int(asymCount), MaxExtAlgorithms)
	}
	if int(hashCount) > MaxExtAlgorithms {
		return 0, tooMany("ExtHash", int(hashCount), MaxExtAlgorithms)
	}

	msg := NegotiateAlgorithms{Header: h, ExtAsymCount: uint8(asymCount), ExtHashCount: uint8(hashCount)}
	if len(b) < msg.Len() {
		return 0, codec.ShortBufferError{Need: msg.Len()}
	}
	asymLen, err := codec.ReadN(r, negExtOffset, msg.ExtAsym[:asymCount])
	if err != nil {
		return 0, err
	}
	if _, err := codec.ReadN(r, negExtOffset+asymLen, msg.ExtHash[:hashCount]); err != nil {
		return 0, err
	}

	length, _, err := codec.Read[codec.Uint16](r, negLengthOffset)
	if err != nil {
		return 0, err
	}
	spec, _, err := codec.Read[codec.Uint8](r, negMeasSpecOffset)
	if err != nil {
		return 0, err
	}
	asym, _, err := codec.Read[codec.Uint32](r, negBaseAsymOffset)
	if err != nil {
		return 0, err
	}
	hash, _, err := codec.Read[codec.Uint32](r, negBaseHashOffset)
	if err != nil {
		return 0, err
	}
	msg.MeasurementSpecification = MeasurementSpecification(spec)
	msg.BaseAsymAlgo = BaseAsymAlgo(asym)
	msg.BaseHashAlgo = BaseHashAlgo(hash)

	if int(length) != msg.Len() {
		return 0, fmt.Errorf("%w: %w: NEGOTIATE_ALGORITHMS length %d, expected %d",
			InvalidRequest, ErrLengthMismatch, length, msg.Len())
	}
	*m = msg
	return msg.Len(), nil
}

// Encode implements codec.Encoder. The Length field is computed.
func (m NegotiateAlgorithms) Encode(b []byte) (int, error) {
	if int(m.ExtAsymCount) > MaxExtAlgorithms {
		return 0, tooMany("ExtAsym", int(m.ExtAsymCount), MaxExtAlgorithms)
	}
	if int(m.ExtHashCount) > MaxExtAlgorithms {
		return 0, tooMany("ExtHash", int(m.ExtHashCount), MaxExtAlgorithms)
	}
	size := m.Len()
	if len(b) < size {
		return 0, codec.ShortBufferError{Need: size}
	}

	h := m.Header
	h.Code = NegotiateAlgorithmsCode
	if _, err := h.Encode(b); err != nil {
		return 0, err
	}
	w := codec.NewWriter(b)
	for _, field := range []struct {
		offset int
		value  codec.Encoder
	}{
		{negLengthOffset, codec.Uint16(size)},
		{negMeasSpecOffset, codec.Uint8(m.MeasurementSpecification)},
		{negReserved0Offset, codec.Uint8(0)},
		{negBaseAsymOffset, codec.Uint32(m.BaseAsymAlgo)},
		{negBaseHashOffset, codec.Uint32(m.BaseHashAlgo)},
		{negExtAsymCountOff, codec.Uint8(m.ExtAsymCount)},
		{negExtHashCountOff, codec.Uint8(m.ExtHashCount)},
		{negReserved2Offset, codec.Uint16(0)},
	} {
		if _, err := codec.Write(w, field.offset, field.value); err != nil {
			return 0, err
		}
	}
	if _, err := codec.WriteN(w, negReserved1Offset, zeroReserved[:]); err != nil {
		return 0, err
	}
	asymLen, err := codec.WriteN(w, negExtOffset, m.ExtAsym[:m.ExtAsymCount])
	if err != nil {
		return 0, err
	}
	if _, err := codec.WriteN(w, negExtOffset+asymLen, m.ExtHash[:m.ExtHashCount]); err != nil {
		return 0, err
	}
	return size, nil
}

// Algorithms is the SPDM 1.0 ALGORITHMS response.
//
//	Offset   Field
//	0        Header
//	4        Length (2 bytes)
//	6        MeasurementSpecificationSel
//	7        Reserved
//	8        MeasurementHashAlgo (4 bytes)
//	12       BaseAsymSel (4 bytes)
//	16       BaseHashSel (4 bytes)
//	20       Reserved (12 bytes)
//	32       ExtAsymSelCount
//	33       ExtHashSelCount
//	34       Reserved (2 bytes)
//	36       ExtAsymSel[ExtAsymSelCount], 4 bytes each
//	36+4*A   ExtHashSel[ExtHashSelCount], 4 bytes each
type Algorithms struct {
	Header
	MeasurementSpecificationSel MeasurementSpecification
	MeasurementHashAlgo         MeasurementHashAlgo
	BaseAsymSel                 BaseAsymAlgo
	BaseHashSel                 BaseHashAlgo
	ExtAsymSelCount             uint8
	ExtHashSelCount             uint8
	ExtAsymSel                  [MaxExtAlgorithms]ExtAlgorithm
	ExtHashSel                  [MaxExtAlgorithms]ExtAlgorithm
}

const (
	algLengthOffset    = 4
	algMeasSpecOffset  = 6
	algReserved0Offset = 7
	algMeasHashOffset  = 8
	algBaseAsymOffset  = 12
	algBaseHashOffset  = 16
	algReserved1Offset = 20
	algExtAsymCountOff = 32
	algExtHashCountOff = 33
	algReserved2Offset = 34
	algExtOffset       = 36
)

var _ codec.Codec = (*Algorithms)(nil)

// Len returns the encoded size of the message.
func (m *Algorithms) Len() int {
	return algExtOffset + ExtAlgorithmSize*(int(m.ExtAsymSelCount)+int(m.ExtHashSelCount))
}

// Decode implements codec.Decoder.
func (m *Algorithms) Decode(b []byte) (int, error) {
	h, err := decodeExpected(b, AlgorithmsCode)
	if err != nil {
		return 0, err
	}
	r := codec.NewReader(b)
	asymCount, _, err := codec.Read[codec.Uint8](r, algExtAsymCountOff)
	if err != nil {
		return 0, err
	}
	hashCount, _, err := codec.Read[codec.Uint8](r, algExtHashCountOff)
	if err != nil {
		return 0, err
	}

	if int(asymCount) > MaxExtAlgorithms {
		return 0, tooMany("ExtAsymSel", int(asymCount), MaxExtAlgorithms)
	}
	if int(hashCount) > MaxExtAlgorithms {
		return 0, tooMany("ExtHashSel", int(hashCount), MaxExtAlgorithms)
	}

	msg := Algorithms{Header: h, ExtAsymSelCount: uint8(asymCount), ExtHashSelCount: uint8(hashCount)}
	if len(b) < msg.Len() {
		return 0, codec.ShortBufferError{Need: msg.Len()}
	}
	asymLen, err := codec.ReadN(r, algExtOffset, msg.ExtAsymSel[:asymCount])
	if err != nil {
		return 0, err
	}
	if _, err := codec.ReadN(r, algExtOffset+asymLen, msg.ExtHashSel[:hashCount]); err != nil {
		return 0, err
	}

	length, _, err := codec.Read[codec.Uint16](r, algLengthOffset)
	if err != nil {
		return 0, err
	}
	spec, _, err := codec.Read[codec.Uint8](r, algMeasSpecOffset)
	if err != nil {
		return 0, err
	}
	measHash, _, err := codec.Read[codec.Uint32](r, algMeasHashOffset)
	if err != nil {
		return 0, err
	}
	asym, _, err := codec.Read[codec.Uint32](r, algBaseAsymOffset)
	if err != nil {
		return 0, err
	}
	hash, _, err := codec.Read[codec.Uint32](r, algBaseHashOffset)
	if err != nil {
		return 0, err
	}
	msg.MeasurementSpecificationSel = MeasurementSpecification(spec)
	msg.MeasurementHashAlgo = MeasurementHashAlgo(measHash)
	msg.BaseAsymSel = BaseAsymAlgo(asym)
	msg.BaseHashSel = BaseHashAlgo(hash)

	if int(length) != msg.Len() {
		return 0, fmt.Errorf("%w: %w: ALGORITHMS length %d, expected %d",
			InvalidRequest, ErrLengthMismatch, length, msg.Len())
	}
	*m = msg
	return msg.Len(), nil
}

// Encode implements codec.Encoder. The Length field is computed.
func (m Algorithms) Encode(b []byte) (int, error) {
	if int(m.ExtAsymSelCount) > MaxExtAlgorithms {
		return 0, tooMany("ExtAsymSel", int(m.ExtAsymSelCount), MaxExtAlgorithms)
	}
	if int(m.ExtHashSelCount) > MaxExtAlgorithms {
		return 0, tooMany("ExtHashSel", int(m.ExtHashSelCount), MaxExtAlgorithms)
	}
	size := m.Len()
	if len(b) < size {
		return 0, codec.ShortBufferError{Need: size}
	}

	h := m.Header
	h.Code = AlgorithmsCode
	if _, err := h.Encode(b); err != nil {
		return 0, err
	}
	w := codec.NewWriter(b)
	for _, field := range []struct {
		offset int
		value  codec.Encoder
	}{
		{algLengthOffset, codec.Uint16(size)},
		{algMeasSpecOffset, codec.Uint8(m.MeasurementSpecificationSel)},
		{algReserved0Offset, codec.Uint8(0)},
		{algMeasHashOffset, codec.Uint32(m.MeasurementHashAlgo)},
		{algBaseAsymOffset, codec.Uint32(m.BaseAsymSel)},
		{algBaseHashOffset, codec.Uint32(m.BaseHashSel)},
		{algExtAsymCountOff, codec.Uint8(m.ExtAsymSelCount)},
		{algExtHashCountOff, codec.Uint8(m.ExtHashSelCount)},
		{algReserved2Offset, codec.Uint16(0)},
	} {
		if _, err := codec.Write(w, field.offset, field.value); err != nil {
			return 0, err
		}
	}
	if _, err := codec.WriteN(w, algReserved1Offset, zeroReserved[:]); err != nil {
		return 0, err
	}
	asymLen, err := codec.WriteN(w, algExtOffset, m.ExtAsymSel[:m.ExtAsymSelCount])
	if err != nil {
		return 0, err
	}
	if _, err := codec.WriteN(w, algExtOffset+asymLen, m.ExtHashSel[:m.ExtHashSelCount]); err != nil {
		return 0, err
	}
	return size, nil
}
