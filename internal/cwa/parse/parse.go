// Package parse decodes the 512-byte sectors of an AX3 .CWA recording: the
// single "MD" header sector and the "AX" data sectors carrying bit-packed
// triaxial samples. Field offsets follow the openmovement AX3-CWA-Format
// document; all multi-byte fields are little-endian.
package parse

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/units"
)

// Data sector layout constants (byte offsets from sector start).
const (
	OffsetDeviceID        = 4  // device-id word; top bit flags a fractional timestamp
	OffsetHeaderStartTime = 13 // MD sector: packed logging-planned start time
	OffsetBlockTimestamp  = 14 // packed calendar timestamp of the block
	OffsetLight           = 18 // light reading (unused by the epoch pipeline)
	OffsetTemperature     = 20 // raw temperature ADC word
	OffsetRateCode        = 24
	OffsetNumAxesBPS      = 25
	OffsetTimestampOffset = 26 // signed sample index; legacy files store the frequency here
	OffsetSampleCount     = 28
	PayloadOffset         = 30 // first byte of packed sample data
	PayloadSize           = cwa.SectorSize - PayloadOffset - 2 // 480 bytes; last 2 are the checksum
)

// SampleEncoding identifies how the payload packs each sample.
type SampleEncoding int

const (
	// EncodingPacked is 3x10-bit signed axes plus a 2-bit exponent in one
	// 32-bit word (numAxesBPS low nibble 0).
	EncodingPacked SampleEncoding = iota
	// EncodingRaw16 is three consecutive little-endian int16 axes
	// (numAxesBPS low nibble 2).
	EncodingRaw16
	// EncodingUnknown covers any other nibble; samples decode as zero and
	// each counts as a data error.
	EncodingUnknown
)

// DataBlock is the parsed header of one AX data sector plus a view of its
// sample payload. The payload aliases the sector buffer and is only valid
// until the buffer is reused for the next read.
type DataBlock struct {
	Time            time.Time // block timestamp including any fractional part
	Fractional      uint16    // 1/65536-second fractional carried by the device-id word
	TemperatureC    float64
	Freq            float64 // samples per second, clamped to >= 1
	TimestampOffset int16   // index of the sample whose time equals Time
	SampleCount     int
	BytesPerSample  int
	Encoding        SampleEncoding

	payload []byte
}

// MaxSamples returns the most samples a sector payload can hold at the
// given sample width.
func MaxSamples(bytesPerSample int) int {
	return PayloadSize / bytesPerSample
}

// ParseHeaderStart extracts the logging-planned start time from an MD
// header sector.
func ParseHeaderStart(buf []byte) (time.Time, error) {
	if len(buf) < cwa.SectorSize {
		return time.Time{}, fmt.Errorf("%w: short header sector (%d bytes)", cwa.ErrBlockCorrupt, len(buf))
	}
	if string(buf[0:2]) != cwa.TagHeader {
		return time.Time{}, fmt.Errorf("%w: not a header sector", cwa.ErrBlockCorrupt)
	}
	return DecodeCalendar(binary.LittleEndian.Uint32(buf[OffsetHeaderStartTime:]))
}

// ParseDataBlock parses the header fields of one AX data sector.
//
// When the rate code is non-zero, the word at offset 26 is the signed
// timestamp offset and the frequency comes from the rate code. Devices that
// report a fractional timestamp move the offset back in firmware for
// backwards compatibility; that shim is undone here by adding the samples
// back, so the offset once again indexes the sample whose time equals the
// block timestamp. A zero
// rate code marks the legacy layout where offset 26 stores the frequency
// verbatim and no fractional time exists.
func ParseDataBlock(buf []byte) (*DataBlock, error) {
	if len(buf) < cwa.SectorSize {
		return nil, fmt.Errorf("%w: short data sector (%d bytes)", cwa.ErrBlockCorrupt, len(buf))
	}
	if string(buf[0:2]) != cwa.TagData {
		return nil, fmt.Errorf("%w: bad sector tag %q", cwa.ErrBlockCorrupt, buf[0:2])
	}

	rateCode := buf[OffsetRateCode]
	numAxesBPS := buf[OffsetNumAxesBPS]
	oldDeviceID := binary.LittleEndian.Uint16(buf[OffsetDeviceID:])
	rawTemp := binary.LittleEndian.Uint16(buf[OffsetTemperature:])
	word26 := binary.LittleEndian.Uint16(buf[OffsetTimestampOffset:])

	b := &DataBlock{
		TemperatureC: units.RawTemperatureToCelsius(rawTemp),
		SampleCount:  int(binary.LittleEndian.Uint16(buf[OffsetSampleCount:])),
	}

	if rateCode != 0 {
		b.TimestampOffset = int16(word26)
		b.Freq = units.SampleRateForCode(rateCode)
		if oldDeviceID&0x8000 != 0 {
			// The low 15 bits are a 1/32768-second count; reinterpret as a
			// 16-bit fractional in 1/65536-second units.
			b.Fractional = (oldDeviceID & 0x7fff) << 1
			// Undo the firmware shim: the offset was reduced by the number
			// of whole samples the fractional part accounts for. Firmware
			// truncates the frequency to an integer before multiplying.
			b.TimestampOffset += int16((int(b.Fractional) * int(b.Freq)) >> 16)
		}
	} else {
		b.Freq = float64(int16(word26))
	}

	switch numAxesBPS & 0x0f {
	case 0:
		b.Encoding = EncodingPacked
		b.BytesPerSample = 4
	case 2:
		b.Encoding = EncodingRaw16
		b.BytesPerSample = 6
	default:
		b.Encoding = EncodingUnknown
		b.BytesPerSample = 4
	}

	if max := MaxSamples(b.BytesPerSample); b.SampleCount > max {
		b.SampleCount = max
	}
	if b.Freq <= 0 {
		b.Freq = 1
	}

	t, err := DecodeCalendar(binary.LittleEndian.Uint32(buf[OffsetBlockTimestamp:]))
	if err != nil {
		return nil, err
	}
	b.Time = WithFractional(t, b.Fractional)
	b.payload = buf[PayloadOffset : PayloadOffset+PayloadSize]

	return b, nil
}

// RawSample decodes the i-th sample of the block into raw axis integers.
// Unknown encodings decode as zero; the caller accounts the error. An index
// past the payload reports cwa.ErrBlockCorrupt.
func (b *DataBlock) RawSample(i int) (x, y, z int16, err error) {
	off := i * b.BytesPerSample
	if i < 0 || off+b.BytesPerSample > len(b.payload) {
		return 0, 0, 0, fmt.Errorf("%w: sample %d beyond payload", cwa.ErrBlockCorrupt, i)
	}
	switch b.Encoding {
	case EncodingPacked:
		x, y, z = ReadPackedXYZ(b.payload, off)
	case EncodingRaw16:
		x, y, z = ReadRawXYZ16(b.payload, off)
	default:
		return 0, 0, 0, nil
	}
	return x, y, z, nil
}

// ReadPackedXYZ decodes a 32-bit packed sample at the given byte offset.
// Each axis occupies 10 bits (x at bit 0, y at 10, z at 20) with a shared
// 2-bit exponent e in the top bits. The slot is placed in the high 10 bits
// of a 16-bit word and arithmetic-right-shifted by 6-e, which sign-extends
// and applies the exponent in one step. This recipe is bit-exact against
// firmware output.
func ReadPackedXYZ(buf []byte, off int) (x, y, z int16) {
	v := binary.LittleEndian.Uint32(buf[off:])
	e := uint(v >> 30 & 3)
	x = int16(uint16(v<<6)&0xffc0) >> (6 - e)
	y = int16(uint16(v>>4)&0xffc0) >> (6 - e)
	z = int16(uint16(v>>14)&0xffc0) >> (6 - e)
	return x, y, z
}

// ReadRawXYZ16 decodes three consecutive little-endian int16 axis values at
// the given byte offset.
func ReadRawXYZ16(buf []byte, off int) (x, y, z int16) {
	x = int16(binary.LittleEndian.Uint16(buf[off:]))
	y = int16(binary.LittleEndian.Uint16(buf[off+2:]))
	z = int16(binary.LittleEndian.Uint16(buf[off+4:]))
	return x, y, z
}
