package parse

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa"
)

// signExtend10 is the reference decode: take the 10-bit slot at the given
// shift, sign-extend, then apply the shared exponent as a left shift.
func signExtend10(v uint32, shift, e uint) int16 {
	slot := int32(v >> shift & 0x3ff)
	if slot&0x200 != 0 {
		slot |= ^int32(0x3ff)
	}
	return int16(slot << e)
}

func TestReadPackedXYZMatchesReference(t *testing.T) {
	words := []uint32{
		0x00000000,
		0xFFFFFFFF,
		0x0000003F,
		0x000003FF,
		0x3FFFFFFF,
		0x40000000,
		0x80000000,
		0xC0000200,
		0x12345678,
		0xDEADBEEF,
		0x7FF003FF,
		0xAAAAAAAA,
		0x55555555,
	}
	buf := make([]byte, 4)
	for _, v := range words {
		binary.LittleEndian.PutUint32(buf, v)
		x, y, z := ReadPackedXYZ(buf, 0)
		e := uint(v >> 30 & 3)
		if wx := signExtend10(v, 0, e); x != wx {
			t.Errorf("word %08x: x = %d, want %d", v, x, wx)
		}
		if wy := signExtend10(v, 10, e); y != wy {
			t.Errorf("word %08x: y = %d, want %d", v, y, wy)
		}
		if wz := signExtend10(v, 20, e); z != wz {
			t.Errorf("word %08x: z = %d, want %d", v, z, wz)
		}
	}
}

func TestReadPackedXYZBoundaryValues(t *testing.T) {
	cases := []struct {
		word    uint32
		x, y, z int16
	}{
		// All-ones: every slot is -1, exponent 3 scales to -8.
		{0xFFFFFFFF, -8, -8, -8},
		// 0x3F in the x slot: bit 9 clear, no sign extension.
		{0x0000003F, 63, 0, 0},
		// 0x3FF in the x slot: sign-extends to -1 at exponent 0.
		{0x000003FF, -1, 0, 0},
	}
	buf := make([]byte, 4)
	for _, c := range cases {
		binary.LittleEndian.PutUint32(buf, c.word)
		x, y, z := ReadPackedXYZ(buf, 0)
		if x != c.x || y != c.y || z != c.z {
			t.Errorf("word %08x: got (%d,%d,%d), want (%d,%d,%d)",
				c.word, x, y, z, c.x, c.y, c.z)
		}
	}
}

func TestReadRawXYZ16(t *testing.T) {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:], 256)
	binary.LittleEndian.PutUint16(buf[2:], 0xFF00) // -256
	binary.LittleEndian.PutUint16(buf[4:], 0x7FFF)
	x, y, z := ReadRawXYZ16(buf, 0)
	if x != 256 || y != -256 || z != 32767 {
		t.Errorf("got (%d,%d,%d), want (256,-256,32767)", x, y, z)
	}
}

// testDataSector builds a minimal AX sector with the given header fields.
func testDataSector(blockTime time.Time, rateCode, numAxesBPS uint8, deviceID, word26 uint16, sampleCount int) []byte {
	buf := make([]byte, cwa.SectorSize)
	copy(buf[0:2], cwa.TagData)
	binary.LittleEndian.PutUint16(buf[OffsetDeviceID:], deviceID)
	binary.LittleEndian.PutUint32(buf[OffsetBlockTimestamp:], EncodeCalendar(blockTime))
	binary.LittleEndian.PutUint16(buf[OffsetTemperature:], 270) // ~20 C
	buf[OffsetRateCode] = rateCode
	buf[OffsetNumAxesBPS] = numAxesBPS
	binary.LittleEndian.PutUint16(buf[OffsetTimestampOffset:], word26)
	binary.LittleEndian.PutUint16(buf[OffsetSampleCount:], uint16(sampleCount))
	return buf
}

var testBlockTime = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

func TestParseDataBlockModernLayout(t *testing.T) {
	// rate nibble 10 -> 100 Hz; no fractional flag, so word 26 is the
	// timestamp offset verbatim.
	buf := testDataSector(testBlockTime, 0x4A, 0x32, 0x0123, 40, 80)
	b, err := ParseDataBlock(buf)
	if err != nil {
		t.Fatalf("ParseDataBlock: %v", err)
	}
	if b.Freq != 100 {
		t.Errorf("Freq = %v, want 100", b.Freq)
	}
	if b.TimestampOffset != 40 {
		t.Errorf("TimestampOffset = %d, want 40", b.TimestampOffset)
	}
	if b.Fractional != 0 {
		t.Errorf("Fractional = %d, want 0", b.Fractional)
	}
	if b.Encoding != EncodingRaw16 || b.BytesPerSample != 6 {
		t.Errorf("encoding = %v/%d, want raw16/6", b.Encoding, b.BytesPerSample)
	}
	if b.SampleCount != 80 {
		t.Errorf("SampleCount = %d, want 80", b.SampleCount)
	}
	if !b.Time.Equal(testBlockTime) {
		t.Errorf("Time = %v, want %v", b.Time, testBlockTime)
	}
	if b.TemperatureC < 19.9 || b.TemperatureC > 20.1 {
		t.Errorf("TemperatureC = %v, want ~20", b.TemperatureC)
	}
}

func TestParseDataBlockFractionalShim(t *testing.T) {
	// Fractional flag set with 0x4000 in the low 15 bits: half a second.
	// The firmware shim reduced the offset by the number of whole samples
	// the fraction covers: (0x8000 * 100) >> 16 = 50 at 100 Hz, added back.
	buf := testDataSector(testBlockTime, 0x4A, 0x30, 0x8000|0x4000, 10, 80)
	b, err := ParseDataBlock(buf)
	if err != nil {
		t.Fatalf("ParseDataBlock: %v", err)
	}
	if b.Fractional != 0x8000 {
		t.Errorf("Fractional = %#x, want 0x8000", b.Fractional)
	}
	if b.TimestampOffset != 60 {
		t.Errorf("TimestampOffset = %d, want 60", b.TimestampOffset)
	}
	wantTime := testBlockTime.Add(500 * time.Millisecond)
	if !b.Time.Equal(wantTime) {
		t.Errorf("Time = %v, want %v", b.Time, wantTime)
	}
	if b.Encoding != EncodingPacked || b.BytesPerSample != 4 {
		t.Errorf("encoding = %v/%d, want packed/4", b.Encoding, b.BytesPerSample)
	}
}

func TestParseDataBlockLegacyLayout(t *testing.T) {
	// Zero rate code: word 26 is the frequency and no offset exists.
	buf := testDataSector(testBlockTime, 0, 0x32, 0, 100, 40)
	b, err := ParseDataBlock(buf)
	if err != nil {
		t.Fatalf("ParseDataBlock: %v", err)
	}
	if b.Freq != 100 {
		t.Errorf("Freq = %v, want 100", b.Freq)
	}
	if b.TimestampOffset != 0 {
		t.Errorf("TimestampOffset = %d, want 0", b.TimestampOffset)
	}
}

func TestParseDataBlockClamps(t *testing.T) {
	// Sample count beyond the payload capacity clamps to 480/6 = 80.
	buf := testDataSector(testBlockTime, 0x4A, 0x32, 0, 0, 500)
	b, err := ParseDataBlock(buf)
	if err != nil {
		t.Fatalf("ParseDataBlock: %v", err)
	}
	if b.SampleCount != 80 {
		t.Errorf("SampleCount = %d, want 80", b.SampleCount)
	}

	// Non-positive legacy frequency clamps to 1.
	buf = testDataSector(testBlockTime, 0, 0x32, 0, 0, 40)
	b, err = ParseDataBlock(buf)
	if err != nil {
		t.Fatalf("ParseDataBlock: %v", err)
	}
	if b.Freq != 1 {
		t.Errorf("Freq = %v, want 1", b.Freq)
	}
}

func TestParseDataBlockUnknownEncoding(t *testing.T) {
	buf := testDataSector(testBlockTime, 0x4A, 0x31, 0, 0, 80)
	b, err := ParseDataBlock(buf)
	if err != nil {
		t.Fatalf("ParseDataBlock: %v", err)
	}
	if b.Encoding != EncodingUnknown {
		t.Errorf("Encoding = %v, want unknown", b.Encoding)
	}
	x, y, z, err := b.RawSample(0)
	if err != nil || x != 0 || y != 0 || z != 0 {
		t.Errorf("RawSample = (%d,%d,%d,%v), want zeros", x, y, z, err)
	}
}

func TestParseDataBlockErrors(t *testing.T) {
	if _, err := ParseDataBlock(make([]byte, 100)); !errors.Is(err, cwa.ErrBlockCorrupt) {
		t.Errorf("short sector: err = %v, want ErrBlockCorrupt", err)
	}

	buf := testDataSector(testBlockTime, 0x4A, 0x32, 0, 0, 80)
	copy(buf[0:2], "ZZ")
	if _, err := ParseDataBlock(buf); !errors.Is(err, cwa.ErrBlockCorrupt) {
		t.Errorf("bad tag: err = %v, want ErrBlockCorrupt", err)
	}

	buf = testDataSector(testBlockTime, 0x4A, 0x32, 0, 0, 80)
	binary.LittleEndian.PutUint32(buf[OffsetBlockTimestamp:], 0) // month 0
	if _, err := ParseDataBlock(buf); !errors.Is(err, cwa.ErrInvalidTimestamp) {
		t.Errorf("bad timestamp: err = %v, want ErrInvalidTimestamp", err)
	}
}

func TestRawSampleDecodesPayload(t *testing.T) {
	buf := testDataSector(testBlockTime, 0x4A, 0x32, 0, 0, 2)
	binary.LittleEndian.PutUint16(buf[PayloadOffset:], 256)
	binary.LittleEndian.PutUint16(buf[PayloadOffset+2:], 0)
	binary.LittleEndian.PutUint16(buf[PayloadOffset+4:], 0xFF00)
	binary.LittleEndian.PutUint16(buf[PayloadOffset+6:], 512)

	b, err := ParseDataBlock(buf)
	if err != nil {
		t.Fatalf("ParseDataBlock: %v", err)
	}
	x, y, z, err := b.RawSample(0)
	if err != nil {
		t.Fatalf("RawSample(0): %v", err)
	}
	if x != 256 || y != 0 || z != -256 {
		t.Errorf("sample 0 = (%d,%d,%d), want (256,0,-256)", x, y, z)
	}
	x, _, _, err = b.RawSample(1)
	if err != nil || x != 512 {
		t.Errorf("sample 1 x = %d (%v), want 512", x, err)
	}
	if _, _, _, err := b.RawSample(80); !errors.Is(err, cwa.ErrBlockCorrupt) {
		t.Errorf("out of range sample: err = %v, want ErrBlockCorrupt", err)
	}
}

func TestParseHeaderStart(t *testing.T) {
	buf := make([]byte, cwa.SectorSize)
	copy(buf[0:2], cwa.TagHeader)
	binary.LittleEndian.PutUint32(buf[OffsetHeaderStartTime:], EncodeCalendar(testBlockTime))
	got, err := ParseHeaderStart(buf)
	if err != nil {
		t.Fatalf("ParseHeaderStart: %v", err)
	}
	if !got.Equal(testBlockTime) {
		t.Errorf("start = %v, want %v", got, testBlockTime)
	}

	binary.LittleEndian.PutUint32(buf[OffsetHeaderStartTime:], 0)
	if _, err := ParseHeaderStart(buf); !errors.Is(err, cwa.ErrInvalidTimestamp) {
		t.Errorf("unset start: err = %v, want ErrInvalidTimestamp", err)
	}
}
