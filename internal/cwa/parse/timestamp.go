package parse

import (
	"fmt"
	"time"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa"
)

// Packed calendar timestamp layout (32 bits, MSB first):
// year-2000 (6) | month (4) | day (5) | hour (5) | minute (6) | second (6).
// Device clocks have no zone; decoded instants are naive calendar times and
// use UTC purely as a placeholder location.

// DecodeCalendar unpacks a CWA calendar word into an instant. It returns
// cwa.ErrInvalidTimestamp when the fields do not form a valid date.
func DecodeCalendar(word uint32) (time.Time, error) {
	year := int((word>>26)&0x3f) + 2000
	month := int((word >> 22) & 0x0f)
	day := int((word >> 17) & 0x1f)
	hour := int((word >> 12) & 0x1f)
	minute := int((word >> 6) & 0x3f)
	second := int(word & 0x3f)

	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d %02d:%02d:%02d",
			cwa.ErrInvalidTimestamp, year, month, day, hour, minute, second)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalises out-of-range days (e.g. Apr 31 -> May 1); a
	// shifted month means the day field was invalid for that month.
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, fmt.Errorf("%w: day %d out of range for month %d",
			cwa.ErrInvalidTimestamp, day, month)
	}
	return t, nil
}

// EncodeCalendar packs an instant into the CWA calendar layout. Sub-second
// precision is discarded; years outside 2000-2063 wrap in the 6-bit field.
func EncodeCalendar(t time.Time) uint32 {
	return (uint32(t.Year()-2000)&0x3f)<<26 |
		(uint32(t.Month())&0x0f)<<22 |
		(uint32(t.Day())&0x1f)<<17 |
		(uint32(t.Hour())&0x1f)<<12 |
		(uint32(t.Minute())&0x3f)<<6 |
		uint32(t.Second())&0x3f
}

// WithFractional adds a 16-bit fractional-second count (1/65536 s units) to
// an instant, truncated toward zero at nanosecond resolution.
func WithFractional(t time.Time, frac uint16) time.Time {
	return t.Add(time.Duration(SecondsToNanos(float64(frac) / 65536.0)))
}

// SecondsToNanos converts seconds to nanoseconds, truncating toward zero.
func SecondsToNanos(s float64) int64 {
	return int64(s * float64(time.Second))
}
