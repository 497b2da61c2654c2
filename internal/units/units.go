// Package units provides shared constants and conversions for raw AX3
// sensor words
package units

// CountsPerG is the number of raw accelerometer counts per g after the
// packed exponent has been applied.
const CountsPerG = 256.0

// RawToG converts a decoded axis integer to g units.
func RawToG(raw int16) float64 {
	return float64(raw) / CountsPerG
}

// RawTemperatureToCelsius converts the raw 10-bit temperature ADC word of a
// data sector to degrees Celsius.
func RawTemperatureToCelsius(raw uint16) float64 {
	return (float64(raw)*150.0 - 20500) / 1000
}

// SampleRateForCode returns the sample frequency in Hz encoded by a data
// sector's rate code. A zero rate code marks the legacy sector layout where
// the frequency is stored verbatim elsewhere; this returns 0 for it.
func SampleRateForCode(rateCode uint8) float64 {
	if rateCode == 0 {
		return 0
	}
	return 3200.0 / float64(int(1)<<(15-(rateCode&15)))
}
