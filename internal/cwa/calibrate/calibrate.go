// Package calibrate applies per-axis affine and linear temperature
// correction to raw g readings and accounts for sensor clipping.
package calibrate

import "github.com/artvalencio/biobankAccelerometerAnalysis/internal/config"

// Calibration is a per-device affine correction: for each axis a,
// a' = intercept + slope*a + tempCoef*(temperature - meanTemp).
// Range is the sensor's full-scale limit in g.
type Calibration struct {
	Intercept [3]float64
	Slope     [3]float64
	TempCoef  [3]float64
	MeanTemp  float64
	Range     float64
}

// Identity returns a unit calibration with the default 8 g range.
func Identity() Calibration {
	return Calibration{Slope: [3]float64{1, 1, 1}, Range: 8}
}

// FromConfig builds a Calibration from a loaded configuration file.
func FromConfig(cfg *config.CalibrationConfig) Calibration {
	return Calibration{
		Intercept: cfg.GetIntercepts(),
		Slope:     cfg.GetSlopes(),
		TempCoef:  cfg.GetTempCoefs(),
		MeanTemp:  cfg.GetMeanTemp(),
		Range:     cfg.GetRange(),
	}
}

// ClipCounters accumulates clip events across the samples of an epoch.
type ClipCounters struct {
	Before int // readings at or beyond range before calibration
	After  int // readings pushed past range by calibration
}

// Reset zeroes both counters, as at an epoch boundary.
func (c *ClipCounters) Reset() {
	c.Before = 0
	c.After = 0
}

// Apply corrects one sample at the given block temperature and saturates
// the result back into range.
//
// A reading at or past the limit on any axis counts as pre-calibration
// clipping (at the limit is clipped: the sensor cannot report beyond it).
// If calibration pushes any axis across the limit on a sample that was not
// already clipped, that counts once as post-calibration clipping. Saturation
// preserves polarity: a pre-clipped axis is pinned to the limit on the side
// of its calibrated sign, so a slope below one cannot flip a positive
// full-scale reading onto the negative rail.
func (c Calibration) Apply(x, y, z, temperatureC float64, clips *ClipCounters) (cx, cy, cz float64) {
	isClipped := x <= -c.Range || x >= c.Range ||
		y <= -c.Range || y >= c.Range ||
		z <= -c.Range || z >= c.Range
	if isClipped {
		clips.Before++
	}

	mcTemp := temperatureC - c.MeanTemp
	cx = c.Intercept[0] + x*c.Slope[0] + mcTemp*c.TempCoef[0]
	cy = c.Intercept[1] + y*c.Slope[1] + mcTemp*c.TempCoef[1]
	cz = c.Intercept[2] + z*c.Slope[2] + mcTemp*c.TempCoef[2]

	// Crossing the limit needs strict comparison: equality here is a value
	// dragged exactly onto the rail, not a new clip.
	if cx < -c.Range || cx > c.Range || cy < -c.Range || cy > c.Range ||
		cz < -c.Range || cz > c.Range {
		if !isClipped {
			clips.After++
		}
		cx = saturate(cx, c.Range, isClipped)
		cy = saturate(cy, c.Range, isClipped)
		cz = saturate(cz, c.Range, isClipped)
	}
	return cx, cy, cz
}

func saturate(v, limit float64, preClipped bool) float64 {
	switch {
	case v < -limit, preClipped && v < 0:
		return -limit
	case v > limit, preClipped && v > 0:
		return limit
	}
	return v
}
