package calibrate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/config"
)

func TestIdentityPassesThrough(t *testing.T) {
	cal := Identity()
	var clips ClipCounters
	x, y, z := cal.Apply(0.5, -0.25, 1, 20, &clips)
	assert.Equal(t, 0.5, x)
	assert.Equal(t, -0.25, y)
	assert.Equal(t, 1.0, z)
	assert.Zero(t, clips.Before)
	assert.Zero(t, clips.After)
}

func TestAffineAndTemperature(t *testing.T) {
	cal := Calibration{
		Intercept: [3]float64{0.1, 0, 0},
		Slope:     [3]float64{1.02, 1, 1},
		TempCoef:  [3]float64{0.002, 0, 0},
		MeanTemp:  20,
		Range:     8,
	}
	var clips ClipCounters
	x, _, _ := cal.Apply(1, 0, 0, 25, &clips)
	// 0.1 + 1*1.02 + 5*0.002
	assert.InDelta(t, 1.13, x, 1e-12)
}

func TestPreCalibrationClipAtRange(t *testing.T) {
	cal := Identity()
	var clips ClipCounters
	// Exactly at full scale counts as clipped: the sensor cannot go past it.
	cal.Apply(8, 0, 0, 20, &clips)
	assert.Equal(t, 1, clips.Before)
	assert.Equal(t, 0, clips.After)
}

func TestPostCalibrationClipCountsOnce(t *testing.T) {
	cal := Identity()
	cal.Slope = [3]float64{2, 1, 1}
	var clips ClipCounters
	x, _, _ := cal.Apply(5, 0, 0, 20, &clips)
	assert.Equal(t, 0, clips.Before)
	assert.Equal(t, 1, clips.After)
	assert.Equal(t, 8.0, x, "dragged back to the range limit")
}

func TestSaturationPreservesPolarity(t *testing.T) {
	// A positive full-scale reading whose calibration lands negative must
	// pin to -range, not +range. The y axis crossing the limit triggers
	// the saturation pass for the whole sample.
	cal := Calibration{
		Intercept: [3]float64{-10, 0, 0},
		Slope:     [3]float64{0.5, 2, 1},
		Range:     8,
	}
	var clips ClipCounters
	x, y, _ := cal.Apply(8, 5, 0, 0, &clips)
	assert.Equal(t, -8.0, x, "pre-clipped and negative after calibration")
	assert.Equal(t, 8.0, y)
	assert.Equal(t, 1, clips.Before)
	assert.Equal(t, 0, clips.After, "pre-clipped samples do not count again")

	// Symmetric case: negative full-scale landing positive pins to +range.
	cal = Calibration{
		Intercept: [3]float64{10, 0, 0},
		Slope:     [3]float64{0.5, 2, 1},
		Range:     8,
	}
	clips = ClipCounters{}
	x, _, _ = cal.Apply(-8, 5, 0, 0, &clips)
	assert.Equal(t, 8.0, x)
}

func TestInRangeAfterCalibrationNotSaturated(t *testing.T) {
	// Pre-clipped but every calibrated axis stays inside range: values pass
	// through untouched.
	cal := Identity()
	cal.Slope = [3]float64{0.5, 1, 1}
	var clips ClipCounters
	x, _, _ := cal.Apply(8, 0, 0, 20, &clips)
	assert.Equal(t, 4.0, x)
	assert.Equal(t, 1, clips.Before)
}

func TestClipCountersReset(t *testing.T) {
	c := ClipCounters{Before: 3, After: 1}
	c.Reset()
	assert.Zero(t, c.Before)
	assert.Zero(t, c.After)
}

func TestFromConfig(t *testing.T) {
	cfg := config.EmptyCalibrationConfig()
	cal := FromConfig(cfg)
	assert.Equal(t, Identity(), cal, "empty config is the identity calibration")
}
