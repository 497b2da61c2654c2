// Package lowpass implements the Butterworth low-pass stage applied to the
// per-epoch vector-magnitude series before truncation.
package lowpass

import "math"

// Filter smooths a sequence in place.
type Filter interface {
	Filter(vals []float64)
}

// Butterworth is a second-order Butterworth low-pass biquad with
// coefficients fixed at construction.
type Butterworth struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// New builds a Butterworth low-pass with the given cutoff and sample rate
// in Hz. The epoch pipeline uses a 20 Hz cutoff at the nominal 100 Hz rate.
func New(cutoffHz, sampleRateHz float64) *Butterworth {
	w0 := 2 * math.Pi * cutoffHz / sampleRateHz
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / math.Sqrt2

	a0 := 1 + alpha
	return &Butterworth{
		b0: (1 - cosW0) / 2 / a0,
		b1: (1 - cosW0) / a0,
		b2: (1 - cosW0) / 2 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
}

// Filter runs a single forward pass over vals in place. State starts at the
// first value so a constant input passes through unchanged.
func (f *Butterworth) Filter(vals []float64) {
	if len(vals) == 0 {
		return
	}
	x1, x2 := vals[0], vals[0]
	y1, y2 := vals[0], vals[0]
	for i, x := range vals {
		y := f.b0*x + f.b1*x1 + f.b2*x2 - f.a1*y1 - f.a2*y2
		x2, x1 = x1, x
		y2, y1 = y1, y
		vals[i] = y
	}
}
