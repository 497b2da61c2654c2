package epoch

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// The summary statistics skip NaN points (resampled grid positions outside
// the buffered data) but divide by the full grid length, so sparse epochs
// read as attenuated rather than inflated. That denominator rules out
// stat.Mean, which propagates NaN instead of skipping it.

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum / float64(len(vals))
}

func rangeOf(vals []float64) float64 {
	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	return floats.Max(finite) - floats.Min(finite)
}

func stdOf(vals []float64, mean float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	variance := 0.0
	n := float64(len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			variance += (v - mean) * (v - mean) / n
		}
	}
	return math.Sqrt(variance)
}

// resample linearly interpolates vals (sampled at times, in ms) onto grid.
// Grid points outside the buffered span come back NaN rather than being
// extrapolated. Duplicate buffer times (possible above 1 kHz, where the
// millisecond clock cannot separate samples) keep the first occurrence.
func resample(times []int64, vals []float64, grid []float64) []float64 {
	xs := make([]float64, 0, len(times))
	ys := make([]float64, 0, len(times))
	for i, t := range times {
		ft := float64(t)
		if len(xs) > 0 && ft <= xs[len(xs)-1] {
			continue
		}
		xs = append(xs, ft)
		ys = append(ys, vals[i])
	}

	out := make([]float64, len(grid))
	switch len(xs) {
	case 0:
		for i := range out {
			out[i] = math.NaN()
		}
	case 1:
		for i, g := range grid {
			if g == xs[0] {
				out[i] = ys[0]
			} else {
				out[i] = math.NaN()
			}
		}
	default:
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err != nil {
			for i := range out {
				out[i] = math.NaN()
			}
			return out
		}
		for i, g := range grid {
			if g < xs[0] || g > xs[len(xs)-1] {
				out[i] = math.NaN()
			} else {
				out[i] = pl.Predict(g)
			}
		}
	}
	return out
}
