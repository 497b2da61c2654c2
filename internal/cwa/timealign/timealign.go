// Package timealign reconstructs per-sample times across data blocks.
//
// Each block's TimestampOffset names the index, within the block's FIFO
// stream, of the sample whose time equals the block timestamp. Two such
// anchor pairs from consecutive blocks define the exact inter-sample period
// without accumulating rounding error; when no usable anchor exists the
// times fall back to a rate-based estimate around the block timestamp.
package timealign

import (
	"time"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/parse"
)

// Reconstructor carries the previous block's anchor across blocks. The
// zero value has no anchor; use New.
type Reconstructor struct {
	precise     bool
	hasAnchor   bool
	anchorTime  time.Time
	anchorIndex int
}

// New returns a Reconstructor. With precise disabled every block uses the
// rate-based fallback, emulating the pre-fractional-timestamp behaviour.
func New(precise bool) *Reconstructor {
	return &Reconstructor{precise: precise}
}

// BlockSpan computes the first and last sample times for a parsed block and
// advances the anchor. The last time is where the first sample of the next
// block would fall, so spans tile without gaps.
//
// The anchor is used only when all of: precise mode, an anchor exists, the
// block's timestamp offset is past the anchor index, and the span from the
// anchor to the block timestamp is positive and no longer than two full
// blocks at the block's rate. Otherwise the offset and rate estimate the
// span directly.
func (r *Reconstructor) BlockSpan(b *parse.DataBlock) (first, last time.Time) {
	var spanToSample int64
	if r.hasAnchor {
		spanToSample = b.Time.Sub(r.anchorTime).Nanoseconds()
	}
	maxSamples := parse.MaxSamples(b.BytesPerSample)

	if !r.precise || !r.hasAnchor || int(b.TimestampOffset) <= r.anchorIndex ||
		spanToSample <= 0 ||
		float64(spanToSample) > 1e9*2*float64(maxSamples)/b.Freq {
		offsetStart := -float64(b.TimestampOffset) / b.Freq
		first = b.Time.Add(time.Duration(parse.SecondsToNanos(offsetStart)))
		last = first.Add(time.Duration(parse.SecondsToNanos(float64(b.SampleCount) / b.Freq)))
	} else {
		gap := float64(spanToSample) / float64(int(b.TimestampOffset)-r.anchorIndex)
		first = r.anchorTime.Add(time.Duration(int64(float64(-r.anchorIndex) * gap)))
		last = r.anchorTime.Add(time.Duration(int64(float64(-r.anchorIndex+b.SampleCount) * gap)))
	}

	r.anchorTime = b.Time
	r.anchorIndex = int(b.TimestampOffset) - b.SampleCount
	r.hasAnchor = true
	return first, last
}

// Reset discards the anchor, as after a skipped corrupt block run or when
// starting a new file.
func (r *Reconstructor) Reset() {
	r.hasAnchor = false
	r.anchorIndex = 0
	r.anchorTime = time.Time{}
}

// SampleTime places sample i of n on the block span without successive
// addition, so rounding error cannot accumulate along the block.
func SampleTime(first, last time.Time, i, n int) time.Time {
	if n <= 0 || i <= 0 {
		return first
	}
	spanNanos := last.Sub(first).Nanoseconds()
	return first.Add(time.Duration(int64(float64(i) * float64(spanNanos) / float64(n))))
}
