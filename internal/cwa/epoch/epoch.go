// Package epoch accumulates calibrated samples into fixed-duration windows
// and emits one summary row per window: per-axis range and standard
// deviation, a truncated vector-magnitude activity metric, temperature, and
// quality counters. It recovers from data gaps by skipping the windows in
// which no data arrived.
package epoch

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/calibrate"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/lowpass"
)

// stuckVal is the absolute per-axis mean beyond which a zero-variance epoch
// counts as a stuck sensor.
const stuckVal = 1.5

// clampLimit bounds how far the epoch timeline may be shifted to meet the
// header's planned logging start time.
const clampLimit = 15 * time.Second

// Row is one emitted epoch summary.
type Row struct {
	Time                   time.Time
	EnmoTrunc              float64
	XMean, YMean, ZMean    float64
	XRange, YRange, ZRange float64
	XStd, YStd, ZStd       float64
	TemperatureC           float64
	Samples                int // resampled grid length
	DataErrors             int
	ClipsBefore            int
	ClipsAfter             int
	RawSamples             int // buffered samples before resampling
}

// Config controls epoch aggregation.
type Config struct {
	// Period is the epoch duration in seconds.
	Period int
	// StationaryBouts suppresses non-stationary epochs and adds the
	// per-axis mean columns; callers normally force Period to 10 with it.
	StationaryBouts bool
	// StationaryStd is the per-axis std threshold for stationary epochs.
	StationaryStd float64
	// Filter smooths the vector-magnitude series; nil disables the stage.
	Filter lowpass.Filter
	// WholeSecond / WholeMinute snap the first epoch start down to the
	// requested boundary before the session clamp is evaluated.
	WholeSecond bool
	WholeMinute bool
}

// Aggregator is the rolling epoch buffer. It is owned by the stream
// orchestrator and must not be shared across decodes.
type Aggregator struct {
	cfg     Config
	session cwa.SessionContext
	emit    func(Row) error

	started     bool
	epochStart  time.Time
	startOffset time.Duration

	timeMillis []int64
	xs, ys, zs []float64

	// Errors counts decode failures and stuck-sensor detections for the
	// current epoch; Clips counts calibration clipping. Both reset at
	// every emission.
	Errors int
	Clips  calibrate.ClipCounters

	blockTemp float64
	blockFreq float64
}

// NewAggregator returns an Aggregator that calls emit for every completed
// epoch row.
func NewAggregator(cfg Config, emit func(Row) error) *Aggregator {
	if cfg.Period <= 0 {
		cfg.Period = 5
	}
	return &Aggregator{cfg: cfg, emit: emit, blockFreq: 100}
}

// SetSession installs the header sector's session context. It must be set
// before the first sample for the start clamp to take effect.
func (a *Aggregator) SetSession(s cwa.SessionContext) {
	a.session = s
}

// SetBlockContext records the current block's temperature and sample rate.
// The rate sizes the resampling grid; the temperature fills the temp column
// of rows flushed while this block is being consumed.
func (a *Aggregator) SetBlockContext(temperatureC, freq float64) {
	a.blockTemp = temperatureC
	a.blockFreq = freq
}

// AddError charges n decode errors to the current epoch.
func (a *Aggregator) AddError(n int) {
	a.Errors += n
}

// EpochStart returns the start of the currently accumulating window and
// whether a window is open yet.
func (a *Aggregator) EpochStart() (time.Time, bool) {
	return a.epochStart, a.started
}

// Add feeds one calibrated sample. Epoch boundaries and gaps are detected
// here; completed windows are emitted through the configured callback
// before the sample is buffered into its own window.
func (a *Aggregator) Add(t time.Time, x, y, z float64) error {
	if !a.started {
		a.start(t)
	}

	currentPeriod := int(t.Sub(a.epochStart) / time.Second)

	// A sample two or more epochs past the window start marks a recording
	// gap: close out the
	// window that has data, then jump the timeline past the silence. The
	// skipped windows emit nothing because nothing was recorded in them.
	if currentPeriod >= 2*a.cfg.Period {
		if len(a.timeMillis) > 0 {
			if err := a.flush(); err != nil {
				return err
			}
		}
		skip := currentPeriod / a.cfg.Period * a.cfg.Period
		a.epochStart = a.epochStart.Add(time.Duration(skip) * time.Second)
		currentPeriod = int(t.Sub(a.epochStart) / time.Second)
	}

	if currentPeriod >= a.cfg.Period {
		if err := a.flush(); err != nil {
			return err
		}
		a.epochStart = a.epochStart.Add(time.Duration(a.cfg.Period) * time.Second)
	}

	a.timeMillis = append(a.timeMillis, t.Sub(a.epochStart).Milliseconds())
	a.xs = append(a.xs, x)
	a.ys = append(a.ys, y)
	a.zs = append(a.zs, z)
	return nil
}

// Flush force-emits the pending window regardless of coverage and advances
// the timeline by one period. It is a no-op when nothing is buffered.
func (a *Aggregator) Flush() error {
	if len(a.timeMillis) == 0 {
		return nil
	}
	if err := a.flush(); err != nil {
		return err
	}
	a.epochStart = a.epochStart.Add(time.Duration(a.cfg.Period) * time.Second)
	return nil
}

// Finalize closes the stream. The pending window is emitted only when its
// buffered samples span at least half the epoch period; a shorter tail is
// discarded the same way a partial leading window would never have formed.
func (a *Aggregator) Finalize() error {
	if len(a.timeMillis) == 0 {
		return nil
	}
	span := a.timeMillis[len(a.timeMillis)-1] - a.timeMillis[0]
	if span < int64(a.cfg.Period)*1000/2 {
		a.clear()
		return nil
	}
	return a.Flush()
}

func (a *Aggregator) start(t time.Time) {
	a.started = true
	a.epochStart = t
	if a.cfg.WholeMinute {
		a.epochStart = a.epochStart.Truncate(time.Minute)
	} else if a.cfg.WholeSecond {
		a.epochStart = a.epochStart.Truncate(time.Second)
	}
	// Clamp the whole session to the intended logging start when the
	// header carries one and the first sample lands close enough to it.
	if a.session.HasStart {
		offset := a.session.Start.Sub(a.epochStart)
		if offset >= -clampLimit && offset <= clampLimit {
			a.startOffset = offset
		}
	}
}

// flush resamples the buffer onto the nominal-rate grid, computes the
// summary row, emits it, and clears the buffer. The caller advances
// epochStart.
func (a *Aggregator) flush() error {
	n := a.cfg.Period * int(a.blockFreq)
	if n < 1 {
		n = 1
	}
	grid := make([]float64, n)
	t0 := float64(a.timeMillis[0])
	step := 1000.0 / a.blockFreq
	for i := range grid {
		grid[i] = t0 + float64(i)*step
	}

	xr := resample(a.timeMillis, a.xs, grid)
	yr := resample(a.timeMillis, a.ys, grid)
	zr := resample(a.timeMillis, a.zs, grid)

	row := Row{
		Time:         a.epochStart.Add(a.startOffset),
		XMean:        meanOf(xr),
		YMean:        meanOf(yr),
		ZMean:        meanOf(zr),
		XRange:       rangeOf(xr),
		YRange:       rangeOf(yr),
		ZRange:       rangeOf(zr),
		TemperatureC: a.blockTemp,
		Samples:      n,
		ClipsBefore:  a.Clips.Before,
		ClipsAfter:   a.Clips.After,
		RawSamples:   len(a.timeMillis),
	}
	row.XStd = stdOf(xr, row.XMean)
	row.YStd = stdOf(yr, row.YMean)
	row.ZStd = stdOf(zr, row.ZMean)

	// A zero-variance epoch far from rest means the sensor value was stuck.
	for _, axis := range []struct{ std, mean float64 }{
		{row.XStd, row.XMean}, {row.YStd, row.YMean}, {row.ZStd, row.ZMean},
	} {
		if axis.std == 0 && (axis.mean < -stuckVal || axis.mean > stuckVal) {
			a.Errors++
		}
	}
	row.DataErrors = a.Errors

	if !a.cfg.StationaryBouts {
		row.EnmoTrunc = a.enmo(xr, yr, zr)
	}

	write := !a.cfg.StationaryBouts ||
		(row.XStd < a.cfg.StationaryStd && row.YStd < a.cfg.StationaryStd && row.ZStd < a.cfg.StationaryStd)

	a.clear()

	if !write {
		return nil
	}
	return a.emit(row)
}

// enmo computes the truncated Euclidean-norm-minus-one activity metric over
// the resampled grid: filter the vm-1 series, clamp negatives to zero, and
// average.
func (a *Aggregator) enmo(xr, yr, zr []float64) float64 {
	paVals := make([]float64, 0, len(xr))
	for i := range xr {
		if math.IsNaN(xr[i]) {
			continue
		}
		vm := math.Sqrt(xr[i]*xr[i] + yr[i]*yr[i] + zr[i]*zr[i])
		paVals = append(paVals, vm-1)
	}
	if a.cfg.Filter != nil {
		a.cfg.Filter.Filter(paVals)
	}
	for i, v := range paVals {
		if v < 0 {
			paVals[i] = 0
		}
	}
	if len(paVals) == 0 {
		return math.NaN()
	}
	return stat.Mean(paVals, nil)
}

func (a *Aggregator) clear() {
	a.timeMillis = a.timeMillis[:0]
	a.xs = a.xs[:0]
	a.ys = a.ys[:0]
	a.zs = a.zs[:0]
	a.Errors = 0
	a.Clips.Reset()
}
