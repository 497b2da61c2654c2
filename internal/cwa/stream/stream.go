// Package stream drives the CWA decode: it walks a recording as a sequence
// of 512-byte sectors, dispatches the header and data sectors, threads the
// time-reconstruction and epoch state across blocks, and finalizes the last
// window at end of stream. Per-block failures are logged and skipped;
// only I/O failures abort.
package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/calibrate"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/epoch"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/lowpass"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/parse"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/timealign"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/monitoring"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/timeutil"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/units"
)

// nominal low-pass parameters for the activity metric stage.
const (
	lowPassCutHz  = 20
	nominalRateHz = 100
	progressEvery = 10000 // sectors between progress lines
)

// Options configures one decode run.
type Options struct {
	EpochPeriod     int
	TimeLayout      string
	Filter          bool // low-pass the vector-magnitude series
	StationaryBouts bool
	StationaryStd   float64
	WholeSecond     bool
	WholeMinute     bool
	Calibration     calibrate.Calibration
	// PreciseTime interpolates sample times between block anchors; off, every
	// block falls back to the rate-based estimate.
	PreciseTime bool
	Clock       timeutil.Clock
}

// DefaultOptions returns the options a plain conversion uses.
func DefaultOptions() Options {
	return Options{
		EpochPeriod:   5,
		TimeLayout:    epoch.DefaultTimeLayout,
		Filter:        true,
		StationaryStd: 0.013,
		Calibration:   calibrate.Identity(),
		PreciseTime:   true,
		Clock:         timeutil.RealClock{},
	}
}

// RowSink receives every emitted epoch row after it is written to the CSV.
type RowSink func(epoch.Row) error

// Summary reports what a run consumed and produced.
type Summary struct {
	Sectors    int
	DataBlocks int
	BadBlocks  int
	Rows       int
}

// decoder owns all mutable per-run state: the block anchor, the epoch
// buffers, and the counters. One decoder per stream; never shared.
type decoder struct {
	cal   calibrate.Calibration
	recon *timealign.Reconstructor
	agg   *epoch.Aggregator
	csvw  *epoch.CSVWriter
}

// Process reads sectors from r until EOF and writes the epoch CSV to out.
// totalSize, when known, drives percent progress reporting; pass 0 for
// streams of unknown length. Extra sinks observe every emitted row.
func Process(r io.Reader, out io.Writer, totalSize int64, opts Options, sinks ...RowSink) (Summary, error) {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.StationaryBouts {
		// Stationary-bout extraction always runs on 10-second windows.
		opts.EpochPeriod = 10
	}

	var summary Summary
	d := &decoder{
		cal:   opts.Calibration,
		recon: timealign.New(opts.PreciseTime),
		csvw:  epoch.NewCSVWriter(out, opts.TimeLayout, opts.StationaryBouts),
	}

	var filter lowpass.Filter
	if opts.Filter {
		filter = lowpass.New(lowPassCutHz, nominalRateHz)
	}
	d.agg = epoch.NewAggregator(epoch.Config{
		Period:          opts.EpochPeriod,
		StationaryBouts: opts.StationaryBouts,
		StationaryStd:   opts.StationaryStd,
		Filter:          filter,
		WholeSecond:     opts.WholeSecond,
		WholeMinute:     opts.WholeMinute,
	}, func(row epoch.Row) error {
		if err := d.csvw.WriteRow(row); err != nil {
			return fmt.Errorf("write epoch row: %w", err)
		}
		summary.Rows++
		for _, sink := range sinks {
			if err := sink(row); err != nil {
				return err
			}
		}
		return nil
	})

	started := opts.Clock.Now()
	totalSectors := totalSize / cwa.SectorSize
	buf := make([]byte, cwa.SectorSize)

	for {
		_, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("read sector %d: %w", summary.Sectors, err)
		}
		summary.Sectors++

		switch string(buf[0:2]) {
		case cwa.TagHeader:
			if start, err := parse.ParseHeaderStart(buf); err != nil {
				monitoring.Logf("no preset start time: %v", err)
			} else {
				d.agg.SetSession(cwa.SessionContext{Start: start, HasStart: true})
			}
			if err := d.csvw.WriteHeader(); err != nil {
				return summary, fmt.Errorf("write epoch header: %w", err)
			}
		case cwa.TagData:
			summary.DataBlocks++
			if err := d.processDataBlock(buf); err != nil {
				// Decode errors abandon the sector and continue; anything
				// else (a failing writer or sink) is fatal.
				if !errors.Is(err, cwa.ErrBlockCorrupt) && !errors.Is(err, cwa.ErrInvalidTimestamp) {
					return summary, err
				}
				summary.BadBlocks++
				monitoring.Logf("block error at sector %d: %v", summary.Sectors-1, err)
			}
		default:
			// Unknown sector kinds are skipped silently.
		}

		if totalSectors > 0 && summary.Sectors%progressEvery == 0 {
			monitoring.Progressf("%d%%", int64(summary.Sectors)*100/totalSectors)
		}
	}

	if err := d.agg.Finalize(); err != nil {
		return summary, err
	}
	monitoring.Progressf("processed %d sectors (%d data blocks, %d bad) in %s",
		summary.Sectors, summary.DataBlocks, summary.BadBlocks, opts.Clock.Since(started))
	return summary, nil
}

// processDataBlock parses one AX sector and feeds its samples through
// calibration into the aggregator. On a parse error the anchor state is
// left exactly as it was so the next good block reconstructs cleanly.
func (d *decoder) processDataBlock(buf []byte) error {
	b, err := parse.ParseDataBlock(buf)
	if err != nil {
		return err
	}

	first, last := d.recon.BlockSpan(b)
	d.agg.SetBlockContext(b.TemperatureC, b.Freq)
	if b.Encoding == parse.EncodingUnknown {
		// Samples of an unrecognized layout decode as zero; each one is a
		// data error.
		d.agg.AddError(b.SampleCount)
	}

	for i := 0; i < b.SampleCount; i++ {
		xRaw, yRaw, zRaw, err := b.RawSample(i)
		if err != nil {
			// The rest of the payload is suspect; abandon the block but keep
			// what was already aggregated.
			d.agg.AddError(1)
			return err
		}
		t := timealign.SampleTime(first, last, i, b.SampleCount)
		x, y, z := d.cal.Apply(
			units.RawToG(xRaw), units.RawToG(yRaw), units.RawToG(zRaw),
			b.TemperatureC, &d.agg.Clips)
		if err := d.agg.Add(t, x, y, z); err != nil {
			return err
		}
	}
	return nil
}
