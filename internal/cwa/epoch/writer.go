package epoch

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// DefaultTimeLayout formats the Time column as the reference tooling does
// (yyyy-MM-dd HH:mm:ss.SSS).
const DefaultTimeLayout = "2006-01-02 15:04:05.000"

// CSVWriter emits epoch rows as CSV. Numeric columns use ceiling rounding:
// six fractional digits for the g-unit statistics, two for temperature.
type CSVWriter struct {
	w          io.Writer
	timeLayout string
	stationary bool
}

// NewCSVWriter returns a writer targeting w. stationary adds the per-axis
// mean columns used for calibration-candidate selection.
func NewCSVWriter(w io.Writer, timeLayout string, stationary bool) *CSVWriter {
	if timeLayout == "" {
		timeLayout = DefaultTimeLayout
	}
	return &CSVWriter{w: w, timeLayout: timeLayout, stationary: stationary}
}

// WriteHeader writes the column header row.
func (cw *CSVWriter) WriteHeader() error {
	var b strings.Builder
	b.WriteString("Time,enmoTrunc,")
	if cw.stationary {
		b.WriteString("xMean,yMean,zMean,")
	}
	b.WriteString("xRange,yRange,zRange,xStd,yStd,zStd,temp,samples,")
	b.WriteString("dataErrors,clipsBeforeCalibr,clipsAfterCalibr,rawSamples")
	_, err := fmt.Fprintln(cw.w, b.String())
	return err
}

// WriteRow writes one epoch summary row.
func (cw *CSVWriter) WriteRow(r Row) error {
	cols := make([]string, 0, 17)
	cols = append(cols, r.Time.Format(cw.timeLayout), formatCeil(r.EnmoTrunc, 6))
	if cw.stationary {
		cols = append(cols, formatCeil(r.XMean, 6), formatCeil(r.YMean, 6), formatCeil(r.ZMean, 6))
	}
	cols = append(cols,
		formatCeil(r.XRange, 6), formatCeil(r.YRange, 6), formatCeil(r.ZRange, 6),
		formatCeil(r.XStd, 6), formatCeil(r.YStd, 6), formatCeil(r.ZStd, 6),
		formatCeil(r.TemperatureC, 2),
		strconv.Itoa(r.Samples),
		strconv.Itoa(r.DataErrors),
		strconv.Itoa(r.ClipsBefore),
		strconv.Itoa(r.ClipsAfter),
		strconv.Itoa(r.RawSamples),
	)
	_, err := fmt.Fprintln(cw.w, strings.Join(cols, ","))
	return err
}

// formatCeil renders v with the given number of fractional digits, rounding
// toward positive infinity. Values that are an exact decimal up to float64
// noise are not bumped to the next step.
func formatCeil(v float64, places int) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	shift := math.Pow(10, float64(places))
	scaled := v * shift
	n := math.Round(scaled)
	if scaled-n > 1e-9 {
		n = math.Ceil(scaled)
	}
	out := n / shift
	if out == 0 {
		out = 0 // normalise -0
	}
	return strconv.FormatFloat(out, 'f', places, 64)
}
