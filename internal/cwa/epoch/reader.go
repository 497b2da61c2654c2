package epoch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ReadCSV parses an emitted epoch CSV back into rows, detecting from the
// header whether the stationary mean columns are present. The time layout
// must match the one the file was written with.
func ReadCSV(r io.Reader, timeLayout string) ([]Row, error) {
	if timeLayout == "" {
		timeLayout = DefaultTimeLayout
	}
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read epoch CSV header: %w", err)
	}
	stationary := len(header) > 2 && header[2] == "xMean"
	want := 14
	if stationary {
		want = 17
	}
	if len(header) != want {
		return nil, fmt.Errorf("unexpected epoch CSV header with %d columns", len(header))
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read epoch CSV line %d: %w", line, err)
		}
		row, err := parseRow(rec, timeLayout, stationary)
		if err != nil {
			return nil, fmt.Errorf("epoch CSV line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string, timeLayout string, stationary bool) (Row, error) {
	var row Row
	var err error
	if row.Time, err = time.Parse(timeLayout, rec[0]); err != nil {
		return row, err
	}

	i := 1
	next := func() string { s := rec[i]; i++; return s }
	readF := func(dst *float64) {
		if err != nil {
			return
		}
		*dst, err = strconv.ParseFloat(next(), 64)
	}
	readI := func(dst *int) {
		if err != nil {
			return
		}
		*dst, err = strconv.Atoi(next())
	}

	readF(&row.EnmoTrunc)
	if stationary {
		readF(&row.XMean)
		readF(&row.YMean)
		readF(&row.ZMean)
	}
	readF(&row.XRange)
	readF(&row.YRange)
	readF(&row.ZRange)
	readF(&row.XStd)
	readF(&row.YStd)
	readF(&row.ZStd)
	readF(&row.TemperatureC)
	readI(&row.Samples)
	readI(&row.DataErrors)
	readI(&row.ClipsBefore)
	readI(&row.ClipsAfter)
	readI(&row.RawSamples)
	return row, err
}
