// Command cwa converts an AX3 .CWA recording into per-epoch summary CSV.
//
//	cwa [flags] inputFile.CWA
//	cwa [flags] -serial /dev/ttyACM0
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/config"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/calibrate"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/epoch"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/epochdb"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/stream"
	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/monitoring"
	"github.com/artvalencio/biobankAccelerometerAnalysis/serialmux"
)

var (
	outputFile = flag.String("outputFile", "", "destination CSV path (default: input path with extension replaced by Epoch.csv)")
	verbose    = flag.Bool("verbose", true, "print progress while converting")
	epochFlag  = flag.Int("epochPeriod", 5, "seconds per epoch")
	timeFormat = flag.String("timeFormat", epoch.DefaultTimeLayout, "Go reference layout for the Time column")
	filterOn   = flag.Bool("filter", true, "low-pass the activity metric before truncation")

	startWholeMinute = flag.Bool("startEpochWholeMinute", false, "snap the first epoch start to a whole minute")
	startWholeSecond = flag.Bool("startEpochWholeSecond", false, "snap the first epoch start to a whole second")

	stationaryBouts = flag.Bool("getStationaryBouts", false, "emit only stationary epochs with per-axis means (forces epochPeriod=10)")
	stationaryStd   = flag.Float64("stationaryStd", 0.013, "per-axis std threshold for stationary epochs")

	xIntercept = flag.Float64("xIntercept", 0, "x-axis calibration intercept")
	yIntercept = flag.Float64("yIntercept", 0, "y-axis calibration intercept")
	zIntercept = flag.Float64("zIntercept", 0, "z-axis calibration intercept")
	xSlope     = flag.Float64("xSlope", 1, "x-axis calibration slope")
	ySlope     = flag.Float64("ySlope", 1, "y-axis calibration slope")
	zSlope     = flag.Float64("zSlope", 1, "z-axis calibration slope")
	xTemp      = flag.Float64("xTemp", 0, "x-axis temperature coefficient")
	yTemp      = flag.Float64("yTemp", 0, "y-axis temperature coefficient")
	zTemp      = flag.Float64("zTemp", 0, "z-axis temperature coefficient")
	meanTemp   = flag.Float64("meanTemp", 0, "mean calibration temperature in Celsius")
	rangeG     = flag.Float64("range", 8, "sensor full-scale range in g")

	calibConfig = flag.String("calibConfig", "", "JSON calibration config file (flags override file values)")
	dbFile      = flag.String("db", "", "optionally persist epochs to this sqlite database")
	serialPort  = flag.String("serial", "", "read sectors live from this serial device instead of a file")
)

func main() {
	flag.Parse()
	monitoring.Verbose = *verbose

	accFile := flag.Arg(0)
	if accFile == "" && *serialPort == "" {
		fmt.Fprintln(os.Stderr, "usage: cwa [flags] inputFile.CWA (or -serial /dev/ttyACM0)")
		flag.PrintDefaults()
		os.Exit(2)
	}

	opts := stream.DefaultOptions()
	opts.EpochPeriod = *epochFlag
	opts.TimeLayout = *timeFormat
	opts.Filter = *filterOn
	opts.StationaryBouts = *stationaryBouts
	opts.StationaryStd = *stationaryStd
	opts.WholeSecond = *startWholeSecond
	opts.WholeMinute = *startWholeMinute
	opts.Calibration = buildCalibration()

	in, totalSize, err := openInput(accFile)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer in.Close()

	outPath := *outputFile
	if outPath == "" {
		outPath = defaultOutputPath(accFile)
	}
	out, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("create output %s: %v", outPath, err)
	}
	defer out.Close()

	var sinks []stream.RowSink
	if *dbFile != "" {
		store, err := epochdb.Open(*dbFile)
		if err != nil {
			log.Fatalf("open epoch db: %v", err)
		}
		defer store.Close()

		optsJSON, _ := json.Marshal(map[string]interface{}{
			"epoch_period":      opts.EpochPeriod,
			"filter":            opts.Filter,
			"stationary_bouts":  opts.StationaryBouts,
			"stationary_std":    opts.StationaryStd,
			"calibration_range": opts.Calibration.Range,
		})
		runID, err := store.CreateRun(sourceName(accFile), string(optsJSON))
		if err != nil {
			log.Fatalf("register run: %v", err)
		}
		monitoring.Progressf("recording epochs under run %s", runID)
		sinks = append(sinks, func(r epoch.Row) error {
			return store.InsertEpoch(runID, r)
		})
	}

	summary, err := stream.Process(in, out, totalSize, opts, sinks...)
	if err != nil {
		log.Fatalf("convert: %v", err)
	}
	monitoring.Progressf("wrote %d epoch rows to %s", summary.Rows, outPath)
}

// buildCalibration merges the calibration config file (if any) with the
// command-line coefficients. A flag the user set explicitly wins over the
// file value.
func buildCalibration() calibrate.Calibration {
	cal := calibrate.Calibration{
		Intercept: [3]float64{*xIntercept, *yIntercept, *zIntercept},
		Slope:     [3]float64{*xSlope, *ySlope, *zSlope},
		TempCoef:  [3]float64{*xTemp, *yTemp, *zTemp},
		MeanTemp:  *meanTemp,
		Range:     *rangeG,
	}
	if *calibConfig == "" {
		return cal
	}

	cfg, err := config.LoadCalibrationConfig(*calibConfig)
	if err != nil {
		log.Fatalf("load calibration config: %v", err)
	}
	fileCal := calibrate.FromConfig(cfg)

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	override := func(name string, file, cli float64) float64 {
		if set[name] {
			return cli
		}
		return file
	}
	cal.Intercept[0] = override("xIntercept", fileCal.Intercept[0], cal.Intercept[0])
	cal.Intercept[1] = override("yIntercept", fileCal.Intercept[1], cal.Intercept[1])
	cal.Intercept[2] = override("zIntercept", fileCal.Intercept[2], cal.Intercept[2])
	cal.Slope[0] = override("xSlope", fileCal.Slope[0], cal.Slope[0])
	cal.Slope[1] = override("ySlope", fileCal.Slope[1], cal.Slope[1])
	cal.Slope[2] = override("zSlope", fileCal.Slope[2], cal.Slope[2])
	cal.TempCoef[0] = override("xTemp", fileCal.TempCoef[0], cal.TempCoef[0])
	cal.TempCoef[1] = override("yTemp", fileCal.TempCoef[1], cal.TempCoef[1])
	cal.TempCoef[2] = override("zTemp", fileCal.TempCoef[2], cal.TempCoef[2])
	cal.MeanTemp = override("meanTemp", fileCal.MeanTemp, cal.MeanTemp)
	cal.Range = override("range", fileCal.Range, cal.Range)
	return cal
}

// openInput opens either the input file or the serial device. File inputs
// report their size so the converter can print percent progress.
func openInput(accFile string) (io.ReadCloser, int64, error) {
	if *serialPort != "" {
		port, err := serialmux.OpenSectorPort(*serialPort)
		if err != nil {
			return nil, 0, err
		}
		return port, 0, nil
	}
	f, err := os.Open(accFile)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func defaultOutputPath(accFile string) string {
	if accFile == "" {
		return "Epoch.csv"
	}
	base := accFile
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base + "Epoch.csv"
}

func sourceName(accFile string) string {
	if accFile != "" {
		return accFile
	}
	return "serial:" + *serialPort
}
