// Command epoch-plot renders an epoch CSV as a self-contained HTML chart:
// the truncated activity metric and device temperature over time.
//
//	epoch-plot -in recordingEpoch.csv -out recordingEpoch.html
package main

import (
	"flag"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/epoch"
)

var (
	inFile     = flag.String("in", "", "epoch CSV to plot")
	outFile    = flag.String("out", "epochs.html", "HTML output path")
	timeFormat = flag.String("timeFormat", epoch.DefaultTimeLayout, "Go reference layout of the Time column")
	title      = flag.String("title", "Epoch summaries", "chart title")
)

func main() {
	flag.Parse()
	if *inFile == "" {
		log.Fatal("epoch-plot: -in is required")
	}

	f, err := os.Open(*inFile)
	if err != nil {
		log.Fatalf("open %s: %v", *inFile, err)
	}
	rows, err := epoch.ReadCSV(f, *timeFormat)
	f.Close()
	if err != nil {
		log.Fatalf("read %s: %v", *inFile, err)
	}
	if len(rows) == 0 {
		log.Fatalf("%s contains no epoch rows", *inFile)
	}

	times := make([]string, len(rows))
	enmo := make([]opts.LineData, len(rows))
	temp := make([]opts.LineData, len(rows))
	for i, r := range rows {
		times[i] = r.Time.Format("2006-01-02 15:04:05")
		enmo[i] = opts.LineData{Value: r.EnmoTrunc}
		temp[i] = opts.LineData{Value: r.TemperatureC}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: *title, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: *title, Subtitle: *inFile}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ENMO (g)"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Temperature (C)", Type: "value"})
	line.SetXAxis(times)
	line.AddSeries("enmoTrunc", enmo)
	line.AddSeries("temp", temp, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))

	out, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("create %s: %v", *outFile, err)
	}
	defer out.Close()
	if err := line.Render(out); err != nil {
		log.Fatalf("render chart: %v", err)
	}
	log.Printf("wrote %s (%d epochs)", *outFile, len(rows))
}
