package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/forecast"
	"github.com/smukkama/air-quality-server/internal/ingest"
	"github.com/smukkama/air-quality-server/internal/pipeline"
)

// aqi computes hourly AQI from station CSV exports and forecasts the next hours
//
//	aqi -no2 no2.csv -o3 o3.csv -pm25 pm25.csv -steps 6
func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

type modelReport struct {
	R2       float64   `json:"r2"`
	Forecast []float64 `json:"forecast,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type report struct {
	Records []pipeline.Record `json:"records"`
	Linear  modelReport       `json:"linear"`
	NARX    modelReport       `json:"narx"`
	Advice  *aqi.Advice       `json:"advice,omitempty"`
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("aqi", flag.ContinueOnError)
	no2 := fs.String("no2", "", "NO2 export (ppm)")
	o3 := fs.String("o3", "", "O3 export (ppm)")
	pm25 := fs.String("pm25", "", "PM2.5 export (µg/m³)")
	lags := fs.Int("lags", forecast.DefaultLags, "lag depth of both models")
	steps := fs.Int("steps", 6, "forecast horizon in hours")
	rows := fs.Int("rows", 24, "hourly records to print, 0 prints all")
	asJSON := fs.Bool("json", false, "print a JSON report")
	save := fs.String("save", "", "write the fitted models to this file")
	advice := fs.Bool("advice", false, "include health advice for the latest AQI")
	comma := fs.String("comma", ",", "CSV field delimiter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *no2 == "" && *o3 == "" && *pm25 == "" {
		return errors.New("at least one of -no2, -o3 or -pm25 is required")
	}
	if len([]rune(*comma)) != 1 {
		return fmt.Errorf("invalid delimiter %q", *comma)
	}

	files := ingest.Files{aqi.NO2: *no2, aqi.O3: *o3, aqi.PM25: *pm25}
	input, err := files.Load(ingest.CSVParser{Comma: []rune(*comma)[0]})
	if err != nil {
		return err
	}

	records := input.Pipeline().Run()
	trainer := forecast.NewTrainer(records, *lags)

	rep := report{Records: tail(records, *rows)}
	rep.Linear = train(trainer.TrainLinear, trainer.PredictLinear, *steps)
	rep.NARX = train(trainer.TrainNARX, trainer.PredictNARX, *steps)
	if *advice {
		if latest := latestAQI(records); latest != nil {
			a := aqi.Advise(*latest)
			rep.Advice = &a
		}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else if err := printReport(stdout, rep); err != nil {
		return err
	}

	if *save != "" {
		return saveModels(trainer, *save)
	}
	return nil
}

// saveModels writes whichever models were fitted, failing when there are none
func saveModels(trainer *forecast.Trainer, path string) error {
	if trainer.Linear() == nil && trainer.NARX() == nil {
		return fmt.Errorf("no model could be trained, %s not written", path)
	}
	data, err := trainer.Save()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save models: %w", err)
	}
	return nil
}

func train(fit func() (float64, error), predict func(int) ([]float64, error), steps int) modelReport {
	r2, err := fit()
	if err != nil {
		return modelReport{Error: err.Error()}
	}
	values, err := predict(steps)
	if err != nil {
		return modelReport{R2: r2, Error: err.Error()}
	}
	return modelReport{R2: r2, Forecast: values}
}

func tail(records []pipeline.Record, n int) []pipeline.Record {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[len(records)-n:]
}

func latestAQI(records []pipeline.Record) *float64 {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].AQI != nil {
			return records[i].AQI
		}
	}
	return nil
}

func printReport(w io.Writer, rep report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FechaHora\tPM25\tO3\tNO2\tAQI\tNivel_AQI")
	for _, r := range rep.Records {
		level := "-"
		if r.Level != nil {
			level = string(*r.Level)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Key, num(r.PM25), num(r.O3), num(r.NO2), num(r.AQI), level)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	printModel(w, "Linear", rep.Linear)
	printModel(w, "NARX", rep.NARX)

	if rep.Advice != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Asthma:  %s\n", rep.Advice.Asthma)
		fmt.Fprintf(w, "COPD:    %s\n", rep.Advice.COPD)
		fmt.Fprintf(w, "General: %s\n", rep.Advice.General)
	}
	return nil
}

func printModel(w io.Writer, name string, m modelReport) {
	fmt.Fprintln(w)
	if m.Error != "" {
		fmt.Fprintf(w, "%s model: %s\n", name, m.Error)
		return
	}
	fmt.Fprintf(w, "%s model R²=%.4f\n", name, m.R2)
	for i, v := range m.Forecast {
		fmt.Fprintf(w, "  t+%d  %.2f\n", i+1, v)
	}
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
