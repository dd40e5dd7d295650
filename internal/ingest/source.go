package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/pipeline"
	"github.com/smukkama/air-quality-server/internal/series"
)

// Files names the export of each pollutant. An empty path means no data for it.
type Files map[aqi.Pollutant]string

// Load parses every named file into a pipeline input
func (f Files) Load(parser CSVParser) (pipeline.Input, error) {
	var in pipeline.Input
	for _, p := range aqi.Pollutants {
		path := f[p]
		if path == "" {
			continue
		}
		res, err := parser.ParseFile(path)
		if err != nil {
			return in, err
		}
		for _, r := range res.Readings {
			in.Add(p, r)
		}
	}
	return in, nil
}

// FileSource serves station readings from CSV exports laid out as
// <Dir>/<station>/<pollutant>.csv, e.g. data/MER/pm25.csv.
// A pollutant without a file has an empty series.
type FileSource struct {
	Dir    string
	Parser CSVParser
}

// StationFiles returns the export paths of one station
func (s FileSource) StationFiles(station string) Files {
	files := make(Files, len(aqi.Pollutants))
	for _, p := range aqi.Pollutants {
		files[p] = filepath.Join(s.Dir, station, strings.ToLower(string(p))+".csv")
	}
	return files
}

// LoadReadings implements the aggregation reading source. Readings whose key parses to
// a time before since are dropped; readings with unparseable keys are kept.
func (s FileSource) LoadReadings(ctx context.Context, station string, since time.Time) (pipeline.Input, error) {
	var in pipeline.Input
	for p, path := range s.StationFiles(station) {
		if err := ctx.Err(); err != nil {
			return in, err
		}
		res, err := s.Parser.ParseFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return in, fmt.Errorf("failed to load %s readings for %s: %w", p, station, err)
		}
		for _, r := range res.Readings {
			if !keep(r.Key, since) {
				continue
			}
			in.Add(p, r)
		}
	}
	return in, nil
}

func keep(key series.Key, since time.Time) bool {
	if since.IsZero() {
		return true
	}
	t, ok := key.Time()
	return !ok || !t.Before(since)
}
