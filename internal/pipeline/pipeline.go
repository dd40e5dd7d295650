package pipeline

import (
	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/series"
)

// Pipeline turns three raw pollutant series into hourly AQI records.
//
// Raw series are in source units (ppm for NO2/O3, µg/m³ for PM2.5). Alignment is
// computed on first use and reused by every later call on the same Pipeline.
type Pipeline struct {
	no2     []series.Reading
	o3      []series.Reading
	pm25    []series.Reading
	aligned []series.AlignedRecord
	ready   bool
}

// New creates a pipeline over copies of the given series
func New(no2, o3, pm25 []series.Reading) *Pipeline {
	return &Pipeline{
		no2:  copyReadings(no2),
		o3:   copyReadings(o3),
		pm25: copyReadings(pm25),
	}
}

// Run is a one-shot helper for New(no2, o3, pm25).Run()
func Run(no2, o3, pm25 []series.Reading) []Record {
	return New(no2, o3, pm25).Run()
}

// Aligned returns the aligned records in breakpoint units
func (p *Pipeline) Aligned() []series.AlignedRecord {
	p.prepare()
	out := make([]series.AlignedRecord, len(p.aligned))
	copy(out, p.aligned)
	return out
}

// Run computes one AQI record per aligned timestamp, in ascending order
func (p *Pipeline) Run() []Record {
	p.prepare()
	records := make([]Record, len(p.aligned))
	for i, rec := range p.aligned {
		records[i] = Compute(rec)
	}
	return records
}

func (p *Pipeline) prepare() {
	if p.ready {
		return
	}
	p.aligned = series.Align(
		toIndexUnits(p.no2, aqi.NO2),
		toIndexUnits(p.o3, aqi.O3),
		toIndexUnits(p.pm25, aqi.PM25),
	)
	p.ready = true
}

// toIndexUnits drops missing readings and rescales the rest for the breakpoint tables
func toIndexUnits(readings []series.Reading, p aqi.Pollutant) []series.Reading {
	out := make([]series.Reading, 0, len(readings))
	for _, r := range readings {
		if r.Value == nil {
			continue
		}
		v := p.IndexUnits(*r.Value)
		out = append(out, series.Reading{Key: r.Key, Value: &v})
	}
	return out
}

func copyReadings(readings []series.Reading) []series.Reading {
	out := make([]series.Reading, len(readings))
	for i, r := range readings {
		out[i].Key = r.Key
		if r.Value != nil {
			v := *r.Value
			out[i].Value = &v
		}
	}
	return out
}
