package pipeline

import (
	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/series"
)

// Input groups the three raw series a pipeline runs over, in source units
type Input struct {
	NO2  []series.Reading
	O3   []series.Reading
	PM25 []series.Reading
}

// Add appends a reading to the series of pollutant p
func (in *Input) Add(p aqi.Pollutant, r series.Reading) {
	switch p {
	case aqi.NO2:
		in.NO2 = append(in.NO2, r)
	case aqi.O3:
		in.O3 = append(in.O3, r)
	case aqi.PM25:
		in.PM25 = append(in.PM25, r)
	}
}

// Series returns the readings held for pollutant p
func (in Input) Series(p aqi.Pollutant) []series.Reading {
	switch p {
	case aqi.NO2:
		return in.NO2
	case aqi.O3:
		return in.O3
	case aqi.PM25:
		return in.PM25
	}
	return nil
}

// Len is the total number of readings across all pollutants
func (in Input) Len() int {
	return len(in.NO2) + len(in.O3) + len(in.PM25)
}

// Pipeline creates a pipeline over the input
func (in Input) Pipeline() *Pipeline {
	return New(in.NO2, in.O3, in.PM25)
}
