package aqi

import (
	"gonum.org/v1/gonum/floats"
)

// Breakpoint is one linear segment of a pollutant's concentration-to-index mapping
type Breakpoint struct {
	ConcLow   float64
	ConcHigh  float64
	IndexLow  float64
	IndexHigh float64
}

// Contains reports whether the concentration falls inside the segment (both ends inclusive)
func (b Breakpoint) Contains(conc float64) bool {
	return b.ConcLow <= conc && conc <= b.ConcHigh
}

// Interpolate maps a concentration inside the segment onto the index range
func (b Breakpoint) Interpolate(conc float64) float64 {
	return b.IndexLow + (b.IndexHigh-b.IndexLow)/(b.ConcHigh-b.ConcLow)*(conc-b.ConcLow)
}

// PM2.5 in µg/m³, O3 and NO2 in ppb.
var tables = map[Pollutant][]Breakpoint{
	PM25: {
		{0, 12, 0, 50},
		{12.1, 35.4, 51, 100},
		{35.5, 55.4, 101, 150},
		{55.5, 150.4, 151, 200},
		{150.5, 250.4, 201, 300},
		{250.5, 350.4, 301, 400},
		{350.5, 500, 401, 500},
	},
	O3: {
		{0, 54, 0, 50},
		{55, 70, 51, 100},
		{71, 85, 101, 150},
		{86, 105, 151, 200},
		{106, 200, 201, 300},
	},
	NO2: {
		{0, 53, 0, 50},
		{54, 100, 51, 100},
		{101, 360, 101, 150},
		{361, 649, 151, 200},
		{650, 1249, 201, 300},
	},
}

// Table returns a copy of the breakpoint table for a pollutant, nil if unknown
func Table(p Pollutant) []Breakpoint {
	t, ok := tables[p]
	if !ok {
		return nil
	}
	out := make([]Breakpoint, len(t))
	copy(out, t)
	return out
}

// SubIndex converts a concentration (in index units) into the pollutant's sub-index.
// It returns nil when no segment covers the value: negative readings, readings above
// the table, and readings falling in the gap between two segments.
func SubIndex(conc float64, p Pollutant) *float64 {
	for _, b := range tables[p] {
		if b.Contains(conc) {
			v := b.Interpolate(conc)
			return &v
		}
	}
	return nil
}

// SubIndexOf is SubIndex for an optional concentration
func SubIndexOf(conc *float64, p Pollutant) *float64 {
	if conc == nil {
		return nil
	}
	return SubIndex(*conc, p)
}

// Combine returns the largest defined sub-index, or nil if none is defined
func Combine(subIndices ...*float64) *float64 {
	defined := make([]float64, 0, len(subIndices))
	for _, s := range subIndices {
		if s != nil {
			defined = append(defined, *s)
		}
	}
	if len(defined) == 0 {
		return nil
	}
	v := floats.Max(defined)
	return &v
}
