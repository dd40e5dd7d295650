package aqi

import (
	"fmt"
	"strings"
)

// Pollutant identifies one of the monitored pollutants
type Pollutant string

const (
	NO2  Pollutant = "NO2"
	O3   Pollutant = "O3"
	PM25 Pollutant = "PM25"
)

// Pollutants lists every supported pollutant in the order sub-indices are reported
var Pollutants = []Pollutant{PM25, O3, NO2}

// ParsePollutant accepts the usual spellings found in station exports ("PM2.5", "pm25", "no2")
func ParsePollutant(s string) (Pollutant, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, ".", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch normalized {
	case "NO2":
		return NO2, nil
	case "O3":
		return O3, nil
	case "PM25":
		return PM25, nil
	default:
		return "", fmt.Errorf("unknown pollutant: %q", s)
	}
}

// SourceUnit is the unit readings arrive in from the monitoring network
func (p Pollutant) SourceUnit() string {
	if p == PM25 {
		return "µg/m³"
	}
	return "ppm"
}

// IndexUnit is the unit the breakpoint table is expressed in
func (p Pollutant) IndexUnit() string {
	if p == PM25 {
		return "µg/m³"
	}
	return "ppb"
}

// IndexUnits converts a source concentration into breakpoint table units.
// NO2 and O3 arrive in ppm and are scaled to ppb; PM2.5 is already in µg/m³.
func (p Pollutant) IndexUnits(concentration float64) float64 {
	switch p {
	case NO2, O3:
		return concentration * 1000
	default:
		return concentration
	}
}
