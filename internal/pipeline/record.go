package pipeline

import (
	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/series"
)

// Record is the hourly AQI result for one timestamp.
// Concentrations are in breakpoint units (ppb for NO2/O3, µg/m³ for PM2.5).
// Every pointer field may be nil: an absent reading, an out-of-range concentration,
// or, for AQI and Level, a row where no sub-index could be computed.
type Record struct {
	Key     series.Key `json:"FechaHora"`
	PM25    *float64   `json:"PM25"`
	O3      *float64   `json:"O3"`
	NO2     *float64   `json:"NO2"`
	AQIPM25 *float64   `json:"AQI_PM25"`
	AQIO3   *float64   `json:"AQI_O3"`
	AQINO2  *float64   `json:"AQI_NO2"`
	AQI     *float64   `json:"AQI"`
	Level   *aqi.Level `json:"Nivel_AQI"`
}

// Field names accepted by Record.Field
const (
	FieldPM25 = "PM25"
	FieldO3   = "O3"
	FieldNO2  = "NO2"
	FieldAQI  = "AQI"
)

// Field returns a record column by name, nil for unknown names
func (r Record) Field(name string) *float64 {
	switch name {
	case FieldPM25:
		return r.PM25
	case FieldO3:
		return r.O3
	case FieldNO2:
		return r.NO2
	case FieldAQI:
		return r.AQI
	case "AQI_PM25":
		return r.AQIPM25
	case "AQI_O3":
		return r.AQIO3
	case "AQI_NO2":
		return r.AQINO2
	default:
		return nil
	}
}

// Compute converts one aligned record into its AQI record
func Compute(rec series.AlignedRecord) Record {
	out := Record{
		Key:     rec.Key,
		PM25:    clone(rec.PM25),
		O3:      clone(rec.O3),
		NO2:     clone(rec.NO2),
		AQIPM25: aqi.SubIndexOf(rec.PM25, aqi.PM25),
		AQIO3:   aqi.SubIndexOf(rec.O3, aqi.O3),
		AQINO2:  aqi.SubIndexOf(rec.NO2, aqi.NO2),
	}
	out.AQI = aqi.Combine(out.AQIPM25, out.AQIO3, out.AQINO2)
	if level, ok := aqi.LevelOf(out.AQI); ok {
		out.Level = &level
	}
	return out
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
