package forecast

import (
	"fmt"
	"math"

	"github.com/smukkama/air-quality-server/internal/pipeline"
	"github.com/smukkama/air-quality-server/internal/series"
)

// Column is a record column used as a lagged predictor
type Column string

const (
	ColumnPM25 Column = pipeline.FieldPM25
	ColumnO3   Column = pipeline.FieldO3
	ColumnNO2  Column = pipeline.FieldNO2
	ColumnAQI  Column = pipeline.FieldAQI
)

// LagRow is one supervised-learning example: lagged features and the AQI target
type LagRow struct {
	Key      series.Key
	Features []float64
	Target   float64
}

// FeatureNames lists feature labels in the positional order used by BuildLagRows
func FeatureNames(columns []Column, depth int) []string {
	names := make([]string, 0, len(columns)*depth)
	for _, c := range columns {
		for lag := 1; lag <= depth; lag++ {
			names = append(names, fmt.Sprintf("%s_t-%d", c, lag))
		}
	}
	return names
}

// BuildLagRows turns AQI records into lag rows with the AQI of each record as target.
//
// Features are ordered by column, then lag 1..depth. The first depth records have no
// complete history and produce no row. A row is also skipped when any of its lag
// values or its target is undefined or not finite. With complete data, N records yield N-depth rows.
func BuildLagRows(records []pipeline.Record, columns []Column, depth int) ([]LagRow, error) {
	if depth < 1 {
		return nil, fmt.Errorf("lag depth must be at least 1, got %d", depth)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("at least one lag column is required")
	}

	var rows []LagRow
	for i := depth; i < len(records); i++ {
		target := records[i].AQI
		if !finite(target) {
			continue
		}

		features := make([]float64, 0, len(columns)*depth)
		complete := true
		for _, c := range columns {
			for lag := 1; lag <= depth; lag++ {
				v := records[i-lag].Field(string(c))
				if !finite(v) {
					complete = false
					break
				}
				features = append(features, *v)
			}
			if !complete {
				break
			}
		}
		if !complete {
			continue
		}

		rows = append(rows, LagRow{
			Key:      records[i].Key,
			Features: features,
			Target:   *target,
		})
	}
	return rows, nil
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// Matrix splits lag rows into a feature matrix and target vector
func Matrix(rows []LagRow) (X [][]float64, y []float64) {
	X = make([][]float64, len(rows))
	y = make([]float64, len(rows))
	for i, r := range rows {
		X[i] = r.Features
		y[i] = r.Target
	}
	return
}
