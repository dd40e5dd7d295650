package forecast

import (
	"encoding/json"
	"fmt"

	"github.com/smukkama/air-quality-server/internal/pipeline"
)

// DefaultLags is the lag depth used by both models
const DefaultLags = 3

var (
	// LinearColumns feed the linear model: pollutant concentration lags
	LinearColumns = []Column{ColumnPM25, ColumnO3, ColumnNO2}

	// NARXColumns feed the autoregressive model: AQI lags only
	NARXColumns = []Column{ColumnAQI}
)

// Trainer fits the linear and autoregressive AQI models on one record sequence and
// keeps the last lag row of each as the starting buffer for recursive forecasts.
type Trainer struct {
	records []pipeline.Record
	lags    int

	linear      *LinearModel
	linearState []float64
	narx        *LinearModel
	narxState   []float64
}

// NewTrainer creates a trainer over the given records; lags < 1 uses DefaultLags
func NewTrainer(records []pipeline.Record, lags int) *Trainer {
	if lags < 1 {
		lags = DefaultLags
	}
	return &Trainer{records: records, lags: lags}
}

// Lags returns the lag depth
func (t *Trainer) Lags() int {
	return t.lags
}

// TrainLinear fits AQI on PM2.5, O3 and NO2 lags and returns the training R²
func (t *Trainer) TrainLinear() (float64, error) {
	model, state, err := t.fit(LinearColumns)
	if err != nil {
		return 0, fmt.Errorf("failed to train linear model: %w", err)
	}
	t.linear, t.linearState = model, state
	return model.R2, nil
}

// TrainNARX fits AQI on its own lags and returns the training R²
func (t *Trainer) TrainNARX() (float64, error) {
	model, state, err := t.fit(NARXColumns)
	if err != nil {
		return 0, fmt.Errorf("failed to train NARX model: %w", err)
	}
	t.narx, t.narxState = model, state
	return model.R2, nil
}

func (t *Trainer) fit(columns []Column) (*LinearModel, []float64, error) {
	rows, err := BuildLagRows(t.records, columns, t.lags)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, ErrInsufficientData
	}

	X, y := Matrix(rows)
	model := &LinearModel{Features: FeatureNames(columns, t.lags)}
	if _, err := model.Fit(X, y); err != nil {
		return nil, nil, err
	}

	last := rows[len(rows)-1].Features
	state := make([]float64, len(last))
	copy(state, last)
	return model, state, nil
}

// PredictLinear forecasts steps hours ahead with the linear model
func (t *Trainer) PredictLinear(steps int) ([]float64, error) {
	if t.linear == nil {
		return nil, ErrNotFitted
	}
	return Forecast(t.linear, t.linearState, steps, Rollover(len(LinearColumns)))
}

// PredictNARX forecasts steps hours ahead with the autoregressive model
func (t *Trainer) PredictNARX(steps int) ([]float64, error) {
	if t.narx == nil {
		return nil, ErrNotFitted
	}
	return Forecast(t.narx, t.narxState, steps, RolloverAutoregressive)
}

// Linear returns the fitted linear model, nil before TrainLinear
func (t *Trainer) Linear() *LinearModel {
	return t.linear
}

// NARX returns the fitted autoregressive model, nil before TrainNARX
func (t *Trainer) NARX() *LinearModel {
	return t.narx
}

// SavedModels is the JSON artifact holding both models and their forecast buffers
type SavedModels struct {
	Lags        int          `json:"lags"`
	Linear      *LinearModel `json:"linear,omitempty"`
	LinearState []float64    `json:"linear_state,omitempty"`
	NARX        *LinearModel `json:"narx,omitempty"`
	NARXState   []float64    `json:"narx_state,omitempty"`
}

// Save serializes the fitted models to JSON
func (t *Trainer) Save() ([]byte, error) {
	m := SavedModels{
		Lags:        t.lags,
		Linear:      t.linear,
		LinearState: t.linearState,
		NARX:        t.narx,
		NARXState:   t.narxState,
	}
	return json.MarshalIndent(m, "", "  ")
}

// LoadTrainer restores a trainer able to forecast from a saved artifact.
// The restored trainer has no records, so it can forecast but not retrain.
func LoadTrainer(data []byte) (*Trainer, error) {
	var m SavedModels
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode models: %w", err)
	}
	if m.Linear != nil && len(m.LinearState) != len(m.Linear.Coefficients) {
		return nil, fmt.Errorf("linear state has %d values for %d coefficients: %w",
			len(m.LinearState), len(m.Linear.Coefficients), ErrFeatureMismatch)
	}
	if m.NARX != nil && len(m.NARXState) != len(m.NARX.Coefficients) {
		return nil, fmt.Errorf("NARX state has %d values for %d coefficients: %w",
			len(m.NARXState), len(m.NARX.Coefficients), ErrFeatureMismatch)
	}

	t := NewTrainer(nil, m.Lags)
	t.linear, t.linearState = m.Linear, m.LinearState
	t.narx, t.narxState = m.NARX, m.NARXState
	return t, nil
}
