package forecast

// Predictor produces one value from a feature vector
type Predictor interface {
	Predict(x []float64) (float64, error)
}

// Rollover is how many buffer slots a prediction replaces after each step
type Rollover int

const (
	// RolloverLinear drops the oldest three features and writes the predicted AQI into
	// all three freed slots, standing in for the three pollutant lags. This conflates AQI
	// with raw concentrations and is kept as a known simplification.
	RolloverLinear Rollover = 3

	// RolloverAutoregressive shifts the AQI lags by one and appends the prediction
	RolloverAutoregressive Rollover = 1
)

// Forecaster runs a model forward over its own rolling input buffer.
// The buffer belongs to the forecaster and is never shared with the caller.
type Forecaster struct {
	model    Predictor
	buffer   []float64
	rollover Rollover
	steps    int
}

// NewForecaster copies the initial buffer and prepares a recursive forecast
func NewForecaster(model Predictor, initial []float64, rollover Rollover) (*Forecaster, error) {
	if f, ok := model.(interface{ Fitted() bool }); ok && !f.Fitted() {
		return nil, ErrNotFitted
	}
	if rollover < 1 || int(rollover) > len(initial) {
		return nil, ErrInvalidRollover
	}

	buffer := make([]float64, len(initial))
	copy(buffer, initial)

	return &Forecaster{
		model:    model,
		buffer:   buffer,
		rollover: rollover,
	}, nil
}

// Step predicts one value from the current buffer and rolls the prediction into it
func (f *Forecaster) Step() (float64, error) {
	pred, err := f.model.Predict(f.buffer)
	if err != nil {
		return 0, err
	}

	k := int(f.rollover)
	copy(f.buffer, f.buffer[k:])
	for i := len(f.buffer) - k; i < len(f.buffer); i++ {
		f.buffer[i] = pred
	}
	f.steps++
	return pred, nil
}

// Forecast runs horizon steps and returns the predictions in order
func (f *Forecaster) Forecast(horizon int) ([]float64, error) {
	if horizon < 1 {
		return nil, ErrInvalidHorizon
	}
	preds := make([]float64, 0, horizon)
	for i := 0; i < horizon; i++ {
		pred, err := f.Step()
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

// Buffer returns a copy of the current input buffer
func (f *Forecaster) Buffer() []float64 {
	out := make([]float64, len(f.buffer))
	copy(out, f.buffer)
	return out
}

// Steps returns how many predictions have been made
func (f *Forecaster) Steps() int {
	return f.steps
}

// Forecast runs a fresh Forecaster over initial for horizon steps
func Forecast(model Predictor, initial []float64, horizon int, rollover Rollover) ([]float64, error) {
	f, err := NewForecaster(model, initial, rollover)
	if err != nil {
		return nil, err
	}
	return f.Forecast(horizon)
}
