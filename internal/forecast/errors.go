package forecast

var (
	ErrInsufficientData = &ForecastError{"insufficient data: no complete lag rows to fit on"}
	ErrNotFitted        = &ForecastError{"model has not been fitted"}
	ErrFeatureMismatch  = &ForecastError{"feature vector length does not match the model"}
	ErrInvalidHorizon   = &ForecastError{"forecast horizon must be positive"}
	ErrInvalidRollover  = &ForecastError{"rollover must be between 1 and the buffer length"}
)

// ForecastError represents a forecasting error
type ForecastError struct {
	msg string
}

func (e *ForecastError) Error() string {
	return e.msg
}
