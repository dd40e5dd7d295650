package forecast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sumModel predicts the sum of its inputs plus one.
type sumModel struct {
	calls [][]float64
}

func (m *sumModel) Predict(x []float64) (float64, error) {
	seen := make([]float64, len(x))
	copy(seen, x)
	m.calls = append(m.calls, seen)

	total := 1.0
	for _, v := range x {
		total += v
	}
	return total, nil
}

func TestForecaster_LinearRollover(t *testing.T) {
	initial := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	fc, err := NewForecaster(&sumModel{}, initial, RolloverLinear)
	require.NoError(t, err)

	pred, err := fc.Step()
	require.NoError(t, err)
	assert.Equal(t, 46.0, pred)

	// Oldest triple dropped, the freed last three slots all hold the prediction.
	assert.Equal(t, []float64{4, 5, 6, 7, 8, 9, 46, 46, 46}, fc.Buffer())
	assert.Equal(t, 1, fc.Steps())

	// Caller's slice is untouched.
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, initial)
}

func TestForecaster_AutoregressiveRollover(t *testing.T) {
	fc, err := NewForecaster(&sumModel{}, []float64{1, 2, 3}, RolloverAutoregressive)
	require.NoError(t, err)

	pred, err := fc.Step()
	require.NoError(t, err)
	assert.Equal(t, 7.0, pred)
	assert.Equal(t, []float64{2, 3, 7}, fc.Buffer())

	pred, err = fc.Step()
	require.NoError(t, err)
	assert.Equal(t, 13.0, pred)
	assert.Equal(t, []float64{3, 7, 13}, fc.Buffer())
}

func TestForecast_UsesRolledBufferEachStep(t *testing.T) {
	m := &sumModel{}
	preds, err := Forecast(m, []float64{1, 2, 3}, 3, RolloverAutoregressive)
	require.NoError(t, err)

	assert.Equal(t, []float64{7, 13, 24}, preds)
	require.Len(t, m.calls, 3)
	assert.Equal(t, []float64{1, 2, 3}, m.calls[0])
	assert.Equal(t, []float64{2, 3, 7}, m.calls[1])
	assert.Equal(t, []float64{3, 7, 13}, m.calls[2])
}

func TestForecast_LengthMatchesHorizon(t *testing.T) {
	for _, h := range []int{1, 6, 24} {
		preds, err := Forecast(&sumModel{}, []float64{0.1, 0.2, 0.3}, h, RolloverAutoregressive)
		require.NoError(t, err)
		assert.Len(t, preds, h)
	}
}

func TestForecast_Deterministic(t *testing.T) {
	var m LinearModel
	_, err := m.Fit([][]float64{{1, 2, 3}, {2, 3, 5}, {3, 5, 8}, {5, 8, 13}, {8, 13, 21}}, []float64{5, 8, 13, 21, 34})
	require.NoError(t, err)

	buffer := []float64{8, 13, 21}
	first, err := Forecast(&m, buffer, 6, RolloverAutoregressive)
	require.NoError(t, err)
	second, err := Forecast(&m, buffer, 6, RolloverAutoregressive)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []float64{8, 13, 21}, buffer)
}

func TestForecast_Errors(t *testing.T) {
	_, err := Forecast(&LinearModel{}, []float64{1, 2, 3}, 6, RolloverAutoregressive)
	assert.True(t, errors.Is(err, ErrNotFitted))

	_, err = Forecast(&sumModel{}, []float64{1, 2, 3}, 0, RolloverAutoregressive)
	assert.True(t, errors.Is(err, ErrInvalidHorizon))

	_, err = Forecast(&sumModel{}, []float64{1, 2}, 6, RolloverLinear)
	assert.True(t, errors.Is(err, ErrInvalidRollover))

	_, err = Forecast(&sumModel{}, []float64{1, 2}, 6, Rollover(0))
	assert.True(t, errors.Is(err, ErrInvalidRollover))
}

func TestForecast_FeatureMismatchPropagates(t *testing.T) {
	var m LinearModel
	_, err := m.Fit([][]float64{{1}, {2}, {3}}, []float64{2, 4, 6})
	require.NoError(t, err)

	_, err = Forecast(&m, []float64{1, 2, 3}, 2, RolloverAutoregressive)
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}
