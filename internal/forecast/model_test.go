package forecast

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearModel_RecoversExactRelation(t *testing.T) {
	// y = 3 + 2·x1 - x2
	X := [][]float64{{0, 0}, {1, 0}, {0, 1}, {2, 3}, {5, 1}, {4, 7}}
	y := make([]float64, len(X))
	for i, x := range X {
		y[i] = 3 + 2*x[0] - x[1]
	}

	var m LinearModel
	r2, err := m.Fit(X, y)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, r2, 1e-9)
	assert.InDelta(t, 3.0, m.Intercept, 1e-9)
	require.Len(t, m.Coefficients, 2)
	assert.InDelta(t, 2.0, m.Coefficients[0], 1e-9)
	assert.InDelta(t, -1.0, m.Coefficients[1], 1e-9)

	pred, err := m.Predict([]float64{10, 10})
	require.NoError(t, err)
	assert.InDelta(t, 13.0, pred, 1e-9)
}

func TestLinearModel_NoisyFitHasPartialR2(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	y := []float64{2.1, 3.9, 6.2, 7.8, 10.3, 11.7}

	var m LinearModel
	r2, err := m.Fit(X, y)
	require.NoError(t, err)
	assert.Greater(t, r2, 0.95)
	assert.Less(t, r2, 1.0)
	assert.InDelta(t, 2.0, m.Coefficients[0], 0.1)
}

func TestLinearModel_CollinearFeatures(t *testing.T) {
	// Second column duplicates the first; predictions must still be exact.
	X := [][]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}}
	y := []float64{5, 7, 9, 11}

	var m LinearModel
	r2, err := m.Fit(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-9)

	// Minimum-norm solution splits the weight evenly.
	assert.InDelta(t, 1.0, m.Coefficients[0], 1e-9)
	assert.InDelta(t, 1.0, m.Coefficients[1], 1e-9)

	pred, err := m.Predict([]float64{10, 10})
	require.NoError(t, err)
	assert.InDelta(t, 23.0, pred, 1e-9)
}

func TestLinearModel_ConstantFeatures(t *testing.T) {
	X := [][]float64{{1}, {1}, {1}}
	y := []float64{2, 4, 6}

	var m LinearModel
	r2, err := m.Fit(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, r2, 1e-9)
	assert.InDelta(t, 4.0, m.Intercept, 1e-9)
	assert.InDelta(t, 0.0, m.Coefficients[0], 1e-9)
}

func TestLinearModel_ConstantTarget(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	y := []float64{7, 7, 7}

	var m LinearModel
	r2, err := m.Fit(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)
}

func TestLinearModel_FitErrors(t *testing.T) {
	var m LinearModel

	_, err := m.Fit(nil, nil)
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.False(t, m.Fitted())

	_, err = m.Fit([][]float64{{1, 2}, {3}}, []float64{1, 2})
	assert.True(t, errors.Is(err, ErrFeatureMismatch))

	_, err = m.Fit([][]float64{{1}, {2}}, []float64{1})
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}

func TestLinearModel_PredictErrors(t *testing.T) {
	var m LinearModel
	_, err := m.Predict([]float64{1})
	assert.True(t, errors.Is(err, ErrNotFitted))

	var nilModel *LinearModel
	_, err = nilModel.Predict([]float64{1})
	assert.True(t, errors.Is(err, ErrNotFitted))

	_, err = m.Fit([][]float64{{1}, {2}, {3}}, []float64{1, 2, 3})
	require.NoError(t, err)
	_, err = m.Predict([]float64{1, 2})
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}

func TestLinearModel_JSONRoundtrip(t *testing.T) {
	m := LinearModel{}
	_, err := m.Fit([][]float64{{1, 0}, {0, 1}, {1, 1}, {2, 1}}, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	data, err := json.Marshal(&m)
	require.NoError(t, err)

	var loaded LinearModel
	require.NoError(t, json.Unmarshal(data, &loaded))

	x := []float64{3, 5}
	expected, _ := m.Predict(x)
	actual, err := loaded.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}
