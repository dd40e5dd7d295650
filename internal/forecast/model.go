package forecast

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearModel is an ordinary least squares regression with an intercept
type LinearModel struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Features     []string  `json:"features,omitempty"`
	R2           float64   `json:"r2"`
}

// Fitted reports whether Fit has completed on this model
func (m *LinearModel) Fitted() bool {
	return m != nil && m.Coefficients != nil
}

// Fit estimates the model from X (one row per example) and y, and returns the
// training R². The fit is the minimum-norm least squares solution on centered
// data, so collinear features do not make it fail.
func (m *LinearModel) Fit(X [][]float64, y []float64) (float64, error) {
	n := len(X)
	if n == 0 {
		return 0, ErrInsufficientData
	}
	if len(y) != n {
		return 0, fmt.Errorf("got %d targets for %d rows: %w", len(y), n, ErrFeatureMismatch)
	}
	p := len(X[0])
	if p == 0 {
		return 0, ErrFeatureMismatch
	}

	// Center each column so the intercept stays out of the least squares problem.
	means := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i, row := range X {
			if len(row) != p {
				return 0, fmt.Errorf("row %d has %d features, expected %d: %w", i, len(row), p, ErrFeatureMismatch)
			}
			col[i] = row[j]
		}
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			a.Set(i, j, v-means[j])
		}
		b.SetVec(i, y[i]-yMean)
	}

	coef := make([]float64, p)
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return 0, fmt.Errorf("failed to factorize design matrix")
	}
	if rank := svd.Rank(rcond); rank > 0 {
		var beta mat.VecDense
		svd.SolveVecTo(&beta, b, rank)
		for j := range coef {
			coef[j] = beta.AtVec(j)
		}
	}

	m.Coefficients = coef
	m.Intercept = yMean - floats.Dot(means, coef)

	r2, err := m.Score(X, y)
	if err != nil {
		return 0, err
	}
	m.R2 = r2
	return r2, nil
}

// Predict returns the model output for one feature vector
func (m *LinearModel) Predict(x []float64) (float64, error) {
	if !m.Fitted() {
		return 0, ErrNotFitted
	}
	if len(x) != len(m.Coefficients) {
		return 0, fmt.Errorf("got %d features, expected %d: %w", len(x), len(m.Coefficients), ErrFeatureMismatch)
	}
	return m.Intercept + floats.Dot(m.Coefficients, x), nil
}

// Score returns the coefficient of determination of the model on X, y.
// A constant target scores 1 when predicted exactly and 0 otherwise.
func (m *LinearModel) Score(X [][]float64, y []float64) (float64, error) {
	if len(X) == 0 {
		return 0, ErrInsufficientData
	}
	estimates := make([]float64, len(X))
	for i, row := range X {
		v, err := m.Predict(row)
		if err != nil {
			return 0, err
		}
		estimates[i] = v
	}

	if stat.Variance(y, nil) == 0 || len(y) == 1 {
		if floats.EqualApprox(estimates, y, 1e-9) {
			return 1, nil
		}
		return 0, nil
	}
	return stat.RSquaredFrom(estimates, y, nil), nil
}

// Singular values below rcond times the largest one are treated as zero.
const rcond = 1e-10
