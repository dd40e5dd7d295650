package forecast

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/air-quality-server/internal/pipeline"
	"github.com/smukkama/air-quality-server/internal/series"
)

func hourKey(i int) series.Key {
	return series.Key(fmt.Sprintf("2024-03-%02d %02d:00", 1+i/24, i%24))
}

// arRecords follows a_t = 10 + 0.5a(t-1) + 0.2a(t-2) + 0.1a(t-3)
func arRecords(n int) []pipeline.Record {
	a := []float64{80, 20, 60}
	for len(a) < n {
		k := len(a)
		a = append(a, 10+0.5*a[k-1]+0.2*a[k-2]+0.1*a[k-3])
	}
	records := make([]pipeline.Record, n)
	for i := range records {
		records[i] = pipeline.Record{Key: hourKey(i), AQI: f(a[i])}
	}
	return records
}

// pollutantRecords follows AQI_t = 5 + PM25(t-1) + 0.5·O3(t-2) + 0.2·NO2(t-3)
func pollutantRecords(n int, seed uint64) []pipeline.Record {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	pm25 := make([]float64, n)
	o3 := make([]float64, n)
	no2 := make([]float64, n)
	for i := 0; i < n; i++ {
		pm25[i] = 5 + 40*rng.Float64()
		o3[i] = 10 + 60*rng.Float64()
		no2[i] = 5 + 80*rng.Float64()
	}

	records := make([]pipeline.Record, n)
	for i := range records {
		records[i] = pipeline.Record{
			Key:  hourKey(i),
			PM25: f(pm25[i]),
			O3:   f(o3[i]),
			NO2:  f(no2[i]),
		}
		if i >= 3 {
			records[i].AQI = f(5 + pm25[i-1] + 0.5*o3[i-2] + 0.2*no2[i-3])
		}
	}
	return records
}

func TestTrainer_NARXRecoversRecursion(t *testing.T) {
	records := arRecords(20)
	tr := NewTrainer(records, 3)

	r2, err := tr.TrainNARX()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-9)

	m := tr.NARX()
	require.NotNil(t, m)
	assert.Equal(t, []string{"AQI_t-1", "AQI_t-2", "AQI_t-3"}, m.Features)
	assert.InDelta(t, 10.0, m.Intercept, 1e-6)
	assert.InDeltaSlice(t, []float64{0.5, 0.2, 0.1}, m.Coefficients, 1e-6)

	preds, err := tr.PredictNARX(6)
	require.NoError(t, err)
	require.Len(t, preds, 6)

	// The starting buffer is the last lag row, so step one reproduces the last record.
	assert.InDelta(t, *records[19].AQI, preds[0], 1e-6)

	buf := []float64{*records[18].AQI, *records[17].AQI, *records[16].AQI}
	for i := 0; i < 6; i++ {
		want := m.Intercept
		for j, c := range m.Coefficients {
			want += c * buf[j]
		}
		assert.InDelta(t, want, preds[i], 1e-9, "step %d", i)
		buf = append(buf[1:], want)
	}
}

func TestTrainer_LinearFitsPollutantLags(t *testing.T) {
	records := pollutantRecords(40, 7)
	tr := NewTrainer(records, 3)

	r2, err := tr.TrainLinear()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-9)

	m := tr.Linear()
	require.NotNil(t, m)
	require.Len(t, m.Coefficients, 9)
	assert.Equal(t, "PM25_t-1", m.Features[0])
	assert.Equal(t, "NO2_t-3", m.Features[8])
	assert.InDelta(t, 5.0, m.Intercept, 1e-6)
	assert.InDelta(t, 1.0, m.Coefficients[0], 1e-6)
	assert.InDelta(t, 0.5, m.Coefficients[4], 1e-6)
	assert.InDelta(t, 0.2, m.Coefficients[8], 1e-6)

	first, err := tr.PredictLinear(6)
	require.NoError(t, err)
	second, err := tr.PredictLinear(6)
	require.NoError(t, err)
	assert.Len(t, first, 6)
	assert.Equal(t, first, second)
}

func TestTrainer_LinearIgnoresInfiniteConcentration(t *testing.T) {
	records := pollutantRecords(60, 11)
	records[20].PM25 = f(math.Inf(1))

	r2, err := NewTrainer(records, 3).TrainLinear()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-6)
}

func TestTrainer_DefaultLags(t *testing.T) {
	assert.Equal(t, DefaultLags, NewTrainer(nil, 0).Lags())
	assert.Equal(t, 5, NewTrainer(nil, 5).Lags())
}

func TestTrainer_InsufficientData(t *testing.T) {
	tr := NewTrainer(arRecords(3), 3)

	_, err := tr.TrainNARX()
	assert.True(t, errors.Is(err, ErrInsufficientData))

	_, err = tr.TrainLinear()
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Nil(t, tr.Linear())
}

func TestTrainer_PredictBeforeTrain(t *testing.T) {
	tr := NewTrainer(arRecords(20), 3)

	_, err := tr.PredictLinear(6)
	assert.True(t, errors.Is(err, ErrNotFitted))

	_, err = tr.PredictNARX(6)
	assert.True(t, errors.Is(err, ErrNotFitted))
}

func TestTrainer_InvalidHorizon(t *testing.T) {
	tr := NewTrainer(arRecords(20), 3)
	_, err := tr.TrainNARX()
	require.NoError(t, err)

	_, err = tr.PredictNARX(0)
	assert.True(t, errors.Is(err, ErrInvalidHorizon))
}

func TestTrainer_SaveAndLoad(t *testing.T) {
	tr := NewTrainer(pollutantRecords(40, 3), 3)
	_, err := tr.TrainLinear()
	require.NoError(t, err)
	_, err = tr.TrainNARX()
	require.NoError(t, err)

	data, err := tr.Save()
	require.NoError(t, err)

	loaded, err := LoadTrainer(data)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Lags())

	want, err := tr.PredictNARX(4)
	require.NoError(t, err)
	got, err := loaded.PredictNARX(4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-9)

	want, err = tr.PredictLinear(4)
	require.NoError(t, err)
	got, err = loaded.PredictLinear(4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-9)
}

func TestLoadTrainer_Errors(t *testing.T) {
	_, err := LoadTrainer([]byte("{not json"))
	assert.Error(t, err)

	_, err = LoadTrainer([]byte(`{"lags":3,"narx":{"intercept":1,"coefficients":[1,2,3]},"narx_state":[1]}`))
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}

func TestTrainer_FromPipelineRecords(t *testing.T) {
	var no2, o3, pm25 []series.Reading
	for i := 0; i < 12; i++ {
		key := hourKey(i)
		no2 = append(no2, series.Reading{Key: key, Value: f(0.01 + 0.001*float64(i%5))})
		o3 = append(o3, series.Reading{Key: key, Value: f(0.02 + 0.002*float64(i%4))})
		pm25 = append(pm25, series.Reading{Key: key, Value: f(8 + float64(i%7))})
	}
	records := pipeline.Run(no2, o3, pm25)
	require.Len(t, records, 12)

	tr := NewTrainer(records, 3)
	_, err := tr.TrainLinear()
	require.NoError(t, err)
	_, err = tr.TrainNARX()
	require.NoError(t, err)

	preds, err := tr.PredictNARX(6)
	require.NoError(t, err)
	assert.Len(t, preds, 6)
}
