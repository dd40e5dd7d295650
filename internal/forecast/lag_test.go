package forecast

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/air-quality-server/internal/pipeline"
	"github.com/smukkama/air-quality-server/internal/series"
)

func f(v float64) *float64 { return &v }

// makeRecords builds records whose columns encode their position: PM25=i, O3=100+i,
// NO2=200+i, AQI=300+i.
func makeRecords(n int) []pipeline.Record {
	records := make([]pipeline.Record, n)
	for i := range records {
		records[i] = pipeline.Record{
			Key:  series.Key(fmt.Sprintf("2024-03-01 %02d:00", i%24)),
			PM25: f(float64(i)),
			O3:   f(float64(100 + i)),
			NO2:  f(float64(200 + i)),
			AQI:  f(float64(300 + i)),
		}
	}
	return records
}

func TestBuildLagRows_RowAndFeatureCounts(t *testing.T) {
	for _, n := range []int{0, 1, 3, 4, 10} {
		rows, err := BuildLagRows(makeRecords(n), LinearColumns, 3)
		require.NoError(t, err)
		assert.Len(t, rows, max(0, n-3), "n=%d", n)
		for _, r := range rows {
			assert.Len(t, r.Features, 9)
		}
	}

	rows, err := BuildLagRows(makeRecords(10), NARXColumns, 2)
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Len(t, rows[0].Features, 2)
}

func TestBuildLagRows_FeatureOrder(t *testing.T) {
	records := makeRecords(5)
	rows, err := BuildLagRows(records, LinearColumns, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Row for record 3: lags 1..3 point at records 2, 1, 0.
	assert.Equal(t, records[3].Key, rows[0].Key)
	assert.Equal(t, []float64{2, 1, 0, 102, 101, 100, 202, 201, 200}, rows[0].Features)
	assert.Equal(t, 303.0, rows[0].Target)

	assert.Equal(t, []float64{3, 2, 1, 103, 102, 101, 203, 202, 201}, rows[1].Features)
	assert.Equal(t, 304.0, rows[1].Target)
}

func TestBuildLagRows_SkipsIncompleteRows(t *testing.T) {
	records := makeRecords(8)
	records[2].O3 = nil  // breaks rows 3, 4, 5
	records[7].AQI = nil // row 7 has no target

	rows, err := BuildLagRows(records, LinearColumns, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, records[6].Key, rows[0].Key)

	// The NARX columns do not read O3.
	rows, err = BuildLagRows(records, NARXColumns, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestBuildLagRows_SkipsNonFiniteValues(t *testing.T) {
	records := makeRecords(8)
	records[2].PM25 = f(math.Inf(1)) // breaks rows 3, 4, 5
	records[7].AQI = f(math.NaN())

	rows, err := BuildLagRows(records, LinearColumns, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, records[6].Key, rows[0].Key)
	for _, v := range rows[0].Features {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
	}
}

func TestBuildLagRows_InvalidArguments(t *testing.T) {
	_, err := BuildLagRows(makeRecords(5), LinearColumns, 0)
	assert.Error(t, err)

	_, err = BuildLagRows(makeRecords(5), nil, 3)
	assert.Error(t, err)
}

func TestFeatureNames(t *testing.T) {
	assert.Equal(t, []string{"AQI_t-1", "AQI_t-2", "AQI_t-3"}, FeatureNames(NARXColumns, 3))
	assert.Equal(t,
		[]string{"PM25_t-1", "PM25_t-2", "O3_t-1", "O3_t-2", "NO2_t-1", "NO2_t-2"},
		FeatureNames(LinearColumns, 2))
}

func TestMatrix(t *testing.T) {
	rows := []LagRow{
		{Features: []float64{1, 2}, Target: 3},
		{Features: []float64{4, 5}, Target: 6},
	}
	X, y := Matrix(rows)
	assert.Equal(t, [][]float64{{1, 2}, {4, 5}}, X)
	assert.Equal(t, []float64{3, 6}, y)
}
