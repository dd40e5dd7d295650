package aqi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubIndex_PM25Boundaries(t *testing.T) {
	cases := []struct {
		conc     float64
		expected float64
	}{
		{0, 0},
		{12, 50},
		{12.1, 51},
		{35.4, 100},
		{35.5, 101},
		{500, 500},
	}

	for _, c := range cases {
		v := SubIndex(c.conc, PM25)
		require.NotNil(t, v, "conc=%v", c.conc)
		assert.InDelta(t, c.expected, *v, 1e-9, "conc=%v", c.conc)
	}
}

func TestSubIndex_OutOfRange(t *testing.T) {
	assert.Nil(t, SubIndex(-1, PM25))
	assert.Nil(t, SubIndex(600, PM25))
	assert.Nil(t, SubIndex(201, O3))
	assert.Nil(t, SubIndex(1250, NO2))

	// Between two segments.
	assert.Nil(t, SubIndex(12.05, PM25))
	assert.Nil(t, SubIndex(54.5, O3))
}

func TestSubIndex_UnknownPollutant(t *testing.T) {
	assert.Nil(t, SubIndex(10, Pollutant("CO")))
}

func TestSubIndex_NonDecreasing(t *testing.T) {
	for _, p := range Pollutants {
		table := Table(p)
		require.NotEmpty(t, table)
		max := table[len(table)-1].ConcHigh

		prev := -1.0
		for c := 0.0; c <= max; c += 0.05 {
			v := SubIndex(c, p)
			if v == nil {
				continue
			}
			assert.GreaterOrEqual(t, *v, prev, "%s at %.2f", p, c)
			prev = *v
		}
	}
}

func TestTable_SegmentsDisjoint(t *testing.T) {
	for _, p := range Pollutants {
		table := Table(p)
		for i := 1; i < len(table); i++ {
			assert.Greater(t, table[i].ConcLow, table[i-1].ConcHigh, "%s segment %d", p, i)
		}
	}
}

func TestTable_ReturnsCopy(t *testing.T) {
	table := Table(PM25)
	table[0].IndexHigh = 999

	v := SubIndex(12, PM25)
	require.NotNil(t, v)
	assert.InDelta(t, 50.0, *v, 1e-9)
}

func TestSubIndex_ScenarioValues(t *testing.T) {
	no2 := SubIndex(NO2.IndexUnits(0.02), NO2)
	o3 := SubIndex(O3.IndexUnits(0.04), O3)
	pm := SubIndex(PM25.IndexUnits(10), PM25)
	require.NotNil(t, no2)
	require.NotNil(t, o3)
	require.NotNil(t, pm)

	assert.InDelta(t, 18.87, *no2, 0.01)
	assert.InDelta(t, 37.04, *o3, 0.01)
	assert.InDelta(t, 41.67, *pm, 0.01)

	combined := Combine(pm, o3, no2)
	require.NotNil(t, combined)
	assert.InDelta(t, 41.67, *combined, 0.01)

	level, ok := LevelOf(combined)
	require.True(t, ok)
	assert.Equal(t, LevelGood, level)
}

func TestCombine(t *testing.T) {
	a, b := 10.0, 42.0

	v := Combine(&a, nil, &b)
	require.NotNil(t, v)
	assert.Equal(t, 42.0, *v)

	v = Combine(nil, &a, nil)
	require.NotNil(t, v)
	assert.Equal(t, 10.0, *v)

	assert.Nil(t, Combine(nil, nil, nil))
	assert.Nil(t, Combine())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		aqi      float64
		expected Level
	}{
		{0, LevelGood},
		{49, LevelGood},
		{50, LevelGood},
		{51, LevelModerate},
		{100, LevelModerate},
		{100.5, LevelUnhealthySensitive},
		{150, LevelUnhealthySensitive},
		{200, LevelUnhealthy},
		{300, LevelVeryUnhealthy},
		{301, LevelHazardous},
		{500, LevelHazardous},
	}

	for _, c := range cases {
		assert.Equal(t, c.expected, Classify(c.aqi), "aqi=%v", c.aqi)
	}
}

func TestLevelOf_Undefined(t *testing.T) {
	level, ok := LevelOf(nil)
	assert.False(t, ok)
	assert.Empty(t, level)
}

func TestLevel_Severity(t *testing.T) {
	assert.Equal(t, 0, LevelGood.Severity())
	assert.Equal(t, 2, LevelUnhealthySensitive.Severity())
	assert.Equal(t, 5, LevelHazardous.Severity())
	assert.Equal(t, -1, Level("Bueno").Severity())
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("Unhealthy")
	require.NoError(t, err)
	assert.Equal(t, LevelUnhealthy, l)

	_, err = ParseLevel("Insalubre")
	assert.Error(t, err)
}

func TestParsePollutant(t *testing.T) {
	cases := map[string]Pollutant{
		"NO2":   NO2,
		"no2":   NO2,
		"O3":    O3,
		"PM2.5": PM25,
		"pm25":  PM25,
		"PM_25": PM25,
	}
	for in, expected := range cases {
		p, err := ParsePollutant(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, p, in)
	}

	_, err := ParsePollutant("CO")
	assert.Error(t, err)
}

func TestPollutant_IndexUnits(t *testing.T) {
	assert.InDelta(t, 20.0, NO2.IndexUnits(0.02), 1e-12)
	assert.InDelta(t, 40.0, O3.IndexUnits(0.04), 1e-12)
	assert.InDelta(t, 10.0, PM25.IndexUnits(10), 1e-12)
	assert.Equal(t, "ppb", O3.IndexUnit())
	assert.Equal(t, "ppm", NO2.SourceUnit())
	assert.Equal(t, "µg/m³", PM25.SourceUnit())
}
