package aqi

import "fmt"

// Level is the health category of an AQI value
type Level string

const (
	LevelGood               Level = "Good"
	LevelModerate           Level = "Moderate"
	LevelUnhealthySensitive Level = "Unhealthy for sensitive groups"
	LevelUnhealthy          Level = "Unhealthy"
	LevelVeryUnhealthy      Level = "Very unhealthy"
	LevelHazardous          Level = "Hazardous"
)

// upper bounds are inclusive
var levelBounds = []struct {
	upper float64
	level Level
}{
	{50, LevelGood},
	{100, LevelModerate},
	{150, LevelUnhealthySensitive},
	{200, LevelUnhealthy},
	{300, LevelVeryUnhealthy},
}

var levelOrder = []Level{
	LevelGood,
	LevelModerate,
	LevelUnhealthySensitive,
	LevelUnhealthy,
	LevelVeryUnhealthy,
	LevelHazardous,
}

// Classify maps a defined AQI onto its level
func Classify(aqi float64) Level {
	for _, b := range levelBounds {
		if aqi <= b.upper {
			return b.level
		}
	}
	return LevelHazardous
}

// LevelOf classifies an optional AQI. The second result is false when the AQI is
// undefined, in which case there is no level.
func LevelOf(aqi *float64) (Level, bool) {
	if aqi == nil {
		return "", false
	}
	return Classify(*aqi), true
}

// Severity orders levels from 0 (Good) to 5 (Hazardous); unknown levels are -1
func (l Level) Severity() int {
	for i, candidate := range levelOrder {
		if candidate == l {
			return i
		}
	}
	return -1
}

// ParseLevel validates a level label
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if l.Severity() < 0 {
		return "", fmt.Errorf("unknown AQI level: %q", s)
	}
	return l, nil
}
