package series

import (
	"sort"
	"strings"
	"time"
)

// Key is the composite "Fecha Hora" timestamp used to join pollutant series
type Key string

// NewKey builds the key exactly as the monitoring exports are joined: date, a space, time
func NewKey(fecha, hora string) Key {
	return Key(strings.TrimSpace(fecha) + " " + strings.TrimSpace(hora))
}

var keyLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

// Time parses the key. Hour "24:00" is accepted and means midnight of the following day.
func (k Key) Time() (time.Time, bool) {
	s := string(k)
	nextDay := false
	if i := strings.LastIndex(s, " 24:"); i >= 0 {
		s = s[:i] + " 00:" + s[i+4:]
		nextDay = true
	}

	for _, layout := range keyLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if nextDay {
				t = t.AddDate(0, 0, 1)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// SortKeys orders keys chronologically when every key parses, lexicographically otherwise
func SortKeys(keys []Key) {
	times := make(map[Key]time.Time, len(keys))
	for _, k := range keys {
		t, ok := k.Time()
		if !ok {
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
			return
		}
		times[k] = t
	}

	sort.Slice(keys, func(i, j int) bool {
		ti, tj := times[keys[i]], times[keys[j]]
		if ti.Equal(tj) {
			return keys[i] < keys[j]
		}
		return ti.Before(tj)
	})
}
