package series

// Reading is one row of a single-pollutant series. A nil Value is a missing reading.
type Reading struct {
	Key   Key
	Value *float64
}

// AlignedRecord holds every pollutant's concentration for one timestamp.
// A nil field means that pollutant had no reading at this timestamp.
type AlignedRecord struct {
	Key  Key
	NO2  *float64
	O3   *float64
	PM25 *float64
}

// Align performs a full outer join of the three series on their keys.
//
// Missing source readings are dropped before the join, so a pollutant is only
// present on a record when it had an actual value. Each distinct key produces exactly
// one record, sorted ascending (see SortKeys). When a series repeats a key the last
// reading wins.
func Align(no2, o3, pm25 []Reading) []AlignedRecord {
	byKey := make(map[Key]*AlignedRecord)
	var keys []Key

	merge := func(readings []Reading, set func(*AlignedRecord, *float64)) {
		for _, r := range readings {
			if r.Value == nil {
				continue
			}
			rec, ok := byKey[r.Key]
			if !ok {
				rec = &AlignedRecord{Key: r.Key}
				byKey[r.Key] = rec
				keys = append(keys, r.Key)
			}
			v := *r.Value
			set(rec, &v)
		}
	}

	merge(no2, func(rec *AlignedRecord, v *float64) { rec.NO2 = v })
	merge(o3, func(rec *AlignedRecord, v *float64) { rec.O3 = v })
	merge(pm25, func(rec *AlignedRecord, v *float64) { rec.PM25 = v })

	SortKeys(keys)

	records := make([]AlignedRecord, len(keys))
	for i, k := range keys {
		records[i] = *byKey[k]
	}
	return records
}

// Split turns aligned records back into three single-pollutant series (NO2, O3, PM2.5).
// Absent fields are carried as nil readings.
func Split(records []AlignedRecord) (no2, o3, pm25 []Reading) {
	no2 = make([]Reading, len(records))
	o3 = make([]Reading, len(records))
	pm25 = make([]Reading, len(records))
	for i, rec := range records {
		no2[i] = Reading{Key: rec.Key, Value: rec.NO2}
		o3[i] = Reading{Key: rec.Key, Value: rec.O3}
		pm25[i] = Reading{Key: rec.Key, Value: rec.PM25}
	}
	return
}
