package domain

import "time"

// Redistributed is a corrected series carried back onto the native sub-daily
// grid. Only RedistributeVariables are populated.
type Redistributed struct {
	Key    SeriesKey
	Times  []time.Time
	Values []Met
}

// Redistribute scales each corrected daily value by the raw forecast's
// within-day proportion of its daily mean:
//
//	value = corrected_daily * raw_subdaily / raw_daily_mean
//
// A zero daily mean leaves the cell null and is reported; it is never divided.
func Redistribute(f *Forecast, raw Daily, deb Debiased) (Redistributed, []*ZeroMeanError, error) {
	if raw.Member != deb.Key.Member {
		return Redistributed{}, nil, &JoinError{Key: deb.Key, Component: "raw daily", Reason: "member mismatch"}
	}
	rawIdx := dayIndex(raw.Days)
	debIdx := dayIndex(deb.Days)

	subdaily := f.values[raw.Member]
	if subdaily == nil {
		return Redistributed{}, nil, &JoinError{Key: deb.Key, Component: "forecast", Reason: "member not in forecast"}
	}

	out := Redistributed{Key: deb.Key, Times: f.Times, Values: make([]Met, len(f.Times))}
	var reports []*ZeroMeanError
	reported := make(map[time.Time]map[Variable]bool)

	for i, t := range f.Times {
		day := DayOf(t)
		ri, okRaw := rawIdx[day]
		di, okDeb := debIdx[day]
		if !okRaw || !okDeb {
			continue
		}
		for _, v := range RedistributeVariables {
			sub, ok := subdaily[i].Get(v)
			if !ok {
				continue
			}
			corrected, ok := deb.Values[di].Get(v)
			if !ok {
				continue
			}
			mean, ok := raw.Values[ri].Get(v)
			if !ok {
				continue
			}
			if mean == 0 {
				if !reported[day][v] {
					if reported[day] == nil {
						reported[day] = make(map[Variable]bool)
					}
					reported[day][v] = true
					reports = append(reports, &ZeroMeanError{Key: deb.Key, Day: day, Variable: v})
				}
				continue
			}
			out.Values[i][v] = Valid(corrected * sub / mean)
		}
	}
	return out, reports, nil
}

func dayIndex(days []time.Time) map[time.Time]int {
	idx := make(map[time.Time]int, len(days))
	for i, d := range days {
		idx[d] = i
	}
	return idx
}
