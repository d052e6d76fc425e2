package domain

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// Daily holds per-UTC-day means for one forecast member. Member is 0 for site
// observations.
type Daily struct {
	Member int
	Days   []time.Time
	Values []Met
}

// At returns the aggregate for day, if the day is present.
func (d Daily) At(day time.Time) (Met, bool) {
	day = DayOf(day)
	for i, dd := range d.Days {
		if dd.Equal(day) {
			return d.Values[i], true
		}
	}
	return Met{}, false
}

// AggregateDaily computes per-member daily means. A variable with fewer than
// expectedPerDay valid readings on a day is null for that day and reported;
// the short day is never imputed.
func AggregateDaily(f *Forecast, expectedPerDay int) ([]Daily, []*IncompleteDayError) {
	var reports []*IncompleteDayError
	out := make([]Daily, 0, len(f.members))
	for _, m := range f.members {
		d, r := aggregate(m, f.Times, f.values[m], expectedPerDay)
		out = append(out, d)
		reports = append(reports, r...)
	}
	return out, reports
}

// AggregateObservations computes daily means of site readings.
func AggregateObservations(o *Observations, expectedPerDay int) (Daily, []*IncompleteDayError) {
	vals := make([]Met, len(o.times))
	for i, t := range o.times {
		vals[i] = o.byTS[t]
	}
	return aggregate(0, o.times, vals, expectedPerDay)
}

func aggregate(member int, times []time.Time, vals []Met, expected int) (Daily, []*IncompleteDayError) {
	d := Daily{Member: member}
	var reports []*IncompleteDayError

	start := 0
	for start < len(times) {
		day := DayOf(times[start])
		end := start
		for end < len(times) && DayOf(times[end]).Equal(day) {
			end++
		}

		var agg Met
		for _, v := range Variables {
			xs := make([]float64, 0, end-start)
			for _, m := range vals[start:end] {
				if x, ok := m.Get(v); ok {
					xs = append(xs, x)
				}
			}
			if len(xs) < expected || len(xs) == 0 {
				reports = append(reports, &IncompleteDayError{Member: member, Day: day, Variable: v, Have: len(xs), Want: expected})
				continue
			}
			agg[v] = Valid(floats.Sum(xs) / float64(len(xs)))
		}

		d.Days = append(d.Days, day)
		d.Values = append(d.Values, agg)
		start = end
	}
	return d, reports
}
