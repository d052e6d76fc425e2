package domain

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/interp"
)

// Hourly is one (forecast member, noise member) series on the hourly horizon.
type Hourly struct {
	Key    SeriesKey
	Times  []time.Time
	Values []Met
}

// InterpolateHourly fits one smooth curve per variable through the valid
// redistributed points and samples it at each hour. The x coordinate is
// fractional days since the first input timestamp.
//
// Hours before the first or after the last input timestamp are null, and so is
// any hour whose enclosing input interval has a missing endpoint. A variable
// with fewer than two valid points is null throughout and reported.
func InterpolateHourly(r Redistributed, hours []time.Time) (Hourly, []*InterpolationRangeError, error) {
	out := Hourly{Key: r.Key, Times: hours, Values: make([]Met, len(hours))}
	if len(r.Times) == 0 {
		var reports []*InterpolationRangeError
		for _, v := range RedistributeVariables {
			reports = append(reports, &InterpolationRangeError{Key: r.Key, Variable: v})
		}
		return out, reports, nil
	}

	origin := r.Times[0]
	dayFrac := func(t time.Time) float64 { return t.Sub(origin).Hours() / 24 }

	var reports []*InterpolationRangeError
	for _, v := range RedistributeVariables {
		var xs, ys []float64
		valid := make([]bool, len(r.Times))
		for i, t := range r.Times {
			if y, ok := r.Values[i].Get(v); ok {
				xs = append(xs, dayFrac(t))
				ys = append(ys, y)
				valid[i] = true
			}
		}
		if len(xs) < 2 {
			reports = append(reports, &InterpolationRangeError{Key: r.Key, Variable: v, Points: len(xs)})
			continue
		}

		var curve interp.FittablePredictor = &interp.NaturalCubic{}
		if len(xs) == 2 {
			curve = &interp.PiecewiseLinear{}
		}
		if err := curve.Fit(xs, ys); err != nil {
			return Hourly{}, nil, fmt.Errorf("fit %s %s: %w", r.Key, v, err)
		}

		for i, h := range hours {
			if !covered(r.Times, valid, h) {
				continue
			}
			out.Values[i][v] = Valid(curve.Predict(dayFrac(h)))
		}
	}
	return out, reports, nil
}

// covered reports whether h lies on a valid input point or strictly inside an
// interval whose endpoints are both valid.
func covered(times []time.Time, valid []bool, h time.Time) bool {
	j := sort.Search(len(times), func(k int) bool { return !times[k].Before(h) })
	switch {
	case j == len(times):
		return false
	case times[j].Equal(h):
		return valid[j]
	case j == 0:
		return false
	default:
		return valid[j-1] && valid[j]
	}
}
