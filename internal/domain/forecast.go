package domain

import (
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"time"
)

// IssueLayout formats forecast issue dates and calendar days.
const IssueLayout = "2006-01-02"

// DefaultCadence is the native forecast step.
const DefaultCadence = 6 * time.Hour

// ForecastRow is one normalized input record.
type ForecastRow struct {
	Member int
	Time   time.Time
	Values Met
}

// BoundaryPolicy decides how the first, partial forecast period is filled.
type BoundaryPolicy int

const (
	// CarryNextPeriodBackward fills missing flux values at a member's first
	// timestamp with the value of the next timestamp. Flux values are period
	// averages, and the first period has no preceding window in the file.
	CarryNextPeriodBackward BoundaryPolicy = iota
	// BoundaryNone leaves the first period as read.
	BoundaryNone
)

// FormOptions control forecast grid validation.
type FormOptions struct {
	Members  int           // expected member count; ids must be 1..Members
	Cadence  time.Duration // native step; defaults to DefaultCadence
	Boundary BoundaryPolicy
}

// Forecast is a validated, immutable member × time grid. All members share
// the same contiguous timestamps; a timestamp a member did not report holds
// an all-null row.
type Forecast struct {
	Issue   time.Time
	Cadence time.Duration
	Times   []time.Time

	members []int
	values  map[int][]Met
}

// NewForecast validates rows into a grid spanning the earliest to the latest
// timestamp of any member. Grid timestamps missing from a member become
// all-null rows. Duplicates, off-cadence timestamps and unknown members are
// GridErrors.
func NewForecast(issue time.Time, rows []ForecastRow, opts FormOptions) (*Forecast, error) {
	cadence := opts.Cadence
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	if len(rows) == 0 {
		return nil, &GridError{Reason: "no forecast rows"}
	}

	byMember := make(map[int][]ForecastRow)
	first, last := rows[0].Time.UTC(), rows[0].Time.UTC()
	for _, r := range rows {
		if opts.Members > 0 && (r.Member < 1 || r.Member > opts.Members) {
			return nil, &GridError{Member: r.Member, Time: r.Time, Reason: fmt.Sprintf("member id outside 1..%d", opts.Members)}
		}
		byMember[r.Member] = append(byMember[r.Member], r)
		if t := r.Time.UTC(); t.Before(first) {
			first = t
		} else if t.After(last) {
			last = t
		}
	}
	if opts.Members > 0 && len(byMember) != opts.Members {
		for m := 1; m <= opts.Members; m++ {
			if _, ok := byMember[m]; !ok {
				return nil, &GridError{Member: m, Reason: "member missing from forecast"}
			}
		}
	}

	members := make([]int, 0, len(byMember))
	for m := range byMember {
		members = append(members, m)
	}
	sort.Ints(members)

	f := &Forecast{
		Issue:   DayOf(issue),
		Cadence: cadence,
		members: members,
		values:  make(map[int][]Met, len(members)),
	}
	for t := first; !t.After(last); t = t.Add(cadence) {
		f.Times = append(f.Times, t)
	}

	for _, m := range members {
		mr := byMember[m]
		sort.Slice(mr, func(i, j int) bool { return mr[i].Time.Before(mr[j].Time) })

		vals := make([]Met, len(f.Times))
		for i, r := range mr {
			t := r.Time.UTC()
			if i > 0 && t.Equal(mr[i-1].Time.UTC()) {
				return nil, &GridError{Member: m, Time: t, Reason: "duplicate timestamp"}
			}
			if off := t.Sub(first); off%cadence != 0 {
				return nil, &GridError{Member: m, Time: t, Reason: fmt.Sprintf("%s after %s is not a multiple of %s", off, first.Format(time.RFC3339), cadence)}
			}
			vals[t.Sub(first)/cadence] = r.Values
		}

		if opts.Boundary == CarryNextPeriodBackward {
			vals = carryNextPeriodBackward(vals)
		}
		f.values[m] = vals
	}

	return f, nil
}

func carryNextPeriodBackward(vals []Met) []Met {
	if len(vals) < 2 {
		return vals
	}
	for _, v := range FluxVariables {
		if !vals[0][v].Valid && vals[1][v].Valid {
			vals[0][v] = vals[1][v]
		}
	}
	return vals
}

// Members returns the sorted member ids.
func (f *Forecast) Members() []int {
	return slices.Clone(f.members)
}

// Values returns a copy of one member's grid values, aligned with Times.
func (f *Forecast) Values(member int) []Met {
	return slices.Clone(f.values[member])
}

// Column returns one variable of one member, aligned with Times.
func (f *Forecast) Column(member int, v Variable) []sql.NullFloat64 {
	vals := f.values[member]
	out := make([]sql.NullFloat64, len(vals))
	for i, m := range vals {
		out[i] = m[v]
	}
	return out
}

// Hours is the hourly horizon of the forecast: from the first timestamp up to,
// but excluding, last timestamp + cadence.
func (f *Forecast) Hours() []time.Time {
	return Horizon(f.Times, f.Cadence)
}

// Horizon expands a coarse grid into the hours it covers.
func Horizon(times []time.Time, cadence time.Duration) []time.Time {
	if len(times) == 0 {
		return nil
	}
	start := times[0]
	end := times[len(times)-1].Add(cadence)
	hours := make([]time.Time, 0, int(end.Sub(start)/time.Hour))
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		hours = append(hours, t)
	}
	return hours
}

// HoldHourly repeats each coarse value over the hours of [t, t+cadence). Hours
// not covered by any coarse timestamp are null.
func HoldHourly(times []time.Time, values []sql.NullFloat64, cadence time.Duration, hours []time.Time) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(hours))
	j := 0
	for i, h := range hours {
		for j < len(times) && !h.Before(times[j].Add(cadence)) {
			j++
		}
		if j < len(times) && !h.Before(times[j]) {
			out[i] = values[j]
		}
	}
	return out
}

// ObservationRow is one site-sensor record in forecast units.
type ObservationRow struct {
	Time   time.Time
	Values Met
}

// Observations indexes site readings by timestamp.
type Observations struct {
	times []time.Time
	byTS  map[time.Time]Met
}

// NewObservations indexes rows. Duplicate timestamps are rejected.
func NewObservations(rows []ObservationRow) (*Observations, error) {
	o := &Observations{byTS: make(map[time.Time]Met, len(rows))}
	for _, r := range rows {
		t := r.Time.UTC()
		if _, dup := o.byTS[t]; dup {
			return nil, fmt.Errorf("duplicate observation at %s", t.Format(time.RFC3339))
		}
		o.byTS[t] = r.Values
		o.times = append(o.times, t)
	}
	sort.Slice(o.times, func(i, j int) bool { return o.times[i].Before(o.times[j]) })
	return o, nil
}

// At returns the reading at exactly t.
func (o *Observations) At(t time.Time) (Met, bool) {
	if o == nil {
		return Met{}, false
	}
	m, ok := o.byTS[t.UTC()]
	return m, ok
}

// Times returns the sorted observation timestamps.
func (o *Observations) Times() []time.Time {
	if o == nil {
		return nil
	}
	return slices.Clone(o.times)
}
