package domain

import (
	"fmt"
	"slices"
	"time"
)

// OffsetPolicy selects which interpolation-minus-observation offset is
// removed from a group.
type OffsetPolicy int

const (
	// OffsetMaxOfGroup groups the series by UTC day. The offset is defined
	// only at each day's anchor hour and the group maximum spreads it over the
	// day. Days without an anchor keep the previous day's offset.
	OffsetMaxOfGroup OffsetPolicy = iota
	// OffsetAnchorHour subtracts the offset at the first anchor hour from the
	// whole series.
	OffsetAnchorHour
)

func (p OffsetPolicy) String() string {
	switch p {
	case OffsetMaxOfGroup:
		return "max-of-group"
	case OffsetAnchorHour:
		return "anchor-hour"
	default:
		return fmt.Sprintf("offset-policy(%d)", int(p))
	}
}

// ParseOffsetPolicy parses the configuration spelling of a policy.
func ParseOffsetPolicy(s string) (OffsetPolicy, error) {
	switch s {
	case "max-of-group":
		return OffsetMaxOfGroup, nil
	case "anchor-hour":
		return OffsetAnchorHour, nil
	default:
		return 0, fmt.Errorf("unknown offset policy %q", s)
	}
}

// OffsetVariables are re-anchored to observations. Wind speed is never offset.
var OffsetVariables = []Variable{AirTemp, RelHum}

// CorrectOffset anchors an interpolated series to site observations. An
// anchor is the first hour of a group at which both the interpolated value
// and an observation exist; its offset is interpolated - observed.
//
// Hours before the first anchor take the observed value and every anchor
// hour is the observation itself. Other hours take interpolated minus their
// group's offset. A variable with no anchor is left unchanged and reported.
func CorrectOffset(h Hourly, obs *Observations, policy OffsetPolicy) (Hourly, []*AnchorMissingError) {
	out := Hourly{Key: h.Key, Times: h.Times, Values: slices.Clone(h.Values)}
	var reports []*AnchorMissingError

	group := func(time.Time) time.Time { return time.Time{} }
	if policy == OffsetMaxOfGroup {
		group = DayOf
	}

	for _, v := range OffsetVariables {
		first := -1
		anchored := make([]bool, len(h.Times))
		offsets := make(map[time.Time]float64)
		observed := make([]Met, len(h.Times))
		for i, t := range h.Times {
			o, ok := obs.At(t)
			if !ok {
				continue
			}
			observed[i] = o
			y, okObs := o.Get(v)
			x, okInterp := h.Values[i].Get(v)
			if !okObs || !okInterp {
				continue
			}
			g := group(t)
			if _, seen := offsets[g]; seen {
				continue
			}
			offsets[g] = x - y
			anchored[i] = true
			if first < 0 {
				first = i
			}
		}
		if first < 0 {
			reports = append(reports, &AnchorMissingError{Key: h.Key, Variable: v})
			continue
		}

		var offset float64
		for i, t := range h.Times {
			if off, ok := offsets[group(t)]; ok {
				offset = off
			}
			switch {
			case i < first || anchored[i]:
				out.Values[i][v] = observed[i][v]
			default:
				if x, ok := h.Values[i].Get(v); ok {
					out.Values[i][v] = Valid(x - offset)
				}
			}
		}
	}
	return out, reports
}
