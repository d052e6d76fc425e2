package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Coefficient is one fitted linear correction obs = Intercept + Slope*forecast
// with Gaussian residuals of standard deviation ResidualSD.
type Coefficient struct {
	Intercept  float64 `json:"intercept"`
	Slope      float64 `json:"slope"`
	ResidualSD float64 `json:"residual_sd"`
	N          int     `json:"n"`
}

// Apply corrects a raw forecast value.
func (c Coefficient) Apply(raw float64) float64 {
	return c.Intercept + c.Slope*raw
}

// CoefficientEntry is a Coefficient with its key, as persisted.
type CoefficientEntry struct {
	Bin      int      `json:"bin"`
	Member   int      `json:"member"`
	Variable Variable `json:"variable"`
	Coefficient
}

type coefKey struct {
	bin    int
	member int
	v      Variable
}

// CoefficientSet is an immutable table of fitted coefficients keyed by
// (day-of-year bin, forecast member, variable).
type CoefficientSet struct {
	binWidth int
	entries  map[coefKey]Coefficient
}

// NewCoefficientSet builds a set from persisted entries.
func NewCoefficientSet(binWidth int, entries []CoefficientEntry) (*CoefficientSet, error) {
	if binWidth < 1 || binWidth > 365 {
		return nil, fmt.Errorf("bin width %d outside 1..365", binWidth)
	}
	s := &CoefficientSet{binWidth: binWidth, entries: make(map[coefKey]Coefficient, len(entries))}
	bins := NumBins(binWidth)
	for _, e := range entries {
		if e.Bin < 0 || e.Bin >= bins {
			return nil, fmt.Errorf("coefficient bin %d outside 0..%d", e.Bin, bins-1)
		}
		k := coefKey{e.Bin, e.Member, e.Variable}
		if _, dup := s.entries[k]; dup {
			return nil, fmt.Errorf("duplicate coefficient for bin %d member %d %s", e.Bin, e.Member, e.Variable)
		}
		s.entries[k] = e.Coefficient
	}
	return s, nil
}

// BinWidth is the number of days per bin.
func (s *CoefficientSet) BinWidth() int { return s.binWidth }

// Lookup returns the coefficient for the bin containing day.
func (s *CoefficientSet) Lookup(day time.Time, member int, v Variable) (Coefficient, bool) {
	c, ok := s.entries[coefKey{BinOf(day.YearDay(), s.binWidth), member, v}]
	return c, ok
}

// Entries returns every coefficient in (bin, member, variable) order.
func (s *CoefficientSet) Entries() []CoefficientEntry {
	out := make([]CoefficientEntry, 0, len(s.entries))
	for k, c := range s.entries {
		out = append(out, CoefficientEntry{Bin: k.bin, Member: k.member, Variable: k.v, Coefficient: c})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Bin != b.Bin {
			return a.Bin < b.Bin
		}
		if a.Member != b.Member {
			return a.Member < b.Member
		}
		return a.Variable < b.Variable
	})
	return out
}

// BinOf maps a day of year to its bin. Day 366 folds into day 365 so leap
// years do not open a partial extra bin.
func BinOf(doy, width int) int {
	if doy > 365 {
		doy = 365
	}
	if doy < 1 {
		doy = 1
	}
	return (doy - 1) / width
}

// NumBins is the number of bins covering a 365-day year.
func NumBins(width int) int {
	return (365 + width - 1) / width
}

// DailyPair is one day of forecast aggregates matched with the observed
// aggregates for the same day.
type DailyPair struct {
	Member   int
	Day      time.Time
	Forecast Met
	Observed Met
}

// PairHistory joins member aggregates with observation aggregates by day.
// Days without an observation aggregate are dropped; per-variable validity is
// checked at fit time.
func PairHistory(forecast []Daily, obs Daily) []DailyPair {
	idx := make(map[time.Time]Met, len(obs.Days))
	for i, d := range obs.Days {
		idx[d] = obs.Values[i]
	}
	var pairs []DailyPair
	for _, fd := range forecast {
		for i, day := range fd.Days {
			o, ok := idx[day]
			if !ok {
				continue
			}
			pairs = append(pairs, DailyPair{Member: fd.Member, Day: day, Forecast: fd.Values[i], Observed: o})
		}
	}
	return pairs
}

// FitOptions control coefficient fitting.
type FitOptions struct {
	BinWidth int // days per bin
	MinPairs int // minimum paired days per (bin, member, variable)
}

// FitCoefficients regresses observations on forecasts for every bin, member
// and debiased variable. Any cell with too few pairs, or with no forecast
// variance, fails the whole fit with InsufficientCalibrationDataError.
func FitCoefficients(pairs []DailyPair, opts FitOptions) (*CoefficientSet, error) {
	if opts.BinWidth < 1 || opts.BinWidth > 365 {
		return nil, fmt.Errorf("bin width %d outside 1..365", opts.BinWidth)
	}
	need := max(opts.MinPairs, 2)

	type cell struct{ bin, member int }
	grouped := make(map[cell][]DailyPair)
	memberSet := make(map[int]struct{})
	for _, p := range pairs {
		c := cell{BinOf(p.Day.YearDay(), opts.BinWidth), p.Member}
		grouped[c] = append(grouped[c], p)
		memberSet[p.Member] = struct{}{}
	}
	if len(memberSet) == 0 {
		return nil, &InsufficientCalibrationDataError{Need: need, Reason: "no paired history"}
	}
	members := make([]int, 0, len(memberSet))
	for m := range memberSet {
		members = append(members, m)
	}
	sort.Ints(members)

	var errs []error
	var entries []CoefficientEntry
	for bin := range NumBins(opts.BinWidth) {
		for _, m := range members {
			ps := grouped[cell{bin, m}]
			for _, v := range DebiasVariables {
				coef, err := fitCell(ps, v, need)
				if err != nil {
					err.Bin, err.Member, err.Variable = bin, m, v
					errs = append(errs, err)
					continue
				}
				entries = append(entries, CoefficientEntry{Bin: bin, Member: m, Variable: v, Coefficient: coef})
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return NewCoefficientSet(opts.BinWidth, entries)
}

func fitCell(ps []DailyPair, v Variable, need int) (Coefficient, *InsufficientCalibrationDataError) {
	xs := make([]float64, 0, len(ps))
	ys := make([]float64, 0, len(ps))
	for _, p := range ps {
		x, okx := p.Forecast.Get(v)
		y, oky := p.Observed.Get(v)
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < need {
		return Coefficient{}, &InsufficientCalibrationDataError{Have: len(xs), Need: need}
	}
	if floats.Max(xs) == floats.Min(xs) {
		return Coefficient{}, &InsufficientCalibrationDataError{Have: len(xs), Need: need, Reason: "no forecast variance"}
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	residuals := make([]float64, len(xs))
	for i := range xs {
		residuals[i] = ys[i] - (alpha + beta*xs[i])
	}
	return Coefficient{
		Intercept:  alpha,
		Slope:      beta,
		ResidualSD: stat.StdDev(residuals, nil),
		N:          len(xs),
	}, nil
}
