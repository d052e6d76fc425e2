package domain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Debiased is one (forecast member, noise member) series of corrected daily
// values. Temperature is still in kelvin.
type Debiased struct {
	Key    SeriesKey
	Days   []time.Time
	Values []Met
}

// NoiseOptions control stochastic fan-out. Members == 0 disables noise and
// yields a single noise member 0 per forecast member.
type NoiseOptions struct {
	Members int
	Seed    uint64
}

// NoiseIDs lists the noise member ids produced for opts.
func (o NoiseOptions) NoiseIDs() []int {
	if o.Members <= 0 {
		return []int{0}
	}
	ids := make([]int, o.Members)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

// noiseStream gives every (member, noise) pair its own PCG stream, so a pair's
// draws do not depend on which other pairs ran or in what order.
func noiseStream(key SeriesKey) uint64 {
	return uint64(key.Member)<<32 | uint64(key.Noise)
}

// ApplyCoefficients corrects one member's daily aggregates and fans them out
// into noise members. A missing raw value stays missing. A day with no
// coefficient for a present value is an error for the member.
func ApplyCoefficients(daily Daily, set *CoefficientSet, opts NoiseOptions) ([]Debiased, error) {
	noiseIDs := opts.NoiseIDs()
	out := make([]Debiased, 0, len(noiseIDs))

	for _, n := range noiseIDs {
		key := SeriesKey{Member: daily.Member, Noise: n}
		var src rand.Source
		if n > 0 {
			src = rand.NewPCG(opts.Seed, noiseStream(key))
		}

		d := Debiased{Key: key, Days: daily.Days, Values: make([]Met, len(daily.Values))}
		for i, day := range daily.Days {
			var corrected Met
			for _, v := range DebiasVariables {
				raw, ok := daily.Values[i].Get(v)
				if !ok {
					continue
				}
				c, found := set.Lookup(day, daily.Member, v)
				if !found {
					return nil, fmt.Errorf("apply coefficients: no coefficient for member %d %s on %s",
						daily.Member, v, day.Format(IssueLayout))
				}
				value := c.Apply(raw)
				if src != nil {
					value += distuv.Normal{Mu: 0, Sigma: c.ResidualSD, Src: src}.Rand()
				}
				corrected[v] = Valid(clampPhysical(v, value))
			}
			// precipitation is not debiased; carry the raw daily mean through
			corrected[PrecipRate] = daily.Values[i][PrecipRate]
			d.Values[i] = corrected
		}
		out = append(out, d)
	}
	return out, nil
}

// clampPhysical bounds a value to its physical domain.
func clampPhysical(v Variable, x float64) float64 {
	switch v {
	case RelHum:
		return math.Min(100, math.Max(0, x))
	case ShortWave, LongWave, WindSpeed, PrecipRate:
		return math.Max(0, x)
	default:
		return x
	}
}
