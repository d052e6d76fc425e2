// Package synth generates deterministic synthetic weather for fixtures and
// end-to-end tests. A single "true" site climate drives both the site
// observations and the forecasts, which add a fixed bias and per-member
// spread, so fitted coefficients have something real to recover.
package synth

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

// Options shape the generated data.
type Options struct {
	Seed     uint64
	Members  int
	Days     int     // forecast horizon per issue date
	WarmBias float64 // kelvin added to every forecast temperature
	Spread   float64 // per-member temperature spread, kelvin
}

// DefaultOptions match the production grid.
func DefaultOptions() Options {
	return Options{Seed: 1, Members: 21, Days: 2, WarmBias: 1.5, Spread: 0.8}
}

type dayState struct {
	tempAnom float64
	rhAnom   float64
	windAnom float64
	cloud    float64
	wet      bool
}

// state draws the weather regime of a UTC day. It depends only on the seed
// and the day, so overlapping issue dates agree.
func state(seed uint64, day time.Time) dayState {
	src := rand.NewPCG(seed, uint64(day.Unix()/86400))
	n := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	return dayState{
		tempAnom: 2.5 * n.Rand(),
		rhAnom:   8 * n.Rand(),
		windAnom: n.Rand(),
		cloud:    math.Min(1, math.Max(0.1, 0.7+0.2*n.Rand())),
		wet:      n.Rand() > 1,
	}
}

// Truth is the site weather at t.
func Truth(seed uint64, t time.Time) domain.Met {
	t = t.UTC()
	s := state(seed, domain.DayOf(t))
	hour := float64(t.Hour()) + float64(t.Minute())/60
	season := math.Sin(2 * math.Pi * float64(t.YearDay()-110) / 365)
	diurnal := math.Sin(2 * math.Pi * (hour - 9) / 24)

	temp := 283 + 8*season + 4*diurnal + s.tempAnom
	rh := math.Min(100, math.Max(5, 70-15*diurnal+s.rhAnom))
	wind := math.Max(0.2, 3+math.Cos(2*math.Pi*hour/24)+s.windAnom)
	sw := 0.0
	if hour > 6 && hour < 18 {
		sw = 850 * s.cloud * math.Sin(math.Pi*(hour-6)/12)
	}
	lw := 300 + 1.5*(temp-283) + 40*(1-s.cloud)
	precip := 0.0
	if s.wet {
		precip = 3e-5 * (1 + diurnal)
	}

	var m domain.Met
	m[domain.AirTemp] = domain.Valid(temp)
	m[domain.RelHum] = domain.Valid(rh)
	m[domain.WindSpeed] = domain.Valid(wind)
	m[domain.ShortWave] = domain.Valid(sw)
	m[domain.LongWave] = domain.Valid(lw)
	m[domain.PrecipRate] = domain.Valid(precip)
	return m
}

// Forecast builds the 6-hourly rows of every member for one issue date.
func Forecast(issue time.Time, opts Options) []domain.ForecastRow {
	issue = domain.DayOf(issue)
	steps := opts.Days * int(24*time.Hour/domain.DefaultCadence)
	rows := make([]domain.ForecastRow, 0, opts.Members*steps)
	for m := 1; m <= opts.Members; m++ {
		src := rand.NewPCG(opts.Seed^0x9e3779b97f4a7c15, uint64(issue.Unix()/86400)<<8|uint64(m))
		spread := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
		for i := range steps {
			ts := issue.Add(time.Duration(i) * domain.DefaultCadence)
			truth := Truth(opts.Seed, ts)
			v := truth
			v[domain.AirTemp] = domain.Valid(truth[domain.AirTemp].Float64 + opts.WarmBias + opts.Spread*spread.Rand())
			v[domain.RelHum] = domain.Valid(math.Min(100, math.Max(0, truth[domain.RelHum].Float64-5+2*spread.Rand())))
			v[domain.WindSpeed] = domain.Valid(math.Max(0, 1.2*truth[domain.WindSpeed].Float64))
			v[domain.LongWave] = domain.Valid(truth[domain.LongWave].Float64 - 10)
			rows = append(rows, domain.ForecastRow{Member: m, Time: ts, Values: v})
		}
	}
	return rows
}

// Observations builds hourly site readings for days starting at from.
func Observations(from time.Time, days int, opts Options) []domain.ObservationRow {
	from = domain.DayOf(from)
	rows := make([]domain.ObservationRow, 0, days*24)
	for h := range days * 24 {
		ts := from.Add(time.Duration(h) * time.Hour)
		rows = append(rows, domain.ObservationRow{Time: ts, Values: Truth(opts.Seed, ts)})
	}
	return rows
}
