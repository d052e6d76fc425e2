package domain

import (
	"database/sql"
	"fmt"
	"time"
)

// Mode selects the processing path for a run.
type Mode int

const (
	// ModePassThrough holds the raw forecast on the hourly grid.
	ModePassThrough Mode = iota
	// ModeDebias applies fitted coefficients without noise.
	ModeDebias
	// ModeDebiasNoise applies coefficients and fans out noise members.
	ModeDebiasNoise
)

func (m Mode) String() string {
	switch m {
	case ModePassThrough:
		return "pass-through"
	case ModeDebias:
		return "debias"
	case ModeDebiasNoise:
		return "debias+noise"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// SelectMode maps the two run switches to a mode. Noise without debiasing has
// no residuals to draw from and falls back to pass-through.
func SelectMode(downscale, addNoise bool) Mode {
	switch {
	case !downscale:
		return ModePassThrough
	case addNoise:
		return ModeDebiasNoise
	default:
		return ModeDebias
	}
}

// DownscaleOptions carry everything a member's series are built from besides
// the forecast itself.
type DownscaleOptions struct {
	Mode         Mode
	Coefficients *CoefficientSet // required unless pass-through
	Noise        NoiseOptions    // Members is ignored unless ModeDebiasNoise
	Observations *Observations   // nil skips offset correction
	Offset       OffsetPolicy
	Kernel       Kernel
}

const dailyCadence = 24 * time.Hour

// DownscaleMember builds every output series for one forecast member. raw is
// the member's daily aggregate. A returned error drops the member; the Report
// lists cells left null along the way.
func DownscaleMember(f *Forecast, raw Daily, opts DownscaleOptions) ([]OutputSeries, Report, error) {
	if opts.Kernel == nil {
		return nil, Report{}, fmt.Errorf("downscale member %d: no solar kernel", raw.Member)
	}
	if opts.Mode == ModePassThrough {
		s, err := passThrough(f, raw.Member, opts.Kernel)
		if err != nil {
			return nil, Report{}, err
		}
		return []OutputSeries{s}, Report{}, nil
	}
	if opts.Coefficients == nil {
		return nil, Report{}, fmt.Errorf("downscale member %d: %s mode needs coefficients", raw.Member, opts.Mode)
	}

	noise := opts.Noise
	if opts.Mode != ModeDebiasNoise {
		noise.Members = 0
	}
	debs, err := ApplyCoefficients(raw, opts.Coefficients, noise)
	if err != nil {
		return nil, Report{}, err
	}

	hours := f.Hours()
	precip := HoldHourly(f.Times, f.Column(raw.Member, PrecipRate), f.Cadence, hours)

	var report Report
	out := make([]OutputSeries, 0, len(debs))
	for _, deb := range debs {
		red, zeros, err := Redistribute(f, raw, deb)
		if err != nil {
			return nil, Report{}, fmt.Errorf("redistribute %s: %w", deb.Key, err)
		}
		report.ZeroMeans = append(report.ZeroMeans, zeros...)

		hourly, gaps, err := InterpolateHourly(red, hours)
		if err != nil {
			return nil, Report{}, fmt.Errorf("interpolate %s: %w", deb.Key, err)
		}
		report.Interpolation = append(report.Interpolation, gaps...)

		if opts.Observations != nil {
			var anchors []*AnchorMissingError
			hourly, anchors = CorrectOffset(hourly, opts.Observations, opts.Offset)
			report.Anchors = append(report.Anchors, anchors...)
		}

		comps := HourlyComponents("interpolated", hourly, RedistributeVariables...)
		comps = append(comps,
			Component{Name: "shortwave", Key: deb.Key, Variable: ShortWave, Times: hours,
				Values: DisaggregateShortwave(deb.Days, debiasedColumn(deb, ShortWave), dailyCadence, hours, opts.Kernel)},
			Component{Name: "longwave", Key: deb.Key, Variable: LongWave, Times: hours,
				Values: HoldHourly(deb.Days, debiasedColumn(deb, LongWave), dailyCadence, hours)},
			Component{Name: "precipitation", Key: deb.Key, Variable: PrecipRate, Times: hours, Values: precip},
		)
		s, err := Assemble(f.Issue, deb.Key, comps)
		if err != nil {
			return nil, Report{}, err
		}
		out = append(out, s)
	}
	return out, report, nil
}

// passThrough holds the raw values over the hours they cover. Shortwave still
// takes its diurnal shape from the clear-sky kernel.
func passThrough(f *Forecast, member int, k Kernel) (OutputSeries, error) {
	key := SeriesKey{Member: member}
	hours := f.Hours()
	comps := make([]Component, 0, len(Variables))
	for _, v := range Variables {
		col := f.Column(member, v)
		vals := HoldHourly(f.Times, col, f.Cadence, hours)
		if v == ShortWave {
			vals = DisaggregateShortwave(f.Times, col, f.Cadence, hours, k)
		}
		comps = append(comps, Component{Name: "raw", Key: key, Variable: v, Times: hours, Values: vals})
	}
	return Assemble(f.Issue, key, comps)
}

func debiasedColumn(d Debiased, v Variable) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(d.Values))
	for i, m := range d.Values {
		out[i] = m[v]
	}
	return out
}
