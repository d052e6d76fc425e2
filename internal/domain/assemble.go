package domain

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"
)

// ZeroCelsius is 0 °C in kelvin.
const ZeroCelsius = 273.15

// KelvinToCelsius converts an absolute temperature to site display units.
func KelvinToCelsius(k float64) float64 { return k - ZeroCelsius }

// CelsiusToKelvin is the inverse of KelvinToCelsius.
func CelsiusToKelvin(c float64) float64 { return c + ZeroCelsius }

// PrecipToRain converts a precipitation flux [kg m⁻² s⁻¹] to a rain rate
// [m/day].
func PrecipToRain(flux float64) float64 { return flux * 86400 / 1000 }

// Column is one output driver column.
type Column int

const (
	ColRain Column = iota
	ColSnow
	ColAirTemp
	ColWindSpeed
	ColRelHum
	ColShortWave
	ColLongWave

	numColumns
)

// OutputHeader is the driver file header, in column order after time.
var OutputHeader = []string{"time", "Rain", "Snow", "AirTemp", "WindSpeed", "RelHum", "ShortWave", "LongWave"}

// OutputTimeLayout formats the driver time column.
const OutputTimeLayout = "2006-01-02 15:04"

// OutputRow is one hourly driver record. Cells stay nullable; a gap is
// written as a gap.
type OutputRow struct {
	Time   time.Time
	Values [numColumns]sql.NullFloat64
}

// Get returns one column.
func (r OutputRow) Get(c Column) sql.NullFloat64 { return r.Values[c] }

// OutputSeries is the assembled table for one (member, noise) pair.
type OutputSeries struct {
	Issue time.Time
	Key   SeriesKey
	Rows  []OutputRow
}

// FileName encodes issue date, forecast member and noise member.
func (s OutputSeries) FileName() string {
	return fmt.Sprintf("met_%s_m%02d_n%02d.csv", s.Issue.Format("20060102"), s.Key.Member, s.Key.Noise)
}

// NullCells counts missing cells across all columns.
func (s OutputSeries) NullCells() int {
	n := 0
	for _, r := range s.Rows {
		for _, v := range r.Values {
			if !v.Valid {
				n++
			}
		}
	}
	return n
}

// Component is one hourly variable joined into an output series. Its key must
// match the series being assembled.
type Component struct {
	Name     string
	Key      SeriesKey
	Variable Variable
	Times    []time.Time
	Values   []sql.NullFloat64
}

// HourlyComponents splits an hourly series into per-variable components.
func HourlyComponents(name string, h Hourly, vars ...Variable) []Component {
	out := make([]Component, 0, len(vars))
	for _, v := range vars {
		vals := make([]sql.NullFloat64, len(h.Values))
		for i, m := range h.Values {
			vals[i] = m[v]
		}
		out = append(out, Component{Name: name, Key: h.Key, Variable: v, Times: h.Times, Values: vals})
	}
	return out
}

var columnFor = map[Variable]Column{
	AirTemp:    ColAirTemp,
	RelHum:     ColRelHum,
	WindSpeed:  ColWindSpeed,
	ShortWave:  ColShortWave,
	LongWave:   ColLongWave,
	PrecipRate: ColRain,
}

// Assemble outer-joins components on timestamp into one ordered table,
// converting units and clamping to physical bounds. A component with another
// key, a duplicate timestamp or a variable assigned twice is a JoinError.
func Assemble(issue time.Time, key SeriesKey, comps []Component) (OutputSeries, error) {
	seenVar := make(map[Variable]string)
	rowIdx := make(map[time.Time]int)
	var times []time.Time

	for _, c := range comps {
		if c.Key != key {
			return OutputSeries{}, &JoinError{Key: key, Component: c.Name, Reason: "component belongs to " + c.Key.String()}
		}
		if len(c.Times) != len(c.Values) {
			return OutputSeries{}, &JoinError{Key: key, Component: c.Name, Reason: "times and values differ in length"}
		}
		if prev, dup := seenVar[c.Variable]; dup {
			return OutputSeries{}, &JoinError{Key: key, Component: c.Name, Reason: c.Variable.String() + " already supplied by " + prev}
		}
		seenVar[c.Variable] = c.Name

		seen := make(map[time.Time]struct{}, len(c.Times))
		for _, t := range c.Times {
			t = t.UTC()
			if _, dup := seen[t]; dup {
				return OutputSeries{}, &JoinError{Key: key, Component: c.Name, Reason: "duplicate timestamp " + t.Format(OutputTimeLayout)}
			}
			seen[t] = struct{}{}
			if _, ok := rowIdx[t]; !ok {
				rowIdx[t] = -1
				times = append(times, t)
			}
		}
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	rows := make([]OutputRow, len(times))
	for i, t := range times {
		rowIdx[t] = i
		rows[i].Time = t
	}

	for _, c := range comps {
		col, ok := columnFor[c.Variable]
		if !ok {
			return OutputSeries{}, &JoinError{Key: key, Component: c.Name, Reason: "no output column for " + c.Variable.String()}
		}
		for i, t := range c.Times {
			v := c.Values[i]
			if !v.Valid {
				continue
			}
			rows[rowIdx[t.UTC()]].Values[col] = Valid(toOutputUnits(c.Variable, v.Float64))
		}
	}

	for i := range rows {
		if rows[i].Values[ColRain].Valid {
			rows[i].Values[ColSnow] = Valid(0)
		}
	}

	return OutputSeries{Issue: DayOf(issue), Key: key, Rows: rows}, nil
}

func toOutputUnits(v Variable, x float64) float64 {
	switch v {
	case AirTemp:
		return KelvinToCelsius(x)
	case RelHum:
		return math.Min(100, math.Max(0, x))
	case PrecipRate:
		return math.Max(0, PrecipToRain(x))
	default:
		return math.Max(0, x)
	}
}
