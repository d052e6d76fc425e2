package domain

import (
	"database/sql"
	"fmt"
	"time"
)

// Variable identifies one physical meteorological quantity.
type Variable int

const (
	AirTemp    Variable = iota // K until assembly, then °C
	RelHum                     // %
	WindSpeed                  // m/s
	ShortWave                  // W/m²
	LongWave                   // W/m²
	PrecipRate                 // kg m⁻² s⁻¹

	numVariables
)

// Variables lists every variable in column order.
var Variables = []Variable{AirTemp, RelHum, WindSpeed, ShortWave, LongWave, PrecipRate}

// DebiasVariables are the variables that receive linear bias correction.
var DebiasVariables = []Variable{AirTemp, RelHum, WindSpeed, ShortWave, LongWave}

// RedistributeVariables are the state variables carried back to the sub-daily
// grid by the within-day shape of the raw forecast.
var RedistributeVariables = []Variable{AirTemp, RelHum, WindSpeed}

// FluxVariables are period averages rather than instantaneous states.
var FluxVariables = []Variable{ShortWave, LongWave, PrecipRate}

var variableNames = [numVariables]string{
	AirTemp:    "air_temperature",
	RelHum:     "relative_humidity",
	WindSpeed:  "wind_speed",
	ShortWave:  "shortwave",
	LongWave:   "longwave",
	PrecipRate: "precipitation_flux",
}

func (v Variable) String() string {
	if v < 0 || v >= numVariables {
		return fmt.Sprintf("variable(%d)", int(v))
	}
	return variableNames[v]
}

// MarshalText encodes the variable by its column name.
func (v Variable) MarshalText() ([]byte, error) {
	if v < 0 || v >= numVariables {
		return nil, fmt.Errorf("unknown variable %d", int(v))
	}
	return []byte(variableNames[v]), nil
}

// UnmarshalText decodes a column name into a Variable.
func (v *Variable) UnmarshalText(text []byte) error {
	parsed, err := ParseVariable(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVariable maps a column name to its Variable.
func ParseVariable(name string) (Variable, error) {
	for i, n := range variableNames {
		if n == name {
			return Variable(i), nil
		}
	}
	return 0, fmt.Errorf("unknown variable %q", name)
}

// Met holds one nullable value per variable. An invalid cell is missing and
// stays missing through every stage until assembly.
type Met [numVariables]sql.NullFloat64

// Get returns the value and whether it is present.
func (m Met) Get(v Variable) (float64, bool) {
	return m[v].Float64, m[v].Valid
}

// With returns a copy of m with v set.
func (m Met) With(v Variable, value float64) Met {
	m[v] = Valid(value)
	return m
}

// Without returns a copy of m with v cleared.
func (m Met) Without(v Variable) Met {
	m[v] = sql.NullFloat64{}
	return m
}

// Valid wraps a present value.
func Valid(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Null is the missing value.
var Null = sql.NullFloat64{}

// SeriesKey is the ensemble identity carried by every stage output. Losing or
// merging a key is a correctness bug, so joins validate it explicitly.
type SeriesKey struct {
	Member int // forecast member, 1..21
	Noise  int // noise member; 0 means no noise was added
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("m%02d/n%02d", k.Member, k.Noise)
}

// Site locates the lake for solar geometry.
type Site struct {
	Latitude  float64
	Longitude float64
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
