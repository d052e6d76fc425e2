package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testIssue = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

var testSite = Site{Latitude: 37.307, Longitude: -79.837}

func metOf(temp, rh, wind, sw, lw, precip float64) Met {
	var m Met
	m[AirTemp] = Valid(temp)
	m[RelHum] = Valid(rh)
	m[WindSpeed] = Valid(wind)
	m[ShortWave] = Valid(sw)
	m[LongWave] = Valid(lw)
	m[PrecipRate] = Valid(precip)
	return m
}

// diurnal is a smooth synthetic forecast: warm afternoons, humid nights and a
// little member spread.
func diurnal(member int, t time.Time) Met {
	phase := 2 * math.Pi * float64(t.Hour()) / 24
	return metOf(
		288+0.1*float64(member)+4*math.Sin(phase),
		70-10*math.Sin(phase),
		3+math.Cos(phase),
		math.Max(0, 400*math.Sin(phase)),
		330+5*math.Sin(phase),
		1e-5*float64(t.Hour()%12),
	)
}

func gridRows(members, days int, value func(member int, t time.Time) Met) []ForecastRow {
	var rows []ForecastRow
	for m := 1; m <= members; m++ {
		for i := range days * 4 {
			ts := testIssue.Add(time.Duration(i) * DefaultCadence)
			rows = append(rows, ForecastRow{Member: m, Time: ts, Values: value(m, ts)})
		}
	}
	return rows
}

func mustForecast(t *testing.T, members, days int, value func(member int, t time.Time) Met) *Forecast {
	t.Helper()
	f, err := NewForecast(testIssue, gridRows(members, days, value), FormOptions{Members: members})
	require.NoError(t, err)
	return f
}

// identitySet leaves values unchanged apart from noise.
func identitySet(t *testing.T, members int, residualSD float64) *CoefficientSet {
	t.Helper()
	var entries []CoefficientEntry
	for m := 1; m <= members; m++ {
		for _, v := range DebiasVariables {
			entries = append(entries, CoefficientEntry{Bin: 0, Member: m, Variable: v,
				Coefficient: Coefficient{Intercept: 0, Slope: 1, ResidualSD: residualSD, N: 30}})
		}
	}
	set, err := NewCoefficientSet(365, entries)
	require.NoError(t, err)
	return set
}

type flatKernel struct{ value float64 }

func (k flatKernel) DayKernel(time.Time) [24]float64 {
	var out [24]float64
	for i := range out {
		out[i] = k.value
	}
	return out
}
