package domain

import (
	"database/sql"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

const (
	// SolarConstant is the mean top-of-atmosphere irradiance [W/m²].
	SolarConstant = 1361.0
	// ClearSkyTransmissivity scales extra-terrestrial irradiance to the
	// surface. It cancels out of the disaggregation kernel.
	ClearSkyTransmissivity = 0.75
)

// ClearSky returns clear-sky surface irradiance [W/m²] at UTC time t for a
// site. It is zero while the sun is below the horizon.
func ClearSky(t time.Time, site Site) float64 {
	t = t.UTC()
	doy := float64(t.YearDay())
	hour := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600

	// fractional year [rad]
	g := 2 * math.Pi / 365 * (doy - 1 + (hour-12)/24)

	eqTime := 229.18 * (0.000075 + 0.001868*math.Cos(g) - 0.032077*math.Sin(g) -
		0.014615*math.Cos(2*g) - 0.040849*math.Sin(2*g)) // [min]
	decl := 0.006918 - 0.399912*math.Cos(g) + 0.070257*math.Sin(g) -
		0.006758*math.Cos(2*g) + 0.000907*math.Sin(2*g) -
		0.002697*math.Cos(3*g) + 0.00148*math.Sin(3*g) // [rad]

	trueSolarMin := hour*60 + eqTime + 4*site.Longitude
	hourAngle := (trueSolarMin/4 - 180) * math.Pi / 180
	lat := site.Latitude * math.Pi / 180

	cosZenith := math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Cos(hourAngle)
	if cosZenith <= 0 {
		return 0
	}

	// earth-sun distance correction
	d := 2 * math.Pi * (doy - 1) / 365
	e0 := 1.000110 + 0.034221*math.Cos(d) + 0.001280*math.Sin(d) + 0.000719*math.Cos(2*d) + 0.000077*math.Sin(2*d)

	return SolarConstant * e0 * cosZenith * ClearSkyTransmissivity
}

// Kernel returns the clear-sky irradiance at each UTC hour (hour/24 day
// fraction) of a calendar day.
type Kernel interface {
	DayKernel(day time.Time) [24]float64
}

// ClearSkyKernel evaluates ClearSky for a fixed site.
type ClearSkyKernel struct {
	Site Site
}

func (k ClearSkyKernel) DayKernel(day time.Time) [24]float64 {
	var out [24]float64
	day = DayOf(day)
	for h := range out {
		out[h] = ClearSky(day.Add(time.Duration(h)*time.Hour), k.Site)
	}
	return out
}

// DisaggregateShortwave spreads coarse shortwave values over the hours using
// the clear-sky curve as a kernel:
//
//	hourly = avg_rpot > 0 ? corrected * rpot/avg_rpot : 0
//
// where corrected is the coarse value covering the hour and avg_rpot is the
// mean kernel over the hour's UTC day. Output is non-negative whenever the
// coarse value is, and a day of constant input keeps its daily total.
func DisaggregateShortwave(times []time.Time, values []sql.NullFloat64, cadence time.Duration, hours []time.Time, k Kernel) []sql.NullFloat64 {
	coarse := HoldHourly(times, values, cadence, hours)
	out := make([]sql.NullFloat64, len(hours))

	type dayKernel struct {
		rpot [24]float64
		avg  float64
	}
	kernels := make(map[time.Time]dayKernel)

	for i, h := range hours {
		if !coarse[i].Valid {
			continue
		}
		day := DayOf(h)
		dk, ok := kernels[day]
		if !ok {
			dk.rpot = k.DayKernel(day)
			dk.avg = floats.Sum(dk.rpot[:]) / 24
			kernels[day] = dk
		}
		if dk.avg <= 0 {
			out[i] = Valid(0)
			continue
		}
		out[i] = Valid(coarse[i].Float64 * dk.rpot[h.UTC().Hour()] / dk.avg)
	}
	return out
}
