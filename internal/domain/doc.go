// Package domain turns a raw ensemble weather forecast into hourly,
// site-calibrated lake model drivers.
//
// # Input Conventions
//
// Forecasts arrive as 21 members on a 6-hourly UTC grid. Values are in the
// forecast's native units:
//
//	air_temperature      K
//	relative_humidity    %
//	wind_speed           m/s
//	shortwave, longwave  W/m², averaged over the preceding period
//	precipitation_flux   kg m⁻² s⁻¹, averaged over the preceding period
//
// Period-averaged fluxes are often missing at the first timestamp of a file
// because the period lies before the issue. [CarryNextPeriodBackward] fills
// them from the next timestamp.
//
// # Missing Values
//
// A missing cell is an invalid sql.NullFloat64, never NaN. It stays missing
// through every stage and is written as NA. Days with short coverage are not
// imputed: their aggregate is null and the gap is recorded in a [Report].
//
// # Stages
//
// Pass-through holds each raw value over the hours its period covers. The
// debiased path runs
//
//	aggregate → ApplyCoefficients → Redistribute → InterpolateHourly → CorrectOffset
//
// for air temperature, relative humidity and wind speed. Shortwave is
// distributed over the day by the clear-sky curve in both modes, longwave is
// held per day, and precipitation is held per 6-hour period.
//
// # Output Conventions
//
// Temperature is converted to °C, precipitation to a rain rate in m/day, and
// snow is always zero. Each (forecast member, noise member) pair is one
// [OutputSeries] named by [OutputSeries.FileName].
//
// # Determinism
//
// Noise draws come from a PCG stream seeded by the run seed and the series
// key, so a series is bit-identical across runs regardless of scheduling.
package domain
