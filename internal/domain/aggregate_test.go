package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateDaily(t *testing.T) {
	f := mustForecast(t, 2, 2, func(member int, ts time.Time) Met {
		return metOf(float64(ts.Hour()), 50, 2, 100, 300, 0)
	})

	daily, reports := AggregateDaily(f, 4)

	require.Len(t, daily, 2)
	assert.Empty(t, reports)
	assert.Equal(t, 2, daily[1].Member)
	assert.Equal(t, []time.Time{testIssue, testIssue.AddDate(0, 0, 1)}, daily[0].Days)
	// hours 0, 6, 12, 18
	assert.Equal(t, Valid(9), daily[0].Values[0][AirTemp])
	assert.Equal(t, Valid(50), daily[0].Values[1][RelHum])

	m, ok := daily[0].At(testIssue.Add(13 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, Valid(9), m[AirTemp])
	_, ok = daily[0].At(testIssue.AddDate(0, 0, 5))
	assert.False(t, ok)
}

func TestAggregateDaily_IncompleteDayIsNull(t *testing.T) {
	rows := gridRows(1, 2, diurnal)
	// three of four readings on the second day
	rows[5].Values = rows[5].Values.Without(AirTemp)
	f, err := NewForecast(testIssue, rows, FormOptions{Members: 1})
	require.NoError(t, err)

	daily, reports := AggregateDaily(f, 4)

	require.Len(t, reports, 1)
	assert.Equal(t, AirTemp, reports[0].Variable)
	assert.Equal(t, 3, reports[0].Have)
	assert.Equal(t, 4, reports[0].Want)
	assert.Equal(t, testIssue.AddDate(0, 0, 1), reports[0].Day)

	assert.True(t, daily[0].Values[0][AirTemp].Valid)
	assert.False(t, daily[0].Values[1][AirTemp].Valid)
	assert.True(t, daily[0].Values[1][RelHum].Valid, "other variables are unaffected")
}

func TestAggregateObservations(t *testing.T) {
	var rows []ObservationRow
	for h := range 24 {
		rows = append(rows, ObservationRow{Time: testIssue.Add(time.Duration(h) * time.Hour), Values: metOf(280+float64(h), 60, 1, 0, 300, 0)})
	}
	// a lone reading on the next day
	rows = append(rows, ObservationRow{Time: testIssue.AddDate(0, 0, 1), Values: metOf(300, 60, 1, 0, 300, 0)})
	obs, err := NewObservations(rows)
	require.NoError(t, err)

	daily, reports := AggregateObservations(obs, 24)

	assert.Equal(t, 0, daily.Member)
	require.Len(t, daily.Days, 2)
	assert.InDelta(t, 291.5, daily.Values[0][AirTemp].Float64, 1e-12)
	assert.False(t, daily.Values[1][AirTemp].Valid)
	assert.Len(t, reports, len(Variables))
}
