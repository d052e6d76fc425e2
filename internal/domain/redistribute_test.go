package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedistribute_PreservesDailyMean(t *testing.T) {
	f := mustForecast(t, 1, 2, diurnal)
	daily, _ := AggregateDaily(f, 4)
	raw := daily[0]

	corrected := Debiased{Key: SeriesKey{Member: 1}, Days: raw.Days, Values: []Met{
		metOf(290, 60, 4, 0, 0, 0),
		metOf(285, 80, 1, 0, 0, 0),
	}}

	red, zeros, err := Redistribute(f, raw, corrected)
	require.NoError(t, err)
	assert.Empty(t, zeros)
	assert.Equal(t, corrected.Key, red.Key)
	require.Len(t, red.Values, 8)

	for d, day := range corrected.Values {
		for _, v := range RedistributeVariables {
			var sum float64
			for i := d * 4; i < d*4+4; i++ {
				sum += red.Values[i][v].Float64
			}
			assert.InDelta(t, day[v].Float64, sum/4, 1e-9, "day %d %s", d, v)
		}
	}
	assert.False(t, red.Values[0][ShortWave].Valid, "shortwave is not redistributed")
}

func TestRedistribute_ZeroMean(t *testing.T) {
	f := mustForecast(t, 1, 2, func(member int, ts time.Time) Met {
		return metOf(290, 60, 0, 0, 300, 0)
	})
	daily, _ := AggregateDaily(f, 4)
	deb := Debiased{Key: SeriesKey{Member: 1, Noise: 2}, Days: daily[0].Days, Values: daily[0].Values}

	red, zeros, err := Redistribute(f, daily[0], deb)
	require.NoError(t, err)

	require.Len(t, zeros, 2, "one report per day")
	assert.Equal(t, WindSpeed, zeros[0].Variable)
	assert.Equal(t, deb.Key, zeros[0].Key)
	for _, m := range red.Values {
		assert.False(t, m[WindSpeed].Valid)
		assert.InDelta(t, 290, m[AirTemp].Float64, 1e-9)
	}
}

func TestRedistribute_MemberMismatch(t *testing.T) {
	f := mustForecast(t, 2, 1, diurnal)
	daily, _ := AggregateDaily(f, 4)
	deb := Debiased{Key: SeriesKey{Member: 2}, Days: daily[0].Days, Values: daily[0].Values}

	_, _, err := Redistribute(f, daily[0], deb)

	var joinErr *JoinError
	require.ErrorAs(t, err, &joinErr)
	assert.Equal(t, deb.Key, joinErr.Key)
}
