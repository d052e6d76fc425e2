package synth

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

var issue = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

func TestForecast_GridShape(t *testing.T) {
	opts := DefaultOptions()
	rows := Forecast(issue, opts)

	require.Len(t, rows, opts.Members*opts.Days*4)
	f, err := domain.NewForecast(issue, rows, domain.FormOptions{Members: opts.Members})
	require.NoError(t, err)
	assert.Len(t, f.Times, 8)
}

func TestForecast_Deterministic(t *testing.T) {
	opts := DefaultOptions()
	if diff := cmp.Diff(Forecast(issue, opts), Forecast(issue, opts)); diff != "" {
		t.Errorf("forecast not reproducible (-first +second):\n%s", diff)
	}

	other := opts
	other.Seed = 99
	assert.NotEqual(t, Forecast(issue, opts)[0].Values, Forecast(issue, other)[0].Values)
}

func TestTruth_OverlappingIssuesAgree(t *testing.T) {
	ts := issue.Add(30 * time.Hour)
	assert.Equal(t, Truth(7, ts), Truth(7, ts))

	obs := Observations(issue, 2, Options{Seed: 7})
	require.Len(t, obs, 48)
	assert.Equal(t, Truth(7, ts), obs[30].Values)
}

func TestTruth_PhysicalBounds(t *testing.T) {
	for h := range 24 * 30 {
		m := Truth(3, issue.Add(time.Duration(h)*time.Hour))
		rh, _ := m.Get(domain.RelHum)
		sw, _ := m.Get(domain.ShortWave)
		lw, _ := m.Get(domain.LongWave)
		precip, _ := m.Get(domain.PrecipRate)
		assert.True(t, rh >= 0 && rh <= 100, "rh %g", rh)
		assert.GreaterOrEqual(t, sw, 0.0)
		assert.Greater(t, lw, 0.0)
		assert.GreaterOrEqual(t, precip, 0.0)
	}
}

func TestForecast_CarriesWarmBias(t *testing.T) {
	opts := Options{Seed: 5, Members: 1, Days: 2, WarmBias: 2}
	rows := Forecast(issue, opts)

	var diff float64
	for _, r := range rows {
		fc, _ := r.Values.Get(domain.AirTemp)
		obs, _ := Truth(opts.Seed, r.Time).Get(domain.AirTemp)
		diff += fc - obs
	}
	assert.InDelta(t, 2.0, diff/float64(len(rows)), 1e-9)
}
