package solarcache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

// --- mock for cache tests ---

type countingKernel struct {
	calls atomic.Int64
}

func (k *countingKernel) DayKernel(day time.Time) [24]float64 {
	k.calls.Add(1)
	var out [24]float64
	out[12] = float64(day.YearDay())
	return out
}

var day = time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)

// --- CachedKernel tests ---

func TestCachedKernel_Hit(t *testing.T) {
	inner := &countingKernel{}
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lookups"}, []string{"result"})
	cached := NewCachedKernel(inner, 10, lookups)

	k1 := cached.DayKernel(day)
	k2 := cached.DayKernel(day.Add(15 * time.Hour))

	assert.Equal(t, k1, k2)
	assert.Equal(t, float64(day.YearDay()), k1[12])
	assert.Equal(t, int64(1), inner.calls.Load(), "should only call inner once per day")
	assert.InDelta(t, 1, testutil.ToFloat64(lookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(lookups.WithLabelValues("miss")), 0)
}

func TestCachedKernel_DifferentDaysMiss(t *testing.T) {
	inner := &countingKernel{}
	cached := NewCachedKernel(inner, 10, nil)

	cached.DayKernel(day)
	cached.DayKernel(day.AddDate(0, 0, 1))

	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Equal(t, 2, cached.Len())
}

func TestCachedKernel_MatchesInner(t *testing.T) {
	site := domain.Site{Latitude: 37.307, Longitude: -79.837}
	cached := NewCachedKernel(domain.ClearSkyKernel{Site: site}, 4, nil)

	assert.Equal(t, domain.ClearSkyKernel{Site: site}.DayKernel(day), cached.DayKernel(day))
}

func TestCachedKernel_Concurrent(t *testing.T) {
	inner := &countingKernel{}
	cached := NewCachedKernel(inner, 8, nil)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cached.DayKernel(day.AddDate(0, 0, i%4))
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, cached.Len())
	for i := range 4 {
		assert.Equal(t, float64(day.AddDate(0, 0, i).YearDay()), cached.DayKernel(day.AddDate(0, 0, i))[12])
	}
}

// --- LRU cache unit tests ---

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	var k [24]float64

	c.put(day, k)
	c.put(day.AddDate(0, 0, 1), k)
	c.get(day) // day is now most recent
	c.put(day.AddDate(0, 0, 2), k)

	_, ok := c.get(day)
	assert.True(t, ok)
	_, ok = c.get(day.AddDate(0, 0, 1))
	assert.False(t, ok, "least recently used day evicted")
	_, ok = c.get(day.AddDate(0, 0, 2))
	assert.True(t, ok)
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	var a, b [24]float64
	b[0] = 1

	c.put(day, a)
	c.put(day, b)

	got, ok := c.get(day)
	assert.True(t, ok)
	assert.Equal(t, b, got)
	assert.Len(t, c.entries, 1)
}

func TestLRUCache_MinimumSize(t *testing.T) {
	c := newLRUCache(0)
	var k [24]float64
	c.put(day, k)

	_, ok := c.get(day)
	assert.True(t, ok)
}
