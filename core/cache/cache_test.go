package cache

import (
	"strconv"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSet(t *testing.T) {
	clk := clock.NewMock()
	c := New[string](WithClock(clk))

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "alpha")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)
}

func TestCache_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		ttl     []time.Duration
		advance time.Duration
		wantHit bool
	}{
		{name: "default ttl, fresh", advance: DefaultTTL - time.Second, wantHit: true},
		{name: "default ttl, exactly at expiry", advance: DefaultTTL, wantHit: false},
		{name: "default ttl, after expiry", advance: DefaultTTL + time.Second, wantHit: false},
		{name: "custom ttl, fresh", ttl: []time.Duration{30 * time.Second}, advance: 29 * time.Second, wantHit: true},
		{name: "custom ttl, expired", ttl: []time.Duration{30 * time.Second}, advance: 31 * time.Second, wantHit: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clock.NewMock()
			c := New[int](WithClock(clk))
			c.Set("k", 1, tt.ttl...)
			clk.Add(tt.advance)

			_, ok := c.Get("k")
			assert.Equal(t, tt.wantHit, ok)
			if !tt.wantHit {
				assert.Equal(t, 0, c.Len(), "expired entry must be removed on read")
			}
		})
	}
}

func TestCache_Invalidate(t *testing.T) {
	clk := clock.NewMock()
	c := New[int](WithClock(clk))
	c.Set("membership_summary:u1", 1)
	c.Set("membership_summary:u2", 2)
	c.Set("teams", 3)

	assert.Equal(t, 1, c.Invalidate("u1"))
	_, ok := c.Get("membership_summary:u1")
	assert.False(t, ok)
	_, ok = c.Get("membership_summary:u2")
	assert.True(t, ok)

	assert.Equal(t, 0, c.Invalidate("nothing-matches"))
	assert.Equal(t, 2, c.Invalidate(""))
	assert.Equal(t, 0, c.Len())
}

func TestCache_CapacityEvictsOldestInserted(t *testing.T) {
	clk := clock.NewMock()
	c := New[int](WithClock(clk), WithCapacity(3))
	for i := 0; i < 3; i++ {
		c.Set("k"+strconv.Itoa(i), i)
	}

	// reads do not refresh the eviction order
	_, ok := c.Get("k0")
	require.True(t, ok)

	c.Set("k3", 3)
	assert.Equal(t, 3, c.Len())
	_, ok = c.Get("k0")
	assert.False(t, ok, "oldest entry should have been evicted")
	for _, k := range []string{"k1", "k2", "k3"} {
		_, ok = c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestCache_GetOrLoad(t *testing.T) {
	clk := clock.NewMock()
	c := New[string](WithClock(clk), WithTTL(time.Minute))

	var calls int
	load := func() (string, error) {
		calls++
		return "v" + strconv.Itoa(calls), nil
	}

	v, err := c.GetOrLoad("k", load)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	v, err = c.GetOrLoad("k", load)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, 1, calls)

	clk.Add(time.Minute)
	v, err = c.GetOrLoad("k", load)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}
