package dnsproxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/clock"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
)

func TestCachePutGetRoundTrip(t *testing.T) {
	c := NewCache(clock.NewMockClock(time.Unix(0, 0)))
	c.put(fwmark.NetID(10), "q", statusOK, [][]byte{[]byte("1.2.3.4")})

	e, ok := c.get(fwmark.NetID(10), "q")
	require.True(t, ok)
	assert.Equal(t, statusOK, e.status)
	assert.Equal(t, [][]byte{[]byte("1.2.3.4")}, e.frames)
}

func TestCacheExpires(t *testing.T) {
	clk := clock.NewMockClock(time.Unix(0, 0))
	c := NewCache(clk)
	c.put(fwmark.NetID(10), "q", statusOK, nil)

	clk.Set(time.Unix(0, 0).Add(defaultTTL + time.Second))
	_, ok := c.get(fwmark.NetID(10), "q")
	assert.False(t, ok)
}

func TestCacheInvalidateNetworkOnlyDropsThatNetwork(t *testing.T) {
	c := NewCache(nil)
	c.put(fwmark.NetID(10), "q", statusOK, nil)
	c.put(fwmark.NetID(20), "q", statusOK, nil)

	c.InvalidateNetwork(fwmark.NetID(10))

	_, ok10 := c.get(fwmark.NetID(10), "q")
	_, ok20 := c.get(fwmark.NetID(20), "q")
	assert.False(t, ok10)
	assert.True(t, ok20)
}
