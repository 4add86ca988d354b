package dnsproxy

import (
	"sync"
	"time"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/clock"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
)

// defaultTTL bounds how long an answer is reused for the same
// (netId, query) pair. net.Resolver doesn't surface per-record TTLs,
// so we cache for a fixed short window rather than the record's own.
const defaultTTL = 30 * time.Second

type cacheKey struct {
	netID fwmark.NetID
	query string
}

type cacheEntry struct {
	status    int32
	frames    [][]byte
	expiresAt time.Time
}

// Cache holds recent answers per (netId, query) so a burst of repeated
// lookups from the same process doesn't re-dial every time. It
// implements netctrl.DNSCacheInvalidator so the network controller can
// drop every entry for a netId the moment that network is destroyed.
type Cache struct {
	mu      sync.Mutex
	clk     clock.Clock
	entries map[cacheKey]cacheEntry
}

func NewCache(clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Cache{clk: clk, entries: make(map[cacheKey]cacheEntry)}
}

func (c *Cache) get(netID fwmark.NetID, query string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey{netID, query}]
	if !ok || c.clk.Now().After(e.expiresAt) {
		return cacheEntry{}, false
	}
	return e, true
}

func (c *Cache) put(netID fwmark.NetID, query string, status int32, frames [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{netID, query}] = cacheEntry{
		status:    status,
		frames:    frames,
		expiresAt: c.clk.Now().Add(defaultTTL),
	}
}

// InvalidateNetwork drops every cached answer attributed to netID.
func (c *Cache) InvalidateNetwork(netID fwmark.NetID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.netID == netID {
			delete(c.entries, k)
		}
	}
}
