package provider

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"
)

// responseCacheTTL is how long a successful provider response is
// reused for an identical (message, model) pair before it expires.
const responseCacheTTL = 60 * time.Second

// responseCache is an in-process, TTL-only cache of successful provider
// responses. It deliberately carries no size cap: entries leave only by
// TTL expiry (on read, and by go-cache's janitor every 2×TTL), so memory
// grows with the number of distinct (message, model) pairs seen within
// that window. The entries are small strings keyed by a 64-bit hash.
type responseCache struct {
	store *gocache.Cache
}

func newResponseCache() *responseCache {
	return &responseCache{
		store: gocache.New(responseCacheTTL, responseCacheTTL*2),
	}
}

// cacheKey hashes (message, model) into the cache's lookup key.
func cacheKey(message, model string) string {
	h := xxhash.New()
	h.WriteString(message)
	h.WriteString("\x00")
	h.WriteString(model)
	return strconv.FormatUint(h.Sum64(), 36)
}

func (c *responseCache) get(key string) (string, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

func (c *responseCache) set(key, value string) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}
