package storyblok

import (
	"encoding/json"
	"sync"
)

// responseCache keeps published responses in memory, keyed by request URL.
// With autoClear set, seeing a new cache version ("cv") from the API throws
// away everything cached under the previous one.
type responseCache struct {
	mu        sync.Mutex
	autoClear bool
	cv        int64
	entries   map[string]*Response
}

func newResponseCache(autoClear bool) *responseCache {
	return &responseCache{
		autoClear: autoClear,
		entries:   make(map[string]*Response),
	}
}

func (c *responseCache) get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[key]
	return res, ok
}

func (c *responseCache) put(key string, res *Response, cv int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.autoClear && cv != 0 && cv != c.cv {
		if c.cv != 0 {
			c.entries = make(map[string]*Response)
		}
		c.cv = cv
	}
	c.entries[key] = res
}

func (c *responseCache) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Response)
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheVersion digs the "cv" field out of a response body, zero if absent.
func cacheVersion(records map[string]json.RawMessage) int64 {
	raw, ok := records["cv"]
	if !ok {
		return 0
	}
	var cv int64
	if err := json.Unmarshal(raw, &cv); err != nil {
		return 0
	}
	return cv
}
