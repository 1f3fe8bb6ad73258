package core

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/qbloq/mongobridge/core/internal/qcode"
)

// Cache holds parsed statements keyed by their text
type Cache struct {
	cache *lru.TwoQueueCache[string, *qcode.Statement]
}

// initCache initializes the cache
func (e *Engine) initCache() (err error) {
	e.cache.cache, err = lru.New2Q[string, *qcode.Statement](e.conf.cacheSize())
	return
}

// Get returns the value from the cache
func (c Cache) Get(key string) (val *qcode.Statement, fromCache bool) {
	val, fromCache = c.cache.Get(key)
	return
}

// Set sets the value in the cache
func (c Cache) Set(key string, val *qcode.Statement) {
	c.cache.Add(key, val)
}

// Len returns the number of cached statements
func (c Cache) Len() int {
	return c.cache.Len()
}
