package extractor

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/codenotate/pkg/types"
)

// DefaultCacheSize is the number of file contexts kept in memory
const DefaultCacheSize = 256

// Cache provides in-memory LRU caching of file contexts by content hash
type Cache struct {
	cache *lru.Cache[string, *types.FileContext]
}

// NewCache creates a new context cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, *types.FileContext](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *types.FileContext](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of a cached context so callers can't mutate the entry
func (c *Cache) Get(key string) (*types.FileContext, bool) {
	fc, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return fc.Clone(), true
}

// Set stores a copy of a context
func (c *Cache) Set(key string, fc *types.FileContext) {
	c.cache.Add(key, fc.Clone())
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// Key hashes a language name and file text into a cache key
func Key(language, text string) string {
	h := sha256.New()
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
