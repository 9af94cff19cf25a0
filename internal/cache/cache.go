// Package cache implements the two-tier Package Cache: a process-local
// memoisation layer backed by an LRU map, and a persistent layer backed by
// the storage package (normally the bbolt backend, standing in for the
// browser original's IndexedDB database).
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/esbuild-dev/bundlerd/internal/storage"
)

// Database and object-store names from spec.md §4.2/§6.
const (
	BucketCache       = "cache"
	BucketLockfile    = "lockfile"
	BucketSandpackCDN = "sandpack-cdn"
)

// Cache is the two-tier Package Cache.
type Cache struct {
	local *lru.Cache[string, []byte]
	store storage.Store
	now   func() time.Time
}

// New returns a Cache with a local LRU of the given size backed by store.
// store may be nil, in which case the persistent tier degrades to always-miss
// (every WithCacheData call fetches live), matching the cache-layer-failure
// policy of spec.md §7: a broken persistent tier is treated as a cache miss.
func New(localSize int, store storage.Store) (*Cache, error) {
	l, err := lru.New[string, []byte](localSize)
	if err != nil {
		return nil, err
	}
	return &Cache{local: l, store: store, now: time.Now}, nil
}

// WithLocalCacheData returns transform(cached) on a local hit, else stores
// the bytes from fetch() and returns transform(data). A transform error on
// a local hit drops that entry and falls through to a live fetch; a
// transform error on freshly fetched data is returned to the caller.
func WithLocalCacheData[T any](c *Cache, req string, fetch func() ([]byte, error), transform func([]byte) (T, error)) (T, error) {
	var zero T
	if data, ok := c.local.Get(req); ok {
		v, err := transform(data)
		if err == nil {
			return v, nil
		}
		// corrupted local entry: fall through to a live refetch
		c.local.Remove(req)
	}
	data, err := fetch()
	if err != nil {
		return zero, err
	}
	c.local.Add(req, data)
	return transform(data)
}

// WithCacheData consults the persistent tier's sandpack-cdn store; on miss
// it calls fetch(), persists {request, data}, then returns
// transform(data). If transform fails on a cache hit, spec.md's policy is
// to treat the corruption as a miss and issue a fresh fetch() rather than
// propagate the error.
func WithCacheData[T any](c *Cache, req string, fetch func() ([]byte, error), transform func([]byte) (T, error)) (T, error) {
	var zero T

	if c.store != nil {
		if rec, err := c.store.Get(BucketSandpackCDN, req); err == nil && len(rec.Data) > 0 {
			v, terr := transform(rec.Data)
			if terr == nil {
				c.touch(req, rec)
				return v, nil
			}
		}
	}

	data, err := fetch()
	if err != nil {
		return zero, err
	}

	if c.store != nil {
		c.store.Put(BucketSandpackCDN, storage.Record{Request: req, Data: data, LastUsed: c.now().Unix()})
	}

	return transform(data)
}

// touch refreshes the lastUsed index entry for req without re-fetching.
func (c *Cache) touch(req string, rec storage.Record) {
	rec.LastUsed = c.now().Unix()
	c.store.Put(BucketSandpackCDN, rec)
}

// IsCached reports whether req has a non-empty persisted record.
func (c *Cache) IsCached(req string) bool {
	if c.store == nil {
		return false
	}
	rec, err := c.store.Get(BucketSandpackCDN, req)
	return err == nil && len(rec.Data) > 0
}
