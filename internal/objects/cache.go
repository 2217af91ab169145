package objects

import (
	"context"
	"slices"
	"sync"
)

// Source is the read side of a Store as seen by Cache.
type Source interface {
	Versions(ctx context.Context, bucket string) (map[string]int64, error)
	Retrieve(ctx context.Context, bucket, id string) (StoredObject, error)
}

// unknownVersion marks an entry retrieved before its bucket was listed.
// The next Refresh always treats it as stale.
const unknownVersion int64 = -1

type cacheEntry struct {
	obj     StoredObject
	version int64
}

// Cache holds retrieved objects keyed by bucket and id, each tagged with the
// modification version it was read at. Entries are dropped only by Refresh.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	src Source

	mu       sync.Mutex
	entries  map[string]map[string]cacheEntry
	listings map[string]map[string]int64
}

// NewCache returns an empty cache reading through src.
func NewCache(src Source) *Cache {
	return &Cache{
		src:      src,
		entries:  make(map[string]map[string]cacheEntry),
		listings: make(map[string]map[string]int64),
	}
}

// Invalidate returns the ids in cached whose version differs from listing or
// that are absent from listing, in ascending order.
func Invalidate(cached, listing map[string]int64) []string {
	stale := []string{}
	for id, v := range cached {
		if lv, ok := listing[id]; !ok || lv != v {
			stale = append(stale, id)
		}
	}
	slices.Sort(stale)
	return stale
}

// Refresh lists bucket, drops stale entries and returns their ids.
func (c *Cache) Refresh(ctx context.Context, bucket string) ([]string, error) {
	listing, err := c.src.Versions(ctx, bucket)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bucketEntries := c.entries[bucket]
	cached := make(map[string]int64, len(bucketEntries))
	for id, e := range bucketEntries {
		cached[id] = e.version
	}

	stale := Invalidate(cached, listing)
	for _, id := range stale {
		delete(bucketEntries, id)
	}
	c.listings[bucket] = listing
	return stale, nil
}

// Get returns bucket/id from the cache, retrieving and caching it on a miss.
func (c *Cache) Get(ctx context.Context, bucket, id string) (StoredObject, error) {
	c.mu.Lock()
	if e, ok := c.entries[bucket][id]; ok {
		c.mu.Unlock()
		return e.obj, nil
	}
	c.mu.Unlock()

	obj, err := c.src.Retrieve(ctx, bucket, id)
	if err != nil {
		return StoredObject{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	version, ok := c.listings[bucket][id]
	if !ok {
		version = unknownVersion
	}
	if c.entries[bucket] == nil {
		c.entries[bucket] = make(map[string]cacheEntry)
	}
	c.entries[bucket][id] = cacheEntry{obj: obj, version: version}
	return obj, nil
}

// Len returns the number of cached entries in bucket.
func (c *Cache) Len(bucket string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries[bucket])
}
