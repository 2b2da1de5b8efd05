package loader

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"addrmatch/internal/engine"
)

// DefaultTTL bounds how long a cached load stays valid even when the source
// file never changes, so long-lived sessions eventually re-read from disk.
const DefaultTTL = 30 * time.Minute

// Cache memoises CSV loads per dataset name, path, and file modification
// time. Editing the source file changes the key, so stale relations are never
// served; the previous temporary relation is simply overwritten on reload.
// The cache is owned by its caller and holds no process-global state.
type Cache struct {
	items *ttlcache.Cache[string, engine.Relation]
}

// NewCache builds a cache with the given entry TTL; ttl <= 0 uses DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		items: ttlcache.New[string, engine.Relation](
			ttlcache.WithTTL[string, engine.Relation](ttl),
		),
	}
}

// key ties a cache entry to the dataset name, the path, and the file's
// current mtime.
func (c *Cache) key(name, path string, mtime time.Time) string {
	return fmt.Sprintf("%s|%s|%d", name, path, mtime.UnixNano())
}

// Load returns the cached relation for the dataset if the file at path is
// unchanged since it was loaded, loading and caching it otherwise.
func (c *Cache) Load(ctx context.Context, s engine.Session, name, path string) (engine.Relation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return engine.Relation{}, fmt.Errorf("load %s: %w", name, err)
	}
	k := c.key(name, path, info.ModTime())
	if item := c.items.Get(k); item != nil {
		return item.Value(), nil
	}
	rel, err := LoadCSV(ctx, s, name, path)
	if err != nil {
		return engine.Relation{}, err
	}
	c.items.Set(k, rel, ttlcache.DefaultTTL)
	return rel, nil
}

// Invalidate drops every cached entry for the dataset name.
func (c *Cache) Invalidate(name string) {
	prefix := name + "|"
	for _, k := range c.items.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.items.Delete(k)
		}
	}
}

// InvalidateAll drops every cached entry.
func (c *Cache) InvalidateAll() {
	c.items.DeleteAll()
}
