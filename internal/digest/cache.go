package digest

import (
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	digest    string
	algorithm string
	size      int64
	modTime   time.Time
}

// Cache memoizes file digests keyed by path. An entry is reused only
// while the file's size and mtime match what was seen at compute time.
type Cache struct {
	entries *lru.Cache[string, cacheEntry]
}

// NewCache returns a digest cache holding at most size entries.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// File returns the digest of path, recomputing only when the file
// changed since the cached entry was stored.
func (c *Cache) File(path string, algorithm string, chunkSize int) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	if e, ok := c.entries.Get(path); ok &&
		e.algorithm == algorithm &&
		e.size == info.Size() &&
		e.modTime.Equal(info.ModTime()) {
		return e.digest, nil
	}

	d, err := File(path, algorithm, chunkSize)
	if err != nil {
		return "", err
	}

	c.entries.Add(path, cacheEntry{
		digest:    d,
		algorithm: algorithm,
		size:      info.Size(),
		modTime:   info.ModTime(),
	})
	return d, nil
}

// Remove drops the entry for path, if any.
func (c *Cache) Remove(path string) {
	c.entries.Remove(path)
}

// Purge drops all cached entries.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
