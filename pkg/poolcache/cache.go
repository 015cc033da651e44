// Package poolcache persists resolved pools under human labels so they need
// not be re-derived. The store is a single JSON file replaced atomically on
// every write.
package poolcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/defistate/stellar-pool-client-go/protocols/liquiditypool"
	"github.com/google/renameio"
)

var ErrEmptyLabel = errors.New("poolcache: label is required")

// Cache is safe for concurrent use within one process.
type Cache struct {
	mu    sync.RWMutex
	path  string
	pools map[string]liquiditypool.PoolView
}

// Open loads the cache at path. A missing file is an empty cache.
func Open(path string) (*Cache, error) {
	c := &Cache{
		path:  path,
		pools: make(map[string]liquiditypool.PoolView),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("poolcache: failed to read %s: %w", path, err)
	}

	var view liquiditypool.PoolRegistryView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("poolcache: failed to parse %s: %w", path, err)
	}
	for _, p := range view.Pools {
		if _, err := p.Pool(); err != nil {
			return nil, fmt.Errorf("poolcache: entry %q: %w", p.Label, err)
		}
		c.pools[p.Label] = p
	}
	return c, nil
}

// Put stores a pool under its label, replacing any previous entry, and
// writes the file. The entry's ID is checked against its parameters first.
func (c *Cache) Put(p liquiditypool.PoolView) error {
	if p.Label == "" {
		return ErrEmptyLabel
	}
	if _, err := p.Pool(); err != nil {
		return fmt.Errorf("poolcache: entry %q: %w", p.Label, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prev, had := c.pools[p.Label]
	c.pools[p.Label] = p
	if err := c.flush(); err != nil {
		if had {
			c.pools[p.Label] = prev
		} else {
			delete(c.pools, p.Label)
		}
		return err
	}
	return nil
}

// Delete removes the entry for label, if any.
func (c *Cache) Delete(label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, had := c.pools[label]
	if !had {
		return nil
	}
	delete(c.pools, label)
	if err := c.flush(); err != nil {
		c.pools[label] = prev
		return err
	}
	return nil
}

// Get returns the entry for label.
func (c *Cache) Get(label string) (liquiditypool.PoolView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pools[label]
	return p, ok
}

// List returns all entries sorted by label.
func (c *Cache) List() []liquiditypool.PoolView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedLocked()
}

// Registry returns an indexed snapshot of the cache.
func (c *Cache) Registry() *liquiditypool.IndexablePoolRegistry {
	return liquiditypool.New().Index(c.List())
}

func (c *Cache) sortedLocked() []liquiditypool.PoolView {
	out := make([]liquiditypool.PoolView, 0, len(c.pools))
	for _, p := range c.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// flush must be called with mu held for writing.
func (c *Cache) flush() error {
	data, err := json.MarshalIndent(liquiditypool.PoolRegistryView{Pools: c.sortedLocked()}, "", "  ")
	if err != nil {
		return fmt.Errorf("poolcache: failed to encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("poolcache: %w", err)
	}
	if err := renameio.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("poolcache: failed to write %s: %w", c.path, err)
	}
	return nil
}
