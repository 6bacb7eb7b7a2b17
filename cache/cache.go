// Package cache persists the set of identifiers already processed by earlier
// runs, so repeated runs only add new results.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// SeenCache maps a run-parameter key to the set of identifiers (blog URLs or
// place IDs) seen under that key. A missing or corrupt file degrades to an
// empty cache; losing the cache only means re-resolving, never failing.
//
// Single-writer assumption: concurrent runs sharing one cache file can lose
// updates on the merge-on-save step. No locking is attempted.
type SeenCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]map[string]struct{}
}

// Key derives a deterministic cache key from normalized run parameters.
func Key(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, p := range parts {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(p)))
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:8])
}

// Load reads the cache file at path. Missing and unparseable files both
// yield an empty cache, never an error the caller has to branch on.
func Load(path string) *SeenCache {
	c := &SeenCache{path: path, entries: make(map[string]map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Corrupt cache: treat everything as new.
		return c
	}
	for key, ids := range raw {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		c.entries[key] = set
	}
	return c
}

// Seen reports whether id was recorded under key.
func (c *SeenCache) Seen(key, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key][id]
	return ok
}

// Add records id under key.
func (c *SeenCache) Add(key, id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.entries[key]
	if !ok {
		set = make(map[string]struct{})
		c.entries[key] = set
	}
	set[id] = struct{}{}
}

// Len returns the number of identifiers recorded under key.
func (c *SeenCache) Len(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries[key])
}

// Reset drops all identifiers recorded under key.
func (c *SeenCache) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Save merges the in-memory sets with whatever is on disk (a cache never
// shrinks) and writes the result via a temp-file rename. That is atomic
// enough for a clean run; a crash mid-save makes no durability promise.
func (c *SeenCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := Load(c.path)
	for key, set := range c.entries {
		dst, ok := merged.entries[key]
		if !ok {
			dst = make(map[string]struct{}, len(set))
			merged.entries[key] = dst
		}
		for id := range set {
			dst[id] = struct{}{}
		}
	}

	out := make(map[string][]string, len(merged.entries))
	for key, set := range merged.entries {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out[key] = ids
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, ".seen_cache_*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

// Path returns the backing file path.
func (c *SeenCache) Path() string {
	return c.path
}
