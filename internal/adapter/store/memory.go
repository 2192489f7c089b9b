package store

import (
	"fmt"
	"sort"
	"sync"

	"knowbase/internal/port"
)

// MemoryCollection is an in-memory port.Collection, used for tests and
// throwaway sessions that should not touch disk.
type MemoryCollection struct {
	dimension int

	mu      sync.RWMutex
	entries map[string]cachedEntry
}

// NewMemoryCollection creates an empty in-memory collection.
func NewMemoryCollection(dimension int) *MemoryCollection {
	return &MemoryCollection{
		dimension: dimension,
		entries:   make(map[string]cachedEntry),
	}
}

// Upsert inserts or replaces an entry by id.
func (c *MemoryCollection) Upsert(entry port.Entry) error {
	if len(entry.Vector) != c.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", c.dimension, len(entry.Vector))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.ID] = cachedEntry{
		vector:   entry.Vector,
		metadata: entry.Metadata,
		document: entry.Document,
	}
	return nil
}

// Query finds the topK nearest entries by cosine distance.
func (c *MemoryCollection) Query(vector []float32, topK int) ([]port.Match, error) {
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", c.dimension, len(vector))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.entries) == 0 || topK <= 0 {
		return nil, nil
	}

	matches := make([]port.Match, 0, len(c.entries))
	for id, entry := range c.entries {
		matches = append(matches, port.Match{
			ID:       id,
			Distance: CosineDistance(vector, entry.vector),
			Metadata: entry.metadata,
			Document: entry.document,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes an entry by id.
func (c *MemoryCollection) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

// GetAll returns every entry in lexicographic id order, without vectors.
func (c *MemoryCollection) GetAll() ([]port.Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]port.Entry, 0, len(ids))
	for _, id := range ids {
		entry := c.entries[id]
		entries = append(entries, port.Entry{
			ID:       id,
			Metadata: entry.metadata,
			Document: entry.document,
		})
	}
	return entries, nil
}

// Clear empties the collection.
func (c *MemoryCollection) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedEntry)
	return nil
}

// Count returns the number of entries.
func (c *MemoryCollection) Count() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}
