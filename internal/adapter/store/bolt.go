package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"knowbase/internal/port"
)

// BoltStore holds the collections of one collection set in a single
// BoltDB file, one bucket per variant collection.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database file.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// DB exposes the underlying database.
func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Collection opens the named collection, creating its bucket if missing,
// and loads existing entries into the in-memory cache used for search.
func (s *BoltStore) Collection(name string, dimension int) (*BoltCollection, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}

	c := &BoltCollection{
		db:        s.db,
		bucket:    []byte(name),
		dimension: dimension,
		entries:   make(map[string]cachedEntry),
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return c, nil
}

// BoltCollection implements port.Collection on one bucket. Entries are
// persisted as JSON and mirrored in memory for brute-force search, which
// is adequate at this corpus scale (tens to thousands of records).
type BoltCollection struct {
	db        *bbolt.DB
	bucket    []byte
	dimension int

	mu      sync.RWMutex
	entries map[string]cachedEntry
}

type cachedEntry struct {
	vector   []float32
	metadata map[string]any
	document string
}

type storedEntry struct {
	Vector   []float32      `json:"v"`
	Metadata map[string]any `json:"m,omitempty"`
	Document string         `json:"d"`
}

func (c *BoltCollection) load() error {
	return c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedEntry
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // skip corrupted entries
			}
			c.entries[string(k)] = cachedEntry{
				vector:   stored.Vector,
				metadata: stored.Metadata,
				document: stored.Document,
			}
			return nil
		})
	})
}

// Upsert inserts or replaces an entry by id.
func (c *BoltCollection) Upsert(entry port.Entry) error {
	if len(entry.Vector) != c.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", c.dimension, len(entry.Vector))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return fmt.Errorf("bucket %s not found", c.bucket)
		}
		data, err := json.Marshal(storedEntry{
			Vector:   entry.Vector,
			Metadata: entry.Metadata,
			Document: entry.Document,
		})
		if err != nil {
			return err
		}
		return b.Put([]byte(entry.ID), data)
	})
	if err != nil {
		return err
	}

	c.entries[entry.ID] = cachedEntry{
		vector:   entry.Vector,
		metadata: entry.Metadata,
		document: entry.Document,
	}
	return nil
}

// Query finds the topK nearest entries by cosine distance.
func (c *BoltCollection) Query(vector []float32, topK int) ([]port.Match, error) {
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

	// Ties break by id so results are deterministic.
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
func (c *BoltCollection) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return err
	}

	delete(c.entries, id)
	return nil
}

// GetAll returns every entry in lexicographic id order, without vectors.
func (c *BoltCollection) GetAll() ([]port.Entry, error) {
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
func (c *BoltCollection) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(c.bucket) != nil {
			if err := tx.DeleteBucket(c.bucket); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucketIfNotExists(c.bucket)
		return err
	})
	if err != nil {
		return err
	}

	c.entries = make(map[string]cachedEntry)
	return nil
}

// Count returns the number of entries.
func (c *BoltCollection) Count() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// CosineDistance is 1 - cosine similarity: 0 for identical direction,
// approaching 2 for opposite vectors. Lower means more similar.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
