package domain

import (
	"fmt"
	"sort"
)

// Record is the logical unit of knowledge: a text fact plus open-schema
// metadata. The same record is stored once per model variant collection,
// always under the same ID.
type Record struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks that the record can be ingested. Text is required;
// metadata values must be JSON scalars (string, number, bool).
func (r Record) Validate() error {
	if r.Text == "" {
		return fmt.Errorf("%w: missing text", ErrValidation)
	}
	for key, value := range r.Metadata {
		switch value.(type) {
		case string, bool, float64, float32, int, int32, int64, nil:
		default:
			return fmt.Errorf("%w: metadata key %q has non-scalar value %T", ErrValidation, key, value)
		}
	}
	return nil
}

// MetadataKeys returns the record's metadata keys in sorted order, for
// deterministic rendering.
func (r Record) MetadataKeys() []string {
	return sortedKeys(r.Metadata)
}

// SearchResult is one ranked match from a variant's collection.
// Distance is cosine distance: lower means more similar.
type SearchResult struct {
	ID       string
	Text     string
	Distance float64
	Metadata map[string]any
	Variant  string
}

// MetadataKeys returns the result's metadata keys in sorted order.
func (r SearchResult) MetadataKeys() []string {
	return sortedKeys(r.Metadata)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BatchResult reports the outcome of one record within a batch upsert.
type BatchResult struct {
	Index int
	ID    string
	Err   error
}

// BatchReport collects per-record outcomes of a batch upsert. A failed
// record never aborts the rest of the batch.
type BatchReport struct {
	Results []BatchResult
}

// Succeeded returns the number of records stored.
func (r BatchReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the failed results.
func (r BatchReport) Failed() []BatchResult {
	var failed []BatchResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}
