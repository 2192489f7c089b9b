package usecase

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"knowbase/internal/domain"
	"knowbase/internal/variant"
)

// Mode selects how ranked results are presented. It is pure
// post-processing: the underlying ranked set is the same for every mode.
type Mode int

const (
	ModeBrief    Mode = iota // one-line summary per result
	ModeDetailed             // summary plus full metadata and id
	ModeNames                // distinct source/category labels only
)

// Options control one search invocation.
type Options struct {
	TopK int
	Mode Mode

	// Variant restricts the search to one named variant. Empty means the
	// primary variant, unless MergeAll is set.
	Variant string

	// MergeAll unions results across every active variant, deduplicated
	// by id keeping the lowest distance. Ranking is never fused beyond
	// that: each result's distance comes from a single variant.
	MergeAll bool
}

// Searcher executes semantic queries against the collection set.
type Searcher struct {
	set     *CollectionSet
	schemas []string // doublestar patterns; empty means no filtering
	log     *slog.Logger
}

// NewSearcher creates a retrieval engine. schemaPatterns restrict which
// metadata schema values are eligible; records without a schema key
// always pass.
func NewSearcher(set *CollectionSet, schemaPatterns []string, log *slog.Logger) *Searcher {
	if log == nil {
		log = slog.Default()
	}
	return &Searcher{set: set, schemas: schemaPatterns, log: log}
}

// Search formats and embeds the query per selected variant, queries each
// variant's collection and returns results ranked by distance ascending.
// An empty corpus or zero matches yields an empty slice, not an error.
func (s *Searcher) Search(query string, opts Options) ([]domain.SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 8
	}

	var handles []VariantHandle
	switch {
	case opts.MergeAll:
		handles = s.set.Handles()
	case opts.Variant != "":
		h, ok := s.set.Handle(opts.Variant)
		if !ok {
			return nil, fmt.Errorf("%w: variant %s is not active", domain.ErrModelUnavailable, opts.Variant)
		}
		handles = []VariantHandle{h}
	default:
		handles = []VariantHandle{s.set.Primary()}
	}

	var merged []domain.SearchResult
	seen := make(map[string]int) // id -> index into merged

	for _, h := range handles {
		formatted := h.Variant.Format(query, variant.Query)
		embedded, err := h.Embedder.Embed([]string{formatted})
		if err != nil {
			return nil, fmt.Errorf("failed to embed query for variant %s: %w", h.Variant.Name, err)
		}
		if len(embedded) != 1 {
			return nil, fmt.Errorf("query embedding for variant %s returned %d vectors", h.Variant.Name, len(embedded))
		}

		matches, err := h.Collection.Query(embedded[0], opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("query failed for variant %s: %w", h.Variant.Name, err)
		}

		for _, m := range matches {
			if !s.schemaAllowed(m.Metadata) {
				continue
			}
			result := domain.SearchResult{
				ID:       m.ID,
				Text:     m.Document,
				Distance: m.Distance,
				Metadata: m.Metadata,
				Variant:  h.Variant.Name,
			}
			if idx, dup := seen[m.ID]; dup {
				if result.Distance < merged[idx].Distance {
					merged[idx] = result
				}
				continue
			}
			seen[m.ID] = len(merged)
			merged = append(merged, result)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Distance != merged[j].Distance {
			return merged[i].Distance < merged[j].Distance
		}
		return merged[i].ID < merged[j].ID
	})

	if opts.TopK < len(merged) {
		merged = merged[:opts.TopK]
	}

	s.log.Debug("search executed", "query", query, "variants", len(handles), "results", len(merged))
	return merged, nil
}

// schemaAllowed applies the schema filter. Filtering only applies when the
// metadata actually carries a schema key.
func (s *Searcher) schemaAllowed(metadata map[string]any) bool {
	if len(s.schemas) == 0 {
		return true
	}
	raw, ok := metadata["schema"]
	if !ok {
		return true
	}
	schema, ok := raw.(string)
	if !ok {
		return true
	}
	schema = strings.ToLower(schema)
	for _, pattern := range s.schemas {
		if matched, err := doublestar.Match(pattern, schema); err == nil && matched {
			return true
		}
	}
	return false
}

// Labels extracts distinct category labels from ranked results, for the
// names-only presentation mode. A result with schema and table metadata
// yields "schema.table"; otherwise the table or source value stands
// alone. Ranking order is preserved; duplicates are suppressed.
func Labels(results []domain.SearchResult) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, r := range results {
		label := labelOf(r)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels
}

func labelOf(r domain.SearchResult) string {
	schema, _ := r.Metadata["schema"].(string)
	table, _ := r.Metadata["table"].(string)
	switch {
	case schema != "" && table != "":
		return schema + "." + table
	case table != "":
		return table
	case schema != "":
		return schema
	}
	source, _ := r.Metadata["source"].(string)
	return source
}
