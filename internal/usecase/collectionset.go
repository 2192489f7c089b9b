package usecase

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"knowbase/internal/domain"
	"knowbase/internal/port"
	"knowbase/internal/variant"
)

// VariantHandle binds one model variant to its embedder and collection.
type VariantHandle struct {
	Variant    variant.Variant
	Embedder   port.Embedder
	Collection port.Collection
}

// CollectionSet is the single point of mutation for record ingestion and
// deletion. It owns one collection per active variant and guarantees the
// cross-collection invariant: the set of ids is identical in every
// collection at every observable point. A write that fails on any variant
// is compensated by deleting the id from the variants already written.
type CollectionSet struct {
	handles []VariantHandle
	primary int
	log     *slog.Logger

	idSeq atomic.Int64
}

// NewCollectionSet creates a manager over the given variant handles.
// primaryName selects the variant whose collection serves list reads and
// default searches; it must be in the handle set.
func NewCollectionSet(handles []VariantHandle, primaryName string, log *slog.Logger) (*CollectionSet, error) {
	if len(handles) == 0 {
		return nil, fmt.Errorf("no active variants")
	}
	if log == nil {
		log = slog.Default()
	}

	primary := -1
	for i, h := range handles {
		if h.Variant.Name == primaryName {
			primary = i
			break
		}
	}
	if primary < 0 {
		return nil, fmt.Errorf("%w: primary variant %s is not in the active set",
			domain.ErrModelUnavailable, primaryName)
	}

	return &CollectionSet{handles: handles, primary: primary, log: log}, nil
}

// Primary returns the handle list reads and default searches go through.
func (cs *CollectionSet) Primary() VariantHandle {
	return cs.handles[cs.primary]
}

// Handles returns every active variant handle.
func (cs *CollectionSet) Handles() []VariantHandle {
	return cs.handles
}

// Handle resolves a handle by variant name or alias.
func (cs *CollectionSet) Handle(name string) (VariantHandle, bool) {
	v, ok := variant.Lookup(name)
	if !ok {
		return VariantHandle{}, false
	}
	for _, h := range cs.handles {
		if h.Variant.Name == v.Name {
			return h, true
		}
	}
	return VariantHandle{}, false
}

// GenerateID produces a process-unique, sortable record id. The timestamp
// keeps ids roughly in insertion order; the counter disambiguates bursts.
func (cs *CollectionSet) GenerateID() string {
	return fmt.Sprintf("fact_%d-%04d", time.Now().UnixMilli(), cs.idSeq.Add(1))
}

// Upsert stores the record in every variant's collection, formatting and
// embedding per variant. A missing id is generated once and reused across
// all variants. Returns the record with its id filled in.
func (cs *CollectionSet) Upsert(rec domain.Record) (domain.Record, error) {
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	if rec.ID == "" {
		rec.ID = cs.GenerateID()
	}

	// Embed for all variants first: an embedding failure aborts before any
	// collection has been touched. Adapters are distinct instances, so the
	// per-variant calls may run in parallel.
	vectors := make([][]float32, len(cs.handles))
	var g errgroup.Group
	for i, h := range cs.handles {
		i, h := i, h
		g.Go(func() error {
			formatted := h.Variant.Format(rec.Text, variant.Document)
			embedded, err := h.Embedder.Embed([]string{formatted})
			if err != nil {
				return fmt.Errorf("embedding failed for variant %s: %w", h.Variant.Name, err)
			}
			if len(embedded) != 1 {
				return fmt.Errorf("embedding for variant %s returned %d vectors, want 1", h.Variant.Name, len(embedded))
			}
			vectors[i] = embedded[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rec, err
	}

	// Fan out the writes, compensating on partial failure so no collection
	// observably holds an id the others lack.
	for i, h := range cs.handles {
		err := h.Collection.Upsert(port.Entry{
			ID:       rec.ID,
			Vector:   vectors[i],
			Metadata: rec.Metadata,
			Document: rec.Text,
		})
		if err == nil {
			continue
		}

		if cerr := cs.compensate(rec.ID, i); cerr != nil {
			return rec, cerr
		}
		return rec, fmt.Errorf("upsert failed for variant %s: %w", h.Variant.Name, err)
	}

	cs.log.Debug("record stored", "id", rec.ID, "variants", len(cs.handles))
	return rec, nil
}

// compensate deletes the id from the first written handles after a write
// failure on handle written. If any compensating delete fails, the
// collections are divergent and that must be reported loudly.
func (cs *CollectionSet) compensate(id string, written int) error {
	var divergent []string
	var lastErr error
	for j := 0; j < written; j++ {
		if err := cs.handles[j].Collection.Delete(id); err != nil {
			divergent = append(divergent, cs.handles[j].Variant.Name)
			lastErr = err
		}
	}
	if len(divergent) == 0 {
		return nil
	}
	cerr := &domain.ConsistencyError{ID: id, Variants: divergent, Err: lastErr}
	cs.log.Error("compensation failed, collections divergent", "id", id, "variants", divergent)
	return cerr
}

// UpsertBatch applies Upsert per record. A failure on one record does not
// abort the rest; the report carries the per-record outcome. The optional
// progress callback is invoked after each record.
func (cs *CollectionSet) UpsertBatch(recs []domain.Record, progress func(done, total int)) domain.BatchReport {
	report := domain.BatchReport{Results: make([]domain.BatchResult, 0, len(recs))}
	for i, rec := range recs {
		stored, err := cs.Upsert(rec)
		report.Results = append(report.Results, domain.BatchResult{
			Index: i,
			ID:    stored.ID,
			Err:   err,
		})
		if err != nil {
			cs.log.Warn("batch record failed", "index", i, "error", err)
		}
		if progress != nil {
			progress(i+1, len(recs))
		}
	}
	return report
}

// ListAll returns the shared record set in stable enumeration order
// (lexicographic id order). Text and metadata are variant-independent, so
// one representative per id is read from the primary collection.
func (cs *CollectionSet) ListAll() ([]domain.Record, error) {
	entries, err := cs.Primary().Collection.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w",
			cs.Primary().Variant.Name, err)
	}

	records := make([]domain.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, domain.Record{
			ID:       e.ID,
			Text:     e.Document,
			Metadata: e.Metadata,
		})
	}
	return records, nil
}

// DeleteByPosition resolves the 1-based ordinal over the enumeration order
// and deletes that record from every collection. The ordinal is recomputed
// fresh on each call; it is not a persisted field.
func (cs *CollectionSet) DeleteByPosition(n int) (domain.Record, error) {
	records, err := cs.ListAll()
	if err != nil {
		return domain.Record{}, err
	}
	if n < 1 || n > len(records) {
		return domain.Record{}, fmt.Errorf("%w: position %d (have %d records)",
			domain.ErrNotFound, n, len(records))
	}

	target := records[n-1]
	var divergent []string
	var lastErr error
	for _, h := range cs.handles {
		if err := h.Collection.Delete(target.ID); err != nil {
			divergent = append(divergent, h.Variant.Name)
			lastErr = err
		}
	}
	if len(divergent) > 0 {
		cerr := &domain.ConsistencyError{ID: target.ID, Variants: divergent, Err: lastErr}
		cs.log.Error("partial delete, collections divergent", "id", target.ID, "variants", divergent)
		return target, cerr
	}

	cs.log.Debug("record deleted", "id", target.ID, "position", n)
	return target, nil
}

// ClearAll empties every collection. Idempotent.
func (cs *CollectionSet) ClearAll() error {
	for _, h := range cs.handles {
		if err := h.Collection.Clear(); err != nil {
			return fmt.Errorf("failed to clear collection %s: %w", h.Variant.Name, err)
		}
	}
	return nil
}

// Count returns the number of records in the set.
func (cs *CollectionSet) Count() (int, error) {
	return cs.Primary().Collection.Count()
}
