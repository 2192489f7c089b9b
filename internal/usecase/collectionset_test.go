package usecase

import (
	"errors"
	"fmt"
	"testing"

	"knowbase/internal/adapter/embedding"
	"knowbase/internal/adapter/store"
	"knowbase/internal/domain"
	"knowbase/internal/port"
	"knowbase/internal/variant"
)

func testSet(t *testing.T) *CollectionSet {
	t.Helper()
	names := []string{"bge-base", "bge-large", "e5-large"}
	handles := make([]VariantHandle, 0, len(names))
	for _, name := range names {
		v := variant.Resolve(name)
		handles = append(handles, VariantHandle{
			Variant:    v,
			Embedder:   embedding.NewLocalEmbedder(v.ModelID, v.Dimension),
			Collection: store.NewMemoryCollection(v.Dimension),
		})
	}
	set, err := NewCollectionSet(handles, "bge-base", nil)
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func idSet(t *testing.T, c port.Collection) map[string]bool {
	t.Helper()
	entries, err := c.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	ids := make(map[string]bool, len(entries))
	for _, e := range entries {
		ids[e.ID] = true
	}
	return ids
}

// The id set must be identical across every variant's collection after
// any sequence of upserts, deletes and clears.
func assertConsistent(t *testing.T, set *CollectionSet) {
	t.Helper()
	want := idSet(t, set.Handles()[0].Collection)
	for _, h := range set.Handles()[1:] {
		got := idSet(t, h.Collection)
		if len(got) != len(want) {
			t.Fatalf("variant %s holds %d ids, expected %d", h.Variant.Name, len(got), len(want))
		}
		for id := range want {
			if !got[id] {
				t.Fatalf("variant %s is missing id %s", h.Variant.Name, id)
			}
		}
	}
}

func TestUpsertFansOutToAllVariants(t *testing.T) {
	set := testSet(t)

	rec, err := set.Upsert(domain.Record{ID: "a", Text: "alpha bravo", Metadata: map[string]any{"k": "1"}})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "a" {
		t.Errorf("expected caller id preserved, got %q", rec.ID)
	}

	for _, h := range set.Handles() {
		count, _ := h.Collection.Count()
		if count != 1 {
			t.Errorf("variant %s: expected 1 entry, got %d", h.Variant.Name, count)
		}
	}
	assertConsistent(t, set)
}

func TestUpsertGeneratesID(t *testing.T) {
	set := testSet(t)

	first, err := set.Upsert(domain.Record{Text: "one"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := set.Upsert(domain.Record{Text: "two"})
	if err != nil {
		t.Fatal(err)
	}

	if first.ID == "" || second.ID == "" {
		t.Fatal("expected generated ids")
	}
	if first.ID == second.ID {
		t.Errorf("generated ids collide: %s", first.ID)
	}
	assertConsistent(t, set)
}

func TestUpsertIdempotent(t *testing.T) {
	set := testSet(t)
	rec := domain.Record{ID: "a", Text: "alpha bravo"}

	if _, err := set.Upsert(rec); err != nil {
		t.Fatal(err)
	}
	if _, err := set.Upsert(rec); err != nil {
		t.Fatal(err)
	}

	count, _ := set.Count()
	if count != 1 {
		t.Errorf("expected exactly one entry after double upsert, got %d", count)
	}
	assertConsistent(t, set)
}

func TestUpsertRejectsMissingText(t *testing.T) {
	set := testSet(t)
	_, err := set.Upsert(domain.Record{ID: "a"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	count, _ := set.Count()
	if count != 0 {
		t.Errorf("expected no entries after rejected upsert, got %d", count)
	}
}

// failOnUpsert wraps a collection and fails the Nth upsert.
type failOnUpsert struct {
	port.Collection
	failAfter int
	calls     int
}

func (f *failOnUpsert) Upsert(entry port.Entry) error {
	f.calls++
	if f.calls > f.failAfter {
		return fmt.Errorf("injected write failure")
	}
	return f.Collection.Upsert(entry)
}

func TestUpsertCompensatesPartialWrite(t *testing.T) {
	set := testSet(t)
	// Make the last variant's collection fail on the second record.
	last := &set.handles[len(set.handles)-1]
	last.Collection = &failOnUpsert{Collection: last.Collection, failAfter: 1}

	if _, err := set.Upsert(domain.Record{ID: "a", Text: "alpha"}); err != nil {
		t.Fatal(err)
	}
	_, err := set.Upsert(domain.Record{ID: "b", Text: "bravo"})
	if err == nil {
		t.Fatal("expected upsert failure")
	}
	if _, isConsistency := errAs(err); isConsistency {
		t.Fatalf("compensation succeeded, should not report ConsistencyError: %v", err)
	}

	// The failed id must be absent everywhere; the earlier record intact.
	for _, h := range set.Handles() {
		ids := idSet(t, h.Collection)
		if ids["b"] {
			t.Errorf("variant %s still holds compensated id b", h.Variant.Name)
		}
		if !ids["a"] {
			t.Errorf("variant %s lost unrelated id a", h.Variant.Name)
		}
	}
	assertConsistent(t, set)
}

// failingDelete wraps a collection whose deletes always fail, to force a
// compensation failure.
type failingDelete struct {
	port.Collection
}

func (f *failingDelete) Delete(id string) error {
	return fmt.Errorf("injected delete failure")
}

func TestUpsertReportsConsistencyErrorWhenCompensationFails(t *testing.T) {
	set := testSet(t)
	first := &set.handles[0]
	first.Collection = &failingDelete{Collection: first.Collection}
	last := &set.handles[len(set.handles)-1]
	last.Collection = &failOnUpsert{Collection: last.Collection, failAfter: 0}

	_, err := set.Upsert(domain.Record{ID: "a", Text: "alpha"})
	cerr, ok := errAs(err)
	if !ok {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
	if cerr.ID != "a" {
		t.Errorf("expected suspect id a, got %s", cerr.ID)
	}
	if len(cerr.Variants) == 0 {
		t.Error("expected divergent variants reported")
	}
}

func errAs(err error) (*domain.ConsistencyError, bool) {
	var cerr *domain.ConsistencyError
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}

func TestUpsertBatchPartialFailure(t *testing.T) {
	set := testSet(t)

	report := set.UpsertBatch([]domain.Record{
		{ID: "a", Text: "alpha"},
		{ID: "bad"}, // missing text
		{ID: "c", Text: "charlie"},
	}, nil)

	if got := report.Succeeded(); got != 2 {
		t.Errorf("expected 2 successes, got %d", got)
	}
	failed := report.Failed()
	if len(failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failed))
	}
	if failed[0].Index != 1 {
		t.Errorf("expected failure at index 1, got %d", failed[0].Index)
	}
	if !errors.Is(failed[0].Err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", failed[0].Err)
	}

	records, _ := set.ListAll()
	if len(records) != 2 {
		t.Errorf("expected 2 records stored, got %d", len(records))
	}
	assertConsistent(t, set)
}

func TestDeleteByPosition(t *testing.T) {
	set := testSet(t)
	set.Upsert(domain.Record{ID: "a", Text: "alpha"})
	set.Upsert(domain.Record{ID: "b", Text: "bravo"})

	deleted, err := set.DeleteByPosition(1)
	if err != nil {
		t.Fatal(err)
	}
	if deleted.ID != "a" {
		t.Errorf("expected position 1 to resolve to id a, got %s", deleted.ID)
	}

	records, err := set.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "b" {
		t.Errorf("expected only record b to remain, got %+v", records)
	}
	if records[0].Text != "bravo" {
		t.Errorf("remaining record content changed: %q", records[0].Text)
	}
	assertConsistent(t, set)
}

func TestDeleteByPositionOutOfRange(t *testing.T) {
	set := testSet(t)
	set.Upsert(domain.Record{ID: "a", Text: "alpha"})

	for _, n := range []int{0, 2, -1} {
		if _, err := set.DeleteByPosition(n); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("position %d: expected ErrNotFound, got %v", n, err)
		}
	}
}

func TestClearAllIdempotent(t *testing.T) {
	set := testSet(t)
	set.Upsert(domain.Record{ID: "a", Text: "alpha"})

	if err := set.ClearAll(); err != nil {
		t.Fatal(err)
	}
	if err := set.ClearAll(); err != nil {
		t.Fatalf("second clear should succeed: %v", err)
	}

	count, _ := set.Count()
	if count != 0 {
		t.Errorf("expected empty set, got %d", count)
	}
	assertConsistent(t, set)
}

func TestListAllEnumerationOrder(t *testing.T) {
	set := testSet(t)
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		set.Upsert(domain.Record{ID: id, Text: id})
	}

	records, err := set.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	for i, r := range records {
		if r.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i+1, want[i], r.ID)
		}
	}
}

func TestNewCollectionSetRequiresPrimary(t *testing.T) {
	v := variant.Resolve("bge-base")
	handles := []VariantHandle{{
		Variant:    v,
		Embedder:   embedding.NewLocalEmbedder(v.ModelID, v.Dimension),
		Collection: store.NewMemoryCollection(v.Dimension),
	}}

	if _, err := NewCollectionSet(handles, "e5-large", nil); err == nil {
		t.Error("expected error when primary variant is not active")
	}
	if _, err := NewCollectionSet(nil, "bge-base", nil); err == nil {
		t.Error("expected error for empty handle set")
	}
}
