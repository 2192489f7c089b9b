package port

// Collection is one variant's vector store: a mapping from record id to
// (vector, metadata, document text). Each configured model variant owns
// exactly one collection.
type Collection interface {
	// Upsert inserts or replaces an entry by id.
	Upsert(entry Entry) error

	// Query finds the topK entries nearest to the vector, ranked by
	// cosine distance ascending (lower is more similar). An empty
	// collection yields an empty result, not an error.
	Query(vector []float32, topK int) ([]Match, error)

	// Delete removes an entry by id. Deleting an absent id is a no-op.
	Delete(id string) error

	// GetAll returns every entry in lexicographic id order. Vectors are
	// omitted; they are derivable, not canonical.
	GetAll() ([]Entry, error)

	// Clear empties the collection. Idempotent.
	Clear() error

	// Count returns the number of entries.
	Count() (int, error)
}

// Entry is a stored record within one collection.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
	Document string
}

// Match is one query result.
type Match struct {
	ID       string
	Distance float64
	Metadata map[string]any
	Document string
}
