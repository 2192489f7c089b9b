// Package variant defines the embedding model variants and their
// text formatting conventions.
package variant

// Role distinguishes document text from query text when formatting for a
// model. BGE and E5 style models embed queries and passages differently;
// applying the same rule at ingestion and query time is a correctness
// invariant, not an optional detail.
type Role int

const (
	Document Role = iota
	Query
)

type formatRule int

const (
	ruleNone formatRule = iota
	ruleBGE             // instruction prefix on queries only
	ruleE5              // "query: " / "passage: " literal prefixes
)

const bgeQueryInstruction = "Represent this sentence for searching relevant passages: "

// Variant is a specific embedding model configuration: model identifier,
// vector dimensionality, collection name prefix and formatting rule.
type Variant struct {
	Name      string
	ModelID   string
	Prefix    string
	Dimension int
	rule      formatRule
}

// Format produces the model-specific encodable string for the given role.
// It is pure: same (text, role, variant) always yields the same output.
func (v Variant) Format(text string, role Role) string {
	switch v.rule {
	case ruleBGE:
		if role == Query {
			return bgeQueryInstruction + text
		}
		return text
	case ruleE5:
		if role == Query {
			return "query: " + text
		}
		return "passage: " + text
	default:
		return text
	}
}

// CollectionName returns the variant's collection name within a logical
// collection set.
func (v Variant) CollectionName(set string) string {
	return v.Prefix + set
}

var registry = []Variant{
	{
		Name:      "bge-base",
		ModelID:   "BAAI/bge-base-en-v1.5",
		Prefix:    "bge_base_",
		Dimension: 768,
		rule:      ruleBGE,
	},
	{
		Name:      "bge-large",
		ModelID:   "BAAI/bge-large-en-v1.5",
		Prefix:    "bge_large_",
		Dimension: 1024,
		rule:      ruleBGE,
	},
	{
		Name:      "e5-large",
		ModelID:   "intfloat/e5-large-v2",
		Prefix:    "e5_large_",
		Dimension: 1024,
		rule:      ruleE5,
	},
}

var aliases = map[string]string{
	"bb": "bge-base",
	"bl": "bge-large",
	"e5": "e5-large",
}

// All returns every registered variant in registry order.
func All() []Variant {
	out := make([]Variant, len(registry))
	copy(out, registry)
	return out
}

// Lookup resolves a variant name or alias.
func Lookup(name string) (Variant, bool) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	for _, v := range registry {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Resolve resolves a variant name or alias, falling back to bge-base for
// unknown input.
func Resolve(name string) Variant {
	if v, ok := Lookup(name); ok {
		return v
	}
	return registry[0]
}
