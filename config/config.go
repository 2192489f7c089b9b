// Package config provides application configuration, layered as
// defaults, then an optional YAML file, then KNOWBASE_* environment
// variables.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the knowledge-base manager.
type Config struct {
	// CollectionSet is the logical name shared by every variant's
	// collection (each prefixed per variant).
	CollectionSet string `yaml:"collection_set" split_words:"true"`

	// ClearOnStart empties all collections at startup.
	ClearOnStart bool `yaml:"clear_on_start" split_words:"true"`

	// LoadFile is a JSON record file imported at startup.
	LoadFile string `yaml:"load_file" split_words:"true"`

	// Source tags facts typed at the prompt.
	Source string `yaml:"source"`

	// Schemas restricts which metadata schema values are eligible in
	// search results. Bare names match as suffixes; glob patterns are
	// used as-is; "all" disables filtering.
	Schemas []string `yaml:"schemas"`

	Variants  VariantsConfig  `yaml:"variants"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// VariantsConfig selects the active embedding model variants.
type VariantsConfig struct {
	// Active lists variant names (or aliases) to keep synchronized.
	Active []string `yaml:"active"`

	// Primary serves list reads and default searches.
	Primary string `yaml:"primary"`

	// RequireAll makes a variant that fails to initialize fatal. When
	// false the variant is dropped from the active set with a warning.
	RequireAll bool `yaml:"require_all" split_words:"true"`
}

// EmbeddingConfig holds the embedding provider configuration.
type EmbeddingConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint, including
	// local inference servers) or "local" (offline hash embedder).
	Provider string `yaml:"provider"`

	BaseURL        string `yaml:"base_url" split_words:"true"`
	APIKeyEnv      string `yaml:"api_key_env" split_words:"true"`
	TimeoutSeconds int    `yaml:"timeout_seconds" split_words:"true"`
}

// StoreConfig holds the vector store backend configuration.
type StoreConfig struct {
	// Path is the BoltDB file. Ignored when Memory is set.
	Path string `yaml:"path"`

	// Memory keeps collections in memory only.
	Memory bool `yaml:"memory"`
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	TopK         int `yaml:"top_k" split_words:"true"`
	DetailedTopK int `yaml:"detailed_top_k" split_words:"true"`

	// MergeAll makes the default search union results across all active
	// variants (deduplicated by id) instead of querying the primary only.
	MergeAll bool `yaml:"merge_all" split_words:"true"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CollectionSet: "imported_data",
		ClearOnStart:  true,
		Source:        "user",
		Schemas:       []string{"data_mart", "reporting"},
		Variants: VariantsConfig{
			Active:     []string{"bge-base", "bge-large", "e5-large"},
			Primary:    "bge-base",
			RequireAll: true,
		},
		Embedding: EmbeddingConfig{
			Provider:       "local",
			APIKeyEnv:      "OPENAI_API_KEY",
			TimeoutSeconds: 60,
		},
		Store: StoreConfig{
			Path: filepath.Join(".knowbase", "knowbase.db"),
		},
		Search: SearchConfig{
			TopK:         8,
			DetailedTopK: 16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file over the defaults. A missing
// file returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for
// knowbase.yaml, then .knowbase/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "knowbase.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".knowbase", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SchemaPatterns normalizes the configured schema names into doublestar
// patterns. Bare names become suffix patterns so "data_mart" also matches
// "sales_data_mart"; "all" disables filtering entirely.
func (c *Config) SchemaPatterns() []string {
	var patterns []string
	for _, s := range c.Schemas {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if s == "all" {
			return nil
		}
		if !strings.ContainsAny(s, "*?[{") {
			s = "*" + s
		}
		patterns = append(patterns, s)
	}
	return patterns
}

// EnsureStoreDir creates the parent directory of the store file.
func (c *Config) EnsureStoreDir() error {
	dir := filepath.Dir(c.Store.Path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
