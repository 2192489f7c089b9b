package config

import (
	"github.com/kelseyhightower/envconfig"
)

// ApplyEnv overrides configuration fields from KNOWBASE_* environment
// variables. Nested sections compose with underscores, e.g.
// KNOWBASE_VARIANTS_PRIMARY=e5-large, KNOWBASE_STORE_MEMORY=true,
// KNOWBASE_SCHEMAS=data_mart,reporting. Unset variables leave the
// YAML/default values untouched. Only prefixed names are consulted:
// ambient variables like PATH or FORMAT never override anything.
func (c *Config) ApplyEnv() error {
	return envconfig.Process("knowbase", c)
}
