package core

import (
	"fmt"

	"github.com/qbloq/mongobridge/core/internal/sdata"
)

const (
	defaultStatementCacheSize = 5000
	defaultBatchConcurrency   = 8
)

// Configuration for a persistent attribute. Type is a declared type
// expression such as int, Integer, byte[], char[], BigDecimal[],
// Collection<String> or the name of an embeddable.
type Attribute = sdata.AttributeDef

// Configuration for a mapped entity and its target collection
type EntityConfig = sdata.EntityDef

// Configuration for an embeddable value type
type EmbeddableConfig = sdata.EmbeddableDef

// Configuration for the translation engine
type Config struct {
	// Entities mapped to MongoDB collections
	Entities []EntityConfig `mapstructure:"entities" json:"entities" yaml:"entities" jsonschema:"title=Entities"`

	// Embeddable value types referenced by entity attributes
	Embeddables []EmbeddableConfig `mapstructure:"embeddables" json:"embeddables,omitempty" yaml:"embeddables,omitempty" jsonschema:"title=Embeddables"`

	// When set to true selects without aggregate functions are rendered
	// as find commands instead of aggregation pipelines
	UseFindCommand bool `mapstructure:"use_find_command" json:"use_find_command" yaml:"use_find_command" jsonschema:"title=Use Find Command,default=false"`

	// When set to true aggregate embeddables are no longer accepted as
	// array and collection elements
	DisableStructuredArrays bool `mapstructure:"disable_structured_arrays" json:"disable_structured_arrays" yaml:"disable_structured_arrays" jsonschema:"title=Disable Structured Array Elements,default=false"`

	// Number of parsed statements kept in the prepared statement cache
	StatementCacheSize int `mapstructure:"statement_cache_size" json:"statement_cache_size" yaml:"statement_cache_size" jsonschema:"title=Statement Cache Size,default=5000"`

	// Maximum number of statements translated in parallel by TranslateBatch
	BatchConcurrency int `mapstructure:"batch_concurrency" json:"batch_concurrency" yaml:"batch_concurrency" jsonschema:"title=Batch Concurrency,default=8"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if len(c.Entities) == 0 {
		return fmt.Errorf("no entities configured")
	}
	if c.StatementCacheSize < 0 {
		return fmt.Errorf("statement_cache_size must not be negative: %d", c.StatementCacheSize)
	}
	if c.BatchConcurrency < 0 {
		return fmt.Errorf("batch_concurrency must not be negative: %d", c.BatchConcurrency)
	}
	return nil
}

func (c *Config) cacheSize() int {
	if c.StatementCacheSize == 0 {
		return defaultStatementCacheSize
	}
	return c.StatementCacheSize
}

func (c *Config) batchConcurrency() int {
	if c.BatchConcurrency == 0 {
		return defaultBatchConcurrency
	}
	return c.BatchConcurrency
}

func (c *Config) catalogOptions() sdata.Options {
	return sdata.Options{StructuredArrayElements: !c.DisableStructuredArrays}
}
