package internal

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lychee-technology/norma"
)

// schemaCache centralizes schema lookup so every component resolves through
// the same built models. Backed by an LRU sized from the configuration; in
// debug mode the cache is bypassed and every lookup rebuilds the schema.
type schemaCache struct {
	builder *SchemaBuilder
	cache   *lru.Cache[string, *norma.SchemaModel]
	debug   bool
}

func newSchemaCache(builder *SchemaBuilder, size int, debug bool) (*schemaCache, error) {
	c := &schemaCache{builder: builder, debug: debug}
	if debug {
		return c, nil
	}
	cache, err := lru.New[string, *norma.SchemaModel](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache: %w", err)
	}
	c.cache = cache
	return c, nil
}

// Get returns the schema of a class, building it on first use. Building is a
// pure function of the registry contents, so a concurrent duplicate build
// just produces an equivalent model.
func (c *schemaCache) Get(class string) (*norma.SchemaModel, error) {
	if c.debug {
		return c.builder.BuildSchema(class)
	}
	if model, ok := c.cache.Get(class); ok {
		return model, nil
	}
	model, err := c.builder.BuildSchema(class)
	if err != nil {
		return nil, err
	}
	c.cache.Add(class, model)
	return model, nil
}

// Invalidate drops the cached schema of one class.
func (c *schemaCache) Invalidate(class string) {
	if c.cache != nil {
		c.cache.Remove(class)
	}
}
