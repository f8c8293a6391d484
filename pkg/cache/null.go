package cache

import (
	"context"

	"github.com/matzehuels/cargo-dl/pkg/integrations/crates"
)

// NullCache is a probe that never finds anything.
// Used when caching is disabled.
type NullCache struct{}

// NewNullCache creates a null cache.
func NewNullCache() Probe {
	return NullCache{}
}

// Lookup always returns a cache miss.
func (NullCache) Lookup(context.Context, crates.Archive) (Hit, bool) {
	return Hit{}, false
}

var _ Probe = NullCache{}
