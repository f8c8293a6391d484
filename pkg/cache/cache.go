// Package cache probes local archive caches before going to the network.
//
// # Overview
//
// cargo keeps every archive it has downloaded under
// $CARGO_HOME/registry/cache/<registry-dir>/<name>-<version>.crate.
// [CargoCache] looks there first. Those directories belong to cargo, so
// this package only ever reads them: entries are never created, refreshed
// or deleted.
//
// A cached file is only used when its SHA-256 matches the index checksum.
// A corrupt or stale file is reported as a miss and left in place.
//
// # Implementations
//
//   - [CargoCache]: read-only probe of one or more cache directories
//   - [NullCache]: always misses, used for --no-cache
package cache

import (
	"context"

	"github.com/matzehuels/cargo-dl/pkg/integrations/crates"
)

// Probe finds verified archive bytes for a located crate.
//
// Implementations must verify the bytes against a.Checksum before
// reporting a hit and must not modify the cache.
type Probe interface {
	Lookup(ctx context.Context, a crates.Archive) (Hit, bool)
}

// Hit is a verified cache entry.
type Hit struct {
	Data []byte // Archive bytes, checksum-verified
	Path string // File the bytes were read from
}
