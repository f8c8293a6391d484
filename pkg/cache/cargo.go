package cache

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	cderrors "github.com/matzehuels/cargo-dl/pkg/errors"
	"github.com/matzehuels/cargo-dl/pkg/integrations/crates"
	"github.com/matzehuels/cargo-dl/pkg/integrity"
	"github.com/matzehuels/cargo-dl/pkg/observability"
)

// CargoCache probes cargo's registry cache directories in order.
// It is safe for concurrent use.
type CargoCache struct {
	dirs []string
}

// NewCargoCache creates a probe over dirs. Directories that do not exist
// are tolerated and simply never hit.
func NewCargoCache(dirs ...string) *CargoCache {
	return &CargoCache{dirs: append([]string(nil), dirs...)}
}

// Dirs returns the probed directories in order.
func (c *CargoCache) Dirs() []string {
	return append([]string(nil), c.dirs...)
}

// Lookup returns the first cached archive whose checksum matches.
func (c *CargoCache) Lookup(ctx context.Context, a crates.Archive) (Hit, bool) {
	hooks := observability.Cache()
	name := a.FileName()

	for _, dir := range c.dirs {
		if ctx.Err() != nil {
			return Hit{}, false
		}
		path := filepath.Join(dir, name)
		data, err := readVerified(path, a.Checksum)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if cderrors.Is(err, cderrors.ErrCodeChecksumMismatch) {
			hooks.OnCacheMiss(ctx, a.String(), "checksum mismatch in "+path)
			continue
		}
		if err != nil {
			hooks.OnCacheMiss(ctx, a.String(), "unreadable: "+err.Error())
			continue
		}
		hooks.OnCacheHit(ctx, a.String(), path)
		return Hit{Data: data, Path: path}, true
	}

	hooks.OnCacheMiss(ctx, a.String(), "not cached")
	return Hit{}, false
}

var _ Probe = (*CargoCache)(nil)

// readVerified reads the file at path, hashing it on the way in.
func readVerified(path string, want integrity.Checksum) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hr := integrity.NewHashingReader(f)
	data, err := io.ReadAll(hr)
	if err != nil {
		return nil, err
	}
	if err := hr.Verify(want); err != nil {
		return nil, err
	}
	return data, nil
}

// CargoHome returns $CARGO_HOME, or ~/.cargo when it is unset.
func CargoHome() (string, error) {
	if home := os.Getenv("CARGO_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cargo"), nil
}

// DefaultDirs lists every registry cache directory under cargoHome,
// sorted by name. A missing cache root yields no directories.
func DefaultDirs(cargoHome string) ([]string, error) {
	root := filepath.Join(cargoHome, "registry", "cache")
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
