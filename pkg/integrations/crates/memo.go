package crates

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Index fetches parsed index files by crate name.
// [*Client] and [*Memo] both implement it.
type Index interface {
	Fetch(ctx context.Context, name string) (*IndexFile, error)
}

// Memo memoizes index lookups for the duration of one batch.
//
// Concurrent lookups of the same name share a single request, and every
// outcome except cancellation is remembered, so a name is queried at most
// once per Memo. Names are keyed case-insensitively, matching the index
// path rules. A Memo is never shared between batches.
type Memo struct {
	index Index
	group singleflight.Group

	mu    sync.Mutex
	files map[string]memoResult
}

type memoResult struct {
	file *IndexFile
	err  error
}

// NewMemo returns an empty memo in front of index.
func NewMemo(index Index) *Memo {
	return &Memo{index: index, files: make(map[string]memoResult)}
}

// Fetch returns the memoized index file for name, querying the underlying
// index on first use.
func (m *Memo) Fetch(ctx context.Context, name string) (*IndexFile, error) {
	key := strings.ToLower(name)
	if r, ok := m.lookup(key); ok {
		return r.file, r.err
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		if r, ok := m.lookup(key); ok {
			return r.file, r.err
		}
		file, err := m.index.Fetch(ctx, name)
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			m.mu.Lock()
			m.files[key] = memoResult{file: file, err: err}
			m.mu.Unlock()
		}
		return file, err
	})
	file, _ := v.(*IndexFile)
	return file, err
}

// Len returns the number of names remembered so far.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func (m *Memo) lookup(key string) (memoResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.files[key]
	return r, ok
}
