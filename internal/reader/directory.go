package reader

import (
	"sort"
	"sync"

	"github.com/anchor/vaultaire/internal/types"
	"github.com/anchor/vaultaire/internal/wire"
)

// Directory is the cached per-origin source dictionary listing. One
// instance exists per daemon; only the contents worker mutates it, and
// every access runs under the exclusive lock.
type Directory struct {
	mu      sync.Mutex
	origins map[types.Origin]map[uint64]types.SourceDict
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{origins: make(map[types.Origin]map[uint64]types.SourceDict)}
}

// Update merges entries for origin and returns the origin's full
// listing, sorted by address. Merge and enumerate happen under one
// lock acquisition so a concurrent reader never sees a half-merged
// origin.
func (d *Directory) Update(origin types.Origin, entries []wire.SourceEntry) []wire.SourceEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.origins[origin]
	if !ok {
		m = make(map[uint64]types.SourceDict)
		d.origins[origin] = m
	}
	for _, e := range entries {
		m[e.Address] = e.Source.Clone()
	}

	out := make([]wire.SourceEntry, 0, len(m))
	for addr, src := range m {
		out = append(out, wire.SourceEntry{Address: addr, Source: src.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Lookup resolves an address to its source dictionary, if known.
func (d *Directory) Lookup(origin types.Origin, address uint64) (types.SourceDict, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.origins[origin]
	if !ok {
		return nil, false
	}
	src, ok := m[address]
	if !ok {
		return nil, false
	}
	return src.Clone(), true
}
