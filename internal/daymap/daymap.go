// Package daymap loads and caches per-origin day maps.
//
// A day map is an ordered sequence of (start timestamp, bucket count)
// entries: the epoch for a timestamp is the greatest start at or below
// it, and the bucket count at that epoch spreads addresses across
// bucket objects. Each origin has two maps, one for simple buckets and
// one for extended buckets.
//
// The byte length of the stored day file doubles as the cache validity
// token: the cache is revalidated by stat, never by content comparison.
package daymap

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Entry is one epoch: points from Start (inclusive) onward hash into
// Buckets bucket objects, until a later entry takes over.
type Entry struct {
	Start   uint64
	Buckets uint64
}

// Map is an ordered day map.
type Map []Entry

// EntrySize is the on-disk size of one entry: two little-endian u64s.
const EntrySize = 16

// Decode parses a day file. Entries must be strictly ascending by
// start and carry a nonzero bucket count.
func Decode(data []byte) (Map, error) {
	if len(data)%EntrySize != 0 {
		return nil, fmt.Errorf("day file length %d not a multiple of %d", len(data), EntrySize)
	}

	m := make(Map, 0, len(data)/EntrySize)
	for off := 0; off < len(data); off += EntrySize {
		e := Entry{
			Start:   binary.LittleEndian.Uint64(data[off:]),
			Buckets: binary.LittleEndian.Uint64(data[off+8:]),
		}
		if e.Buckets == 0 {
			return nil, fmt.Errorf("day file entry %d has zero buckets", off/EntrySize)
		}
		if len(m) > 0 && e.Start <= m[len(m)-1].Start {
			return nil, fmt.Errorf("day file entries not ascending at %d", off/EntrySize)
		}
		m = append(m, e)
	}
	return m, nil
}

// Encode serializes a day map. Inverse of Decode; used by tests and
// provisioning tools.
func (m Map) Encode() []byte {
	buf := make([]byte, 0, len(m)*EntrySize)
	for _, e := range m {
		buf = binary.LittleEndian.AppendUint64(buf, e.Start)
		buf = binary.LittleEndian.AppendUint64(buf, e.Buckets)
	}
	return buf
}

// Lookup returns the epoch containing t: the entry with the greatest
// start at or below t. Reports false when t precedes every entry or
// the map is empty.
func (m Map) Lookup(t uint64) (Entry, bool) {
	i := sort.Search(len(m), func(i int) bool { return m[i].Start > t })
	if i == 0 {
		return Entry{}, false
	}
	return m[i-1], true
}
