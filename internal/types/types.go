// Package types defines the core data model shared across the reader daemon:
// origins, source dictionaries, payloads, points, and read requests.
package types

import "sort"

// Origin is the opaque tenant namespace identifier. It prefixes every
// object key in the store.
type Origin string

// SourceDict is the tag set identifying one metric series. Canonical
// order is lexicographic by key; hashing is order-invariant.
type SourceDict map[string]string

// SortedKeys returns the dictionary keys in canonical order.
func (s SourceDict) SortedKeys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy of the dictionary.
func (s SourceDict) Clone() SourceDict {
	out := make(SourceDict, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// PayloadKind discriminates the point payload union.
type PayloadKind int32

const (
	PayloadEmpty PayloadKind = iota
	PayloadNumber
	PayloadReal
	PayloadText
	PayloadBinary
)

// Fixed reports whether the payload is fixed width on disk. Fixed-width
// payloads live in simple buckets, the rest in extended buckets.
func (k PayloadKind) Fixed() bool {
	switch k {
	case PayloadEmpty, PayloadNumber, PayloadReal:
		return true
	default:
		return false
	}
}

// Payload is the tagged value union carried by a point. Exactly one of
// the value fields is meaningful, selected by Kind; an Empty payload
// carries none.
type Payload struct {
	Kind        PayloadKind
	Numeric     int64
	Measurement float64
	Textual     string
	Blob        []byte
}

// Point is one time-series sample.
type Point struct {
	Origin    Origin
	Source    SourceDict
	Timestamp uint64 // nanoseconds since epoch
	Payload   Payload
}

// Request is one decoded client read request: all points for a source
// fingerprint within [Alpha, Omega], inclusive on both ends.
type Request struct {
	Origin  Origin
	Address uint64
	Alpha   uint64
	Omega   uint64
}
