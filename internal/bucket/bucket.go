// Package bucket maps (origin, source fingerprint, timestamp) to store
// object identifiers.
//
// Time is partitioned into fixed marks of 100 000 seconds. An origin's
// day map refines a mark into an epoch with a bucket count; a point's
// address modulo that count selects the bucket object.
package bucket

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/anchor/vaultaire/internal/types"
)

// TimeMarkInterval is the width of one time partition, in nanoseconds.
const TimeMarkInterval uint64 = 100000 * 1e9

// Kind names the two bucket families: fixed-width point objects and
// variable-width point objects.
type Kind string

const (
	Simple   Kind = "simple"
	Extended Kind = "extended"
)

// Address returns the 64-bit fingerprint of a source dictionary. The
// dictionary is hashed in canonical key order, so key ordering at the
// call site never affects the result.
func Address(s types.SourceDict) uint64 {
	h := xxhash.New()
	for _, k := range s.SortedKeys() {
		h.WriteString(k)
		h.Write([]byte{0})
		h.WriteString(s[k])
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// TimeMark returns the greatest mark at or below t.
func TimeMark(t uint64) uint64 {
	return t - t%TimeMarkInterval
}

// CalculateTimeMarks returns every mark whose partition intersects
// [alpha, omega], ascending. A mark equal to either bound is included.
func CalculateTimeMarks(alpha, omega uint64) []uint64 {
	if alpha > omega {
		alpha, omega = omega, alpha
	}

	var marks []uint64
	for mark := TimeMark(alpha); mark <= omega; mark += TimeMarkInterval {
		marks = append(marks, mark)
		if mark > ^uint64(0)-TimeMarkInterval {
			break
		}
	}
	return marks
}

// Oid formats the object identifier for one bucket. Both numeric fields
// are zero-padded to 20 digits so object names sort lexicographically
// in numeric order.
func Oid(origin types.Origin, epoch, bucket uint64, kind Kind) string {
	return fmt.Sprintf("02_%s_%020d_%020d_%s", origin, bucket, epoch, kind)
}

// SimpleDayOid is the object holding an origin's simple day map.
func SimpleDayOid(origin types.Origin) string {
	return "02_" + string(origin) + "_simple_days"
}

// ExtendedDayOid is the object holding an origin's extended day map.
func ExtendedDayOid(origin types.Origin) string {
	return "02_" + string(origin) + "_extended_days"
}

// ContentsOid is the object holding an origin's source directory.
func ContentsOid(origin types.Origin) string {
	return "02_" + string(origin) + "_contents"
}

// Label is the canonical human-readable bucket label for a point,
// carrying the origin, source fingerprint and second-scale time mark.
func Label(origin types.Origin, source types.SourceDict, timestamp uint64) string {
	return fmt.Sprintf("v01_%s_%020d_%d", origin, Address(source), TimeMark(timestamp)/1e9)
}
