package bucket

import (
	"strings"
	"testing"

	"github.com/anchor/vaultaire/internal/types"
)

// The address is a pure function of the key-value set, not of any
// iteration or insertion order.
func TestAddressOrderInvariant(t *testing.T) {
	a := types.SourceDict{}
	a["hostname"] = "web01.example.com"
	a["metric"] = "math-constants"
	a["datacenter"] = "lhr1"

	b := types.SourceDict{}
	b["metric"] = "math-constants"
	b["datacenter"] = "lhr1"
	b["hostname"] = "web01.example.com"

	if Address(a) != Address(b) {
		t.Error("address differs between insertion orders")
	}

	c := a.Clone()
	c["metric"] = "something-else"
	if Address(a) == Address(c) {
		t.Error("address collision between distinct dictionaries")
	}
}

// Keys and values must not bleed into one another: {"ab":"c"} and
// {"a":"bc"} are different dictionaries.
func TestAddressFieldBoundaries(t *testing.T) {
	a := types.SourceDict{"ab": "c"}
	b := types.SourceDict{"a": "bc"}
	if Address(a) == Address(b) {
		t.Error("address collision across key/value boundary")
	}
}

// Two points with the same origin and source set whose timestamps fall
// in the same epoch share a bucket label (scenario from the wire: the
// arithmetic origin, constants e and pi, milliseconds apart within one
// partition).
func TestLabelCanonicalization(t *testing.T) {
	source1 := types.SourceDict{
		"hostname":   "web01.example.com",
		"metric":     "math-constants",
		"datacenter": "lhr1",
	}
	source2 := types.SourceDict{
		"metric":     "math-constants",
		"datacenter": "lhr1",
		"hostname":   "web01.example.com",
	}

	l1 := Label("arithmetic", source1, 1387929601271828182)
	l2 := Label("arithmetic", source2, 1387929601314159265)

	if l1 != l2 {
		t.Errorf("labels differ: %q vs %q", l1, l2)
	}
	if !strings.HasPrefix(l1, "v01_arithmetic_") {
		t.Errorf("unexpected label prefix: %q", l1)
	}
	if !strings.HasSuffix(l1, "_1387900000") {
		t.Errorf("unexpected label time mark: %q", l1)
	}
}

func TestTimeMarks(t *testing.T) {
	tests := []struct {
		name  string
		alpha uint64
		omega uint64
		want  []uint64
	}{
		{
			name:  "single partition",
			alpha: TimeMarkInterval + 5,
			omega: TimeMarkInterval + 10,
			want:  []uint64{TimeMarkInterval},
		},
		{
			name:  "spanning three partitions",
			alpha: TimeMarkInterval - 1,
			omega: 2*TimeMarkInterval + 1,
			want:  []uint64{0, TimeMarkInterval, 2 * TimeMarkInterval},
		},
		{
			name:  "omega on boundary included",
			alpha: 1,
			omega: TimeMarkInterval,
			want:  []uint64{0, TimeMarkInterval},
		},
		{
			name:  "alpha on boundary included",
			alpha: TimeMarkInterval,
			omega: TimeMarkInterval + 1,
			want:  []uint64{TimeMarkInterval},
		},
		{
			name:  "equal bounds",
			alpha: 42,
			omega: 42,
			want:  []uint64{0},
		},
		{
			name:  "reversed bounds swapped",
			alpha: TimeMarkInterval + 10,
			omega: 5,
			want:  []uint64{0, TimeMarkInterval},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateTimeMarks(tt.alpha, tt.omega)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

// Marks are strictly increasing and their partitions cover the whole
// query range.
func TestTimeMarkCoverage(t *testing.T) {
	cases := []struct{ alpha, omega uint64 }{
		{0, 0},
		{1, TimeMarkInterval * 7},
		{TimeMarkInterval - 1, TimeMarkInterval + 1},
		{1387929601271828182, 1387929601314159265},
	}
	for _, c := range cases {
		marks := CalculateTimeMarks(c.alpha, c.omega)
		if len(marks) == 0 {
			t.Fatalf("no marks for [%d, %d]", c.alpha, c.omega)
		}
		if marks[0] > c.alpha {
			t.Errorf("first mark %d past alpha %d", marks[0], c.alpha)
		}
		if last := marks[len(marks)-1]; last+TimeMarkInterval <= c.omega {
			t.Errorf("last mark %d leaves omega %d uncovered", last, c.omega)
		}
		for i := 1; i < len(marks); i++ {
			if marks[i] <= marks[i-1] {
				t.Errorf("marks not strictly increasing: %v", marks)
			}
		}
	}
}

func TestOidFormat(t *testing.T) {
	oid := Oid("arithmetic", 1387900000000000000, 42, Simple)
	want := "02_arithmetic_00000000000000000042_01387900000000000000_simple"
	if oid != want {
		t.Errorf("got %q, want %q", oid, want)
	}

	if got := SimpleDayOid("arithmetic"); got != "02_arithmetic_simple_days" {
		t.Errorf("simple day oid: %q", got)
	}
	if got := ExtendedDayOid("arithmetic"); got != "02_arithmetic_extended_days" {
		t.Errorf("extended day oid: %q", got)
	}
	if got := ContentsOid("arithmetic"); got != "02_arithmetic_contents" {
		t.Errorf("contents oid: %q", got)
	}
}
