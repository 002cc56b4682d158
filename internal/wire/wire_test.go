package wire

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	verrors "github.com/anchor/vaultaire/internal/errors"
	"github.com/anchor/vaultaire/internal/types"
)

func TestBurstRoundTrip(t *testing.T) {
	points := []types.Point{
		{
			Origin:    "arithmetic",
			Source:    types.SourceDict{"hostname": "web01", "metric": "cpu"},
			Timestamp: 1387929601271828182,
			Payload:   types.Payload{Kind: types.PayloadReal, Measurement: 2.718281},
		},
		{
			Origin:    "arithmetic",
			Source:    types.SourceDict{"metric": "requests"},
			Timestamp: 1387929601314159265,
			Payload:   types.Payload{Kind: types.PayloadNumber, Numeric: -42},
		},
		{
			Origin:    "arithmetic",
			Source:    types.SourceDict{},
			Timestamp: 7,
			Payload:   types.Payload{Kind: types.PayloadText, Textual: "hello"},
		},
		{
			Origin:    "arithmetic",
			Source:    types.SourceDict{},
			Timestamp: 8,
			Payload:   types.Payload{Kind: types.PayloadBinary, Blob: []byte{0x00, 0xff, 0x10}},
		},
		{
			Origin:    "arithmetic",
			Source:    types.SourceDict{},
			Timestamp: 9,
			Payload:   types.Payload{Kind: types.PayloadEmpty},
		},
	}

	data := EncodePoints(points)
	decoded, err := DecodeBurst(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded) != len(points) {
		t.Fatalf("expected %d frames, got %d", len(points), len(decoded))
	}

	for i, p := range points {
		d := decoded[i]
		if d.Timestamp != p.Timestamp {
			t.Errorf("frame %d: timestamp mismatch", i)
		}
		if d.Payload.Kind != p.Payload.Kind {
			t.Errorf("frame %d: payload kind mismatch", i)
		}
		if d.Payload.Numeric != p.Payload.Numeric {
			t.Errorf("frame %d: numeric mismatch", i)
		}
		if d.Payload.Measurement != p.Payload.Measurement {
			t.Errorf("frame %d: measurement mismatch", i)
		}
		if d.Payload.Textual != p.Payload.Textual {
			t.Errorf("frame %d: textual mismatch", i)
		}
		if !bytes.Equal(d.Payload.Blob, p.Payload.Blob) {
			t.Errorf("frame %d: blob mismatch", i)
		}
		if len(d.Source) != len(p.Source) {
			t.Errorf("frame %d: source size mismatch", i)
		}
		for k, v := range p.Source {
			if d.Source[k] != v {
				t.Errorf("frame %d: source %q mismatch", i, k)
			}
		}
	}
}

func TestEmptyBurst(t *testing.T) {
	decoded, err := DecodeBurst(nil)
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected no frames, got %d", len(decoded))
	}
}

// Unknown field numbers must be skipped, so a stream with a trailing
// unknown tag decodes to the same logical point.
func TestUnknownTagSkipped(t *testing.T) {
	p := types.Point{
		Source:    types.SourceDict{"metric": "cpu"},
		Timestamp: 1234,
		Payload:   types.Payload{Kind: types.PayloadNumber, Numeric: 99},
	}
	frame := appendFrame(nil, &p)

	// Same frame with an unknown varint field 9 and unknown bytes field 12.
	extended := append([]byte(nil), frame...)
	extended = protowire.AppendTag(extended, 9, protowire.VarintType)
	extended = protowire.AppendVarint(extended, 777)
	extended = protowire.AppendTag(extended, 12, protowire.BytesType)
	extended = protowire.AppendBytes(extended, []byte("future"))

	var burst []byte
	burst = protowire.AppendTag(burst, 1, protowire.BytesType)
	burst = protowire.AppendBytes(burst, extended)

	decoded, err := DecodeBurst(burst)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(decoded))
	}
	d := decoded[0]
	if d.Timestamp != p.Timestamp || d.Payload.Numeric != p.Payload.Numeric {
		t.Errorf("unknown tags changed decoded point: %+v", d)
	}
	if d.Source["metric"] != "cpu" {
		t.Errorf("source lost: %+v", d.Source)
	}
}

func TestRequestMultiRoundTrip(t *testing.T) {
	reqs := []types.Request{
		{Address: 0xdeadbeef, Alpha: 100, Omega: 200},
		{Address: 1, Alpha: 0, Omega: 18446744073709551615},
	}

	data := EncodeRequestMulti(reqs)
	decoded, err := DecodeRequestMulti("tenant", data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded) != len(reqs) {
		t.Fatalf("expected %d requests, got %d", len(reqs), len(decoded))
	}
	for i, r := range reqs {
		d := decoded[i]
		if d.Origin != "tenant" {
			t.Errorf("request %d: origin not stamped", i)
		}
		if d.Address != r.Address {
			t.Errorf("request %d: address mismatch", i)
		}
		if d.Alpha != r.Alpha || d.Omega != r.Omega {
			t.Errorf("request %d: range mismatch", i)
		}
	}
}

func TestRequestMultiEmpty(t *testing.T) {
	decoded, err := DecodeRequestMulti("tenant", nil)
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected no requests, got %d", len(decoded))
	}
}

// A malformed batch fails as a whole with ErrMalformedRequest.
func TestRequestMultiMalformed(t *testing.T) {
	cases := [][]byte{
		{0x0a},             // bytes field with missing length
		{0x0a, 0x10, 0x01}, // length past end of buffer
		{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, // bad varint tag
	}
	for i, data := range cases {
		if _, err := DecodeRequestMulti("tenant", data); !errors.Is(err, verrors.ErrMalformedRequest) {
			t.Errorf("case %d: expected ErrMalformedRequest, got %v", i, err)
		}
	}
}

func TestSourceBurstRoundTrip(t *testing.T) {
	entries := []SourceEntry{
		{Address: 7, Source: types.SourceDict{"wave": "sine"}},
		{Address: 9, Source: types.SourceDict{"hostname": "web01", "metric": "mem"}},
	}

	data := EncodeSourceBurst(entries)
	decoded, err := DecodeSourceBurst(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(decoded))
	}
	for i, e := range entries {
		d := decoded[i]
		if d.Address != e.Address {
			t.Errorf("entry %d: address mismatch", i)
		}
		for k, v := range e.Source {
			if d.Source[k] != v {
				t.Errorf("entry %d: source %q mismatch", i, k)
			}
		}
	}
}
