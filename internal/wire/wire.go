// Package wire implements the client-facing record codec.
//
// Records use a length-delimited tagged-field schema compatible with
// Protocol Buffers v2 wire encoding, assembled directly with
// google.golang.org/protobuf/encoding/protowire. The messages:
//
//	SourceTag          { 1: field (string), 2: value (string) }
//	DataFrame          { 1: source (repeated SourceTag), 2: payload (enum),
//	                     3: timestamp (uint64), 4: value_numeric (int64),
//	                     5: value_measurement (double), 6: value_textual (string),
//	                     7: value_blob (bytes) }
//	DataBurst          { 1: frames (repeated DataFrame) }
//	ReadRequest        { 1: address (uint64), 2: alpha (uint64), 3: omega (uint64) }
//	ReadRequestMulti   { 1: requests (repeated ReadRequest) }
//	SourceResponse     { 1: address (uint64), 2: source (repeated SourceTag) }
//	SourceResponseBurst{ 1: sources (repeated SourceResponse) }
//
// Unknown field numbers are skipped on decode for forward compatibility.
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	verrors "github.com/anchor/vaultaire/internal/errors"
	"github.com/anchor/vaultaire/internal/types"
)

// =============================================================================
// DataBurst encoding
// =============================================================================

// EncodePoints produces a DataBurst whose frames preserve input order.
func EncodePoints(points []types.Point) []byte {
	var buf []byte
	for i := range points {
		frame := appendFrame(nil, &points[i])
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, frame)
	}
	return buf
}

func appendFrame(buf []byte, p *types.Point) []byte {
	for _, k := range p.Source.SortedKeys() {
		tag := appendSourceTag(nil, k, p.Source[k])
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, tag)
	}
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(p.Payload.Kind))
	buf = protowire.AppendTag(buf, 3, protowire.VarintType)
	buf = protowire.AppendVarint(buf, p.Timestamp)

	switch p.Payload.Kind {
	case types.PayloadNumber:
		buf = protowire.AppendTag(buf, 4, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(p.Payload.Numeric))
	case types.PayloadReal:
		buf = protowire.AppendTag(buf, 5, protowire.Fixed64Type)
		buf = protowire.AppendFixed64(buf, math.Float64bits(p.Payload.Measurement))
	case types.PayloadText:
		buf = protowire.AppendTag(buf, 6, protowire.BytesType)
		buf = protowire.AppendString(buf, p.Payload.Textual)
	case types.PayloadBinary:
		buf = protowire.AppendTag(buf, 7, protowire.BytesType)
		buf = protowire.AppendBytes(buf, p.Payload.Blob)
	}
	return buf
}

func appendSourceTag(buf []byte, field, value string) []byte {
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendString(buf, field)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendString(buf, value)
	return buf
}

// =============================================================================
// DataBurst decoding
// =============================================================================

// DecodeBurst parses a DataBurst into points. Frame order is preserved.
func DecodeBurst(data []byte) ([]types.Point, error) {
	var points []types.Point
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("burst tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num == 1 && typ == protowire.BytesType {
			frame, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("burst frame: %w", protowire.ParseError(n))
			}
			data = data[n:]

			p, err := decodeFrame(frame)
			if err != nil {
				return nil, err
			}
			points = append(points, p)
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, fmt.Errorf("burst field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return points, nil
}

func decodeFrame(data []byte) (types.Point, error) {
	p := types.Point{Source: types.SourceDict{}}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return p, fmt.Errorf("frame tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			tag, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return p, fmt.Errorf("frame source: %w", protowire.ParseError(n))
			}
			data = data[n:]
			field, value, err := decodeSourceTag(tag)
			if err != nil {
				return p, err
			}
			p.Source[field] = value

		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return p, fmt.Errorf("frame payload kind: %w", protowire.ParseError(n))
			}
			data = data[n:]
			p.Payload.Kind = types.PayloadKind(v)

		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return p, fmt.Errorf("frame timestamp: %w", protowire.ParseError(n))
			}
			data = data[n:]
			p.Timestamp = v

		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return p, fmt.Errorf("frame numeric: %w", protowire.ParseError(n))
			}
			data = data[n:]
			p.Payload.Numeric = int64(v)

		case num == 5 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return p, fmt.Errorf("frame measurement: %w", protowire.ParseError(n))
			}
			data = data[n:]
			p.Payload.Measurement = math.Float64frombits(v)

		case num == 6 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return p, fmt.Errorf("frame textual: %w", protowire.ParseError(n))
			}
			data = data[n:]
			p.Payload.Textual = v

		case num == 7 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return p, fmt.Errorf("frame blob: %w", protowire.ParseError(n))
			}
			data = data[n:]
			p.Payload.Blob = append([]byte(nil), v...)

		default:
			// Unknown field, skip.
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return p, fmt.Errorf("frame field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return p, nil
}

func decodeSourceTag(data []byte) (field, value string, err error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", "", fmt.Errorf("source tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if typ == protowire.BytesType && (num == 1 || num == 2) {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", "", fmt.Errorf("source tag field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			if num == 1 {
				field = v
			} else {
				value = v
			}
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return "", "", fmt.Errorf("source tag field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return field, value, nil
}

// =============================================================================
// Requests
// =============================================================================

// EncodeRequestMulti encodes requests into a ReadRequestMulti. Used by
// test clients; the daemon only decodes.
func EncodeRequestMulti(reqs []types.Request) []byte {
	var buf []byte
	for _, r := range reqs {
		var sub []byte
		sub = protowire.AppendTag(sub, 1, protowire.VarintType)
		sub = protowire.AppendVarint(sub, r.Address)
		sub = protowire.AppendTag(sub, 2, protowire.VarintType)
		sub = protowire.AppendVarint(sub, r.Alpha)
		sub = protowire.AppendTag(sub, 3, protowire.VarintType)
		sub = protowire.AppendVarint(sub, r.Omega)

		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	}
	return buf
}

// DecodeRequestMulti parses zero or more requests for origin. Malformed
// bytes fail the whole batch.
func DecodeRequestMulti(origin types.Origin, data []byte) ([]types.Request, error) {
	var reqs []types.Request
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, verrors.Wrap(verrors.ErrMalformedRequest, "request tag")
		}
		data = data[n:]

		if num == 1 && typ == protowire.BytesType {
			sub, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, verrors.Wrap(verrors.ErrMalformedRequest, "request body")
			}
			data = data[n:]

			r, err := decodeRequest(origin, sub)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, r)
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, verrors.Wrapf(verrors.ErrMalformedRequest, "request field %d", num)
		}
		data = data[n:]
	}
	return reqs, nil
}

func decodeRequest(origin types.Origin, data []byte) (types.Request, error) {
	r := types.Request{Origin: origin}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return r, verrors.Wrap(verrors.ErrMalformedRequest, "request tag")
		}
		data = data[n:]

		if typ == protowire.VarintType && num >= 1 && num <= 3 {
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return r, verrors.Wrapf(verrors.ErrMalformedRequest, "request field %d", num)
			}
			data = data[n:]
			switch num {
			case 1:
				r.Address = v
			case 2:
				r.Alpha = v
			case 3:
				r.Omega = v
			}
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return r, verrors.Wrapf(verrors.ErrMalformedRequest, "request field %d", num)
		}
		data = data[n:]
	}
	return r, nil
}

// =============================================================================
// Source responses (contents queries)
// =============================================================================

// SourceEntry is one directory entry returned by a contents query.
type SourceEntry struct {
	Address uint64
	Source  types.SourceDict
}

// EncodeSourceBurst encodes directory entries into a SourceResponseBurst.
func EncodeSourceBurst(entries []SourceEntry) []byte {
	var buf []byte
	for _, e := range entries {
		var sub []byte
		sub = protowire.AppendTag(sub, 1, protowire.VarintType)
		sub = protowire.AppendVarint(sub, e.Address)
		for _, k := range e.Source.SortedKeys() {
			tag := appendSourceTag(nil, k, e.Source[k])
			sub = protowire.AppendTag(sub, 2, protowire.BytesType)
			sub = protowire.AppendBytes(sub, tag)
		}
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	}
	return buf
}

// DecodeSourceBurst parses a SourceResponseBurst.
func DecodeSourceBurst(data []byte) ([]SourceEntry, error) {
	var entries []SourceEntry
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("source burst tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num == 1 && typ == protowire.BytesType {
			sub, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("source burst entry: %w", protowire.ParseError(n))
			}
			data = data[n:]

			e, err := decodeSourceEntry(sub)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, fmt.Errorf("source burst field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return entries, nil
}

func decodeSourceEntry(data []byte) (SourceEntry, error) {
	e := SourceEntry{Source: types.SourceDict{}}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return e, fmt.Errorf("source entry tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return e, fmt.Errorf("source entry address: %w", protowire.ParseError(n))
			}
			data = data[n:]
			e.Address = v

		case num == 2 && typ == protowire.BytesType:
			tag, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return e, fmt.Errorf("source entry tag: %w", protowire.ParseError(n))
			}
			data = data[n:]
			field, value, err := decodeSourceTag(tag)
			if err != nil {
				return e, err
			}
			e.Source[field] = value

		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return e, fmt.Errorf("source entry field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return e, nil
}
