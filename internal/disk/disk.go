// Package disk implements the on-disk bucket record codec.
//
// Every stored point record starts with a 2-byte header: a packed
// VaultPrefix byte followed by the low byte of the payload length.
//
// Prefix byte layout (msb to lsb):
//
//	bit 7    extended flag (variable-width payload)
//	bits 6-4 version (0-7)
//	bit 3    compression (0 = Normal, 1 = Compressed)
//	bit 2    quantity (0 = Single, 1 = Multiple)
//	bits 1-0 high two bits of the payload length
//
// The payload follows, raw or LZ4-frame compressed. Single payloads
// carry one point: address (8 bytes LE), timestamp (8 bytes LE), a
// payload kind byte, then the value (8 bytes LE for fixed-width kinds,
// a 4-byte LE length plus bytes for variable-width kinds, nothing for
// empty). A Multiple payload is a concatenation of complete Single
// records.
package disk

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/anchor/vaultaire/internal/types"
)

// CurrentVersion is written into every new prefix.
const CurrentVersion = 1

// MaxPayloadSize is the largest payload a single record can frame:
// two prefix bits plus one length byte give a 10-bit length.
const MaxPayloadSize = 1<<10 - 1

// Compression selects the payload encoding.
type Compression uint8

const (
	Normal Compression = iota
	Compressed
)

// Quantity distinguishes a single point payload from a packed run.
type Quantity uint8

const (
	Single Quantity = iota
	Multiple
)

// VaultPrefix is the decoded record header.
type VaultPrefix struct {
	Extended    bool
	Version     uint8
	Compression Compression
	Quantity    Quantity
	Size        uint16
}

// Encode packs the prefix into its 2-byte on-disk form.
func (p VaultPrefix) Encode() ([]byte, error) {
	if p.Version > 7 {
		return nil, fmt.Errorf("prefix version %d out of range", p.Version)
	}
	if p.Size > MaxPayloadSize {
		return nil, fmt.Errorf("prefix size %d out of range", p.Size)
	}

	var b byte
	if p.Extended {
		b |= 1 << 7
	}
	b |= (p.Version & 0x07) << 4
	if p.Compression == Compressed {
		b |= 1 << 3
	}
	if p.Quantity == Multiple {
		b |= 1 << 2
	}
	b |= byte(p.Size >> 8)

	return []byte{b, byte(p.Size & 0xff)}, nil
}

// DecodePrefix unpacks a 2-byte header. The input may be longer; only
// the first two bytes are read.
func DecodePrefix(data []byte) (VaultPrefix, error) {
	if len(data) < 2 {
		return VaultPrefix{}, fmt.Errorf("prefix truncated: %d bytes", len(data))
	}

	b := data[0]
	p := VaultPrefix{
		Extended: b&(1<<7) != 0,
		Version:  (b >> 4) & 0x07,
		Size:     uint16(b&0x03)<<8 | uint16(data[1]),
	}
	if b&(1<<3) != 0 {
		p.Compression = Compressed
	}
	if b&(1<<2) != 0 {
		p.Quantity = Multiple
	}
	return p, nil
}

// Record is one stored point, addressed by source fingerprint rather
// than the full source dictionary.
type Record struct {
	Address   uint64
	Timestamp uint64
	Payload   types.Payload
}

// =============================================================================
// Encoding
// =============================================================================

// EncodeRecords frames records into a bucket object body. Each record
// is compressed when that makes it smaller.
func EncodeRecords(recs []Record) ([]byte, error) {
	var out []byte
	for i := range recs {
		enc, err := EncodeRecord(&recs[i])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, enc...)
	}
	return out, nil
}

// EncodeRecord frames a single record: prefix, length, payload.
func EncodeRecord(r *Record) ([]byte, error) {
	body := encodeBody(r)

	compression := Normal
	if comp, err := Compress(body); err == nil && len(comp) < len(body) {
		body = comp
		compression = Compressed
	}

	if len(body) > MaxPayloadSize {
		return nil, fmt.Errorf("payload %d bytes exceeds frame limit", len(body))
	}

	prefix := VaultPrefix{
		Extended:    !r.Payload.Kind.Fixed(),
		Version:     CurrentVersion,
		Compression: compression,
		Quantity:    Single,
		Size:        uint16(len(body)),
	}
	head, err := prefix.Encode()
	if err != nil {
		return nil, err
	}
	return append(head, body...), nil
}

// EncodeMultiple frames a run of records as one Multiple record whose
// payload is the concatenation of the Single encodings.
func EncodeMultiple(recs []Record) ([]byte, error) {
	packed, err := EncodeRecords(recs)
	if err != nil {
		return nil, err
	}
	if len(packed) > MaxPayloadSize {
		return nil, fmt.Errorf("packed run %d bytes exceeds frame limit", len(packed))
	}

	extended := false
	for i := range recs {
		if !recs[i].Payload.Kind.Fixed() {
			extended = true
		}
	}

	prefix := VaultPrefix{
		Extended:    extended,
		Version:     CurrentVersion,
		Compression: Normal,
		Quantity:    Multiple,
		Size:        uint16(len(packed)),
	}
	head, err := prefix.Encode()
	if err != nil {
		return nil, err
	}
	return append(head, packed...), nil
}

func encodeBody(r *Record) []byte {
	buf := make([]byte, 0, 32)
	buf = binary.LittleEndian.AppendUint64(buf, r.Address)
	buf = binary.LittleEndian.AppendUint64(buf, r.Timestamp)
	buf = append(buf, byte(r.Payload.Kind))

	switch r.Payload.Kind {
	case types.PayloadNumber:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(r.Payload.Numeric))
	case types.PayloadReal:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(r.Payload.Measurement))
	case types.PayloadText:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Payload.Textual)))
		buf = append(buf, r.Payload.Textual...)
	case types.PayloadBinary:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Payload.Blob)))
		buf = append(buf, r.Payload.Blob...)
	}
	return buf
}

// =============================================================================
// Decoding
// =============================================================================

// DecodeRecords walks a bucket object body and decodes every framed
// record, flattening Multiple runs.
func DecodeRecords(data []byte) ([]Record, error) {
	var recs []Record
	for len(data) > 0 {
		prefix, err := DecodePrefix(data)
		if err != nil {
			return nil, err
		}
		data = data[2:]

		if int(prefix.Size) > len(data) {
			return nil, fmt.Errorf("payload truncated: want %d, have %d", prefix.Size, len(data))
		}
		body := data[:prefix.Size]
		data = data[prefix.Size:]

		if prefix.Compression == Compressed {
			body, err = Decompress(body)
			if err != nil {
				return nil, fmt.Errorf("payload decompress: %w", err)
			}
		}

		if prefix.Quantity == Multiple {
			inner, err := DecodeRecords(body)
			if err != nil {
				return nil, fmt.Errorf("packed run: %w", err)
			}
			recs = append(recs, inner...)
			continue
		}

		r, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, nil
}

func decodeBody(body []byte) (Record, error) {
	var r Record
	if len(body) < 17 {
		return r, fmt.Errorf("record body truncated: %d bytes", len(body))
	}

	r.Address = binary.LittleEndian.Uint64(body[0:8])
	r.Timestamp = binary.LittleEndian.Uint64(body[8:16])
	r.Payload.Kind = types.PayloadKind(body[16])
	rest := body[17:]

	switch r.Payload.Kind {
	case types.PayloadEmpty:

	case types.PayloadNumber:
		if len(rest) < 8 {
			return r, fmt.Errorf("numeric value truncated")
		}
		r.Payload.Numeric = int64(binary.LittleEndian.Uint64(rest))

	case types.PayloadReal:
		if len(rest) < 8 {
			return r, fmt.Errorf("measurement value truncated")
		}
		r.Payload.Measurement = math.Float64frombits(binary.LittleEndian.Uint64(rest))

	case types.PayloadText:
		s, err := readBytesValue(rest)
		if err != nil {
			return r, err
		}
		r.Payload.Textual = string(s)

	case types.PayloadBinary:
		s, err := readBytesValue(rest)
		if err != nil {
			return r, err
		}
		r.Payload.Blob = append([]byte(nil), s...)

	default:
		return r, fmt.Errorf("unknown payload kind %d", r.Payload.Kind)
	}
	return r, nil
}

func readBytesValue(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("value length truncated")
	}
	n := int(binary.LittleEndian.Uint32(data))
	if 4+n > len(data) {
		return nil, fmt.Errorf("value truncated: want %d, have %d", n, len(data)-4)
	}
	return data[4 : 4+n], nil
}
