package disk

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"

	verrors "github.com/anchor/vaultaire/internal/errors"
)

// Compress encodes data in the LZ4 frame format. A compressor that
// produces no output is reported as ErrCompressionFailed.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, verrors.Wrap(err, "lz4 write")
	}
	if err := w.Close(); err != nil {
		return nil, verrors.Wrap(err, "lz4 close")
	}
	if buf.Len() == 0 {
		return nil, verrors.ErrCompressionFailed
	}
	return buf.Bytes(), nil
}

// Decompress decodes an LZ4 frame.
func Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, verrors.Wrap(err, "lz4 read")
	}
	return out, nil
}
