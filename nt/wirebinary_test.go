package nt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// A standards-compliant NT4 client encodes integers as compactly as
// MessagePack allows (positive fixint, int8, uint16, uint32, ...), not
// always as a full-width int64. decodeValue must accept every width, not
// just the one encodeBinaryUpdate itself happens to produce.
func TestDecodeValueAcceptsCompactIntWidths(t *testing.T) {
	cases := []struct {
		name string
		enc  func(*msgpack.Encoder) error
		want int64
	}{
		{"positive fixint", func(e *msgpack.Encoder) error { return e.EncodeInt(42) }, 42},
		{"uint16", func(e *msgpack.Encoder) error { return e.Encode(uint16(555)) }, 555},
		{"uint32", func(e *msgpack.Encoder) error { return e.Encode(uint32(1_000_000)) }, 1_000_000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := msgpack.NewEncoder(&buf)
			require.NoError(t, enc.EncodeArrayLen(4))
			require.NoError(t, enc.EncodeInt64(1))
			require.NoError(t, enc.EncodeUint64(0))
			require.NoError(t, enc.EncodeInt64(2)) // wire code for Int
			require.NoError(t, tc.enc(enc))

			updates, err := decodeBinaryMessages(buf.Bytes())
			require.NoError(t, err)
			require.Len(t, updates, 1)
			require.Equal(t, tc.want, updates[0].Value.Int())
		})
	}
}
