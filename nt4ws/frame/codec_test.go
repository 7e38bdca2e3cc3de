package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 125, 126, 65535, 65536, 200000}
	for _, n := range sizes {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}

		f := Frame{FIN: true, Opcode: OpBinary, Masked: true, MaskKey: [4]byte{0x11, 0x22, 0x33, 0x44}, Payload: payload}

		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, f))

		got, err := Decode(&buf)
		require.NoError(t, err)
		require.Equal(t, f.FIN, got.FIN)
		require.Equal(t, f.Opcode, got.Opcode)
		require.True(t, bytes.Equal(payload, got.Payload), "size %d", n)
	}
}

func TestMaskIsInvolutive(t *testing.T) {
	key := [4]byte{0xDE, 0xAD, 0xBE, 0xEF}
	original := []byte("the quick brown fox jumps over the lazy dog")
	working := append([]byte(nil), original...)

	Mask(working, key)
	require.False(t, bytes.Equal(working, original))
	Mask(working, key)
	require.True(t, bytes.Equal(working, original))
}

func TestDecodeRejectsUnknownOpcode(t *testing.T) {
	var buf bytes.Buffer
	// FIN=1, opcode=0xB (reserved, unknown), length=0
	buf.Write([]byte{0x8B, 0x00})
	_, err := Decode(&buf)
	require.ErrorIs(t, err, ErrBadOpcode)
}

func TestDecodeRejectsFragmentedControlFrame(t *testing.T) {
	var buf bytes.Buffer
	// FIN=0, opcode=Ping, length=0 — control frames must not fragment.
	buf.Write([]byte{0x09, 0x00})
	_, err := Decode(&buf)
	require.ErrorIs(t, err, ErrControlFragmented)
}

func TestServerFramesAreUnmasked(t *testing.T) {
	f := Frame{FIN: true, Opcode: OpText, Masked: false, Payload: []byte("hello")}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f))
	raw := buf.Bytes()
	require.Zero(t, raw[1]&0x80, "server frame must not set the mask bit")
}
