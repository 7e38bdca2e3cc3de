package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReassemblerSingleFrame(t *testing.T) {
	var r Reassembler
	msg, ok, err := r.Feed(Frame{FIN: true, Opcode: OpText, Payload: []byte("hi")})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hi", string(msg.Payload))
}

func TestReassemblerFragmentedMessage(t *testing.T) {
	var r Reassembler

	_, ok, err := r.Feed(Frame{FIN: false, Opcode: OpBinary, Payload: []byte("ab")})
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = r.Feed(Frame{FIN: false, Opcode: OpContinuation, Payload: []byte("cd")})
	require.NoError(t, err)
	require.False(t, ok)

	msg, ok, err := r.Feed(Frame{FIN: true, Opcode: OpContinuation, Payload: []byte("ef")})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, OpBinary, msg.Opcode)
	require.Equal(t, "abcdef", string(msg.Payload))
}

func TestReassemblerAllowsControlFrameInterleave(t *testing.T) {
	var r Reassembler

	_, ok, err := r.Feed(Frame{FIN: false, Opcode: OpText, Payload: []byte("part1")})
	require.NoError(t, err)
	require.False(t, ok)

	pingMsg, ok, err := r.Feed(Frame{FIN: true, Opcode: OpPing, Payload: []byte("ping")})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, OpPing, pingMsg.Opcode)

	msg, ok, err := r.Feed(Frame{FIN: true, Opcode: OpContinuation, Payload: []byte("part2")})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "part1part2", string(msg.Payload))
}

func TestReassemblerRejectsUnexpectedContinuation(t *testing.T) {
	var r Reassembler
	_, _, err := r.Feed(Frame{FIN: true, Opcode: OpContinuation, Payload: []byte("x")})
	require.ErrorIs(t, err, ErrUnexpectedContinuation)
}

func TestReassemblerRejectsFragmentStartedMidFragment(t *testing.T) {
	var r Reassembler
	_, _, err := r.Feed(Frame{FIN: false, Opcode: OpText, Payload: []byte("a")})
	require.NoError(t, err)
	_, _, err = r.Feed(Frame{FIN: true, Opcode: OpBinary, Payload: []byte("b")})
	require.ErrorIs(t, err, ErrFragmentInProgress)
}
