package session

import (
	"bytes"

	"github.com/Compdog-inc/pico-radio/nt4ws/frame"
	"github.com/vmihailenco/msgpack/v5"
)

// SendRTT sends the client-side half of the RTT round trip (spec.md
// §4.D.5): a binary frame carrying [-1, 0, Int, clientTimeMicros]. Only
// this send path needs to exist symmetrically on the client side; the
// broker's reply is an ordinary binary frame the caller's OnReceived
// handler decodes like any other update.
func (s *Session) SendRTT(clientTimeMicros int64) bool {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	_ = enc.EncodeArrayLen(4)
	_ = enc.EncodeInt64(-1)
	_ = enc.EncodeUint64(0)
	_ = enc.EncodeInt64(2) // wire type code for Int (spec.md §6)
	_ = enc.EncodeInt64(clientTimeMicros)
	return s.Send(buf.Bytes(), frame.OpBinary)
}
