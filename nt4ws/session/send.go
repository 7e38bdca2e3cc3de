package session

import (
	"crypto/rand"
	"io"

	"github.com/Compdog-inc/pico-radio/nt4ws/frame"
)

// frameOverhead returns the header size (2-byte base header, plus a 2- or
// 8-byte extended length when n needs one, plus a 4-byte mask when masked)
// for a payload of size n, matching the accounting Encode performs.
func frameOverhead(n int, masked bool) int {
	overhead := 2
	switch {
	case n < 126:
		// no extended length
	case n <= 0xFFFF:
		overhead += 2
	default:
		overhead += 8
	}
	if masked {
		overhead += 4
	}
	return overhead
}

func (s *Session) maskKey() [4]byte {
	var key [4]byte
	if s.role == RoleClient {
		_, _ = rand.Read(key[:])
	}
	return key
}

// Send transmits payload as a single message of the given opcode,
// transparently fragmenting it at maxPacketSize (§4.B "Send semantics").
// It returns false ("not sent") if the send-mutex cannot be acquired
// within the configured timeout, matching §7's send-mutex-timeout policy.
func (s *Session) Send(payload []byte, opcode frame.Opcode) bool {
	if !s.acquireSendMutex() {
		return false
	}
	defer s.releaseSendMutex()
	return s.sendLocked(payload, opcode)
}

func (s *Session) sendLocked(payload []byte, opcode frame.Opcode) bool {
	masked := s.role == RoleClient
	full := frameOverhead(len(payload), masked) + len(payload)

	if full <= s.maxPacketSize || opcode.IsControl() {
		return s.writeFrame(frame.Frame{FIN: true, Opcode: opcode, Masked: masked, MaskKey: s.maskKey(), Payload: payload}) == nil
	}

	return s.sendFragmented(payload, opcode, masked)
}

func (s *Session) sendFragmented(payload []byte, opcode frame.Opcode, masked bool) bool {
	// The overhead for a maxPacketSize-long payload bounds the overhead of
	// any smaller chunk, so every fragment fits within maxPacketSize.
	chunk := s.maxPacketSize - frameOverhead(s.maxPacketSize, masked)
	if chunk <= 0 {
		return false
	}

	first := true
	for offset := 0; offset < len(payload) || first; {
		end := offset + chunk
		if end > len(payload) {
			end = len(payload)
		}
		fin := end == len(payload)

		op := opcode
		if !first {
			op = frame.OpContinuation
		}

		f := frame.Frame{FIN: fin, Opcode: op, Masked: masked, MaskKey: s.maskKey(), Payload: payload[offset:end]}
		if err := s.writeFrame(f); err != nil {
			return false
		}

		offset = end
		first = false
		if fin {
			break
		}
	}
	return true
}

// writeFrame encodes and writes one frame to the transport. Caller must
// hold the send-mutex.
func (s *Session) writeFrame(f frame.Frame) error {
	return frame.Encode(s.conn, f)
}

var _ io.Writer = (*Session)(nil) // documents that sends go through a single conn writer

// Write lets higher layers (e.g. a text batcher) treat the session as a
// plain io.Writer: p is sent as one text message through Send, which
// fragments it like any other payload over maxPacketSize.
func (s *Session) Write(p []byte) (int, error) {
	if s.Send(p, frame.OpText) {
		return len(p), nil
	}
	return 0, io.ErrShortWrite
}
