package session

import (
	"errors"
	"io"

	"github.com/Compdog-inc/pico-radio/nt4ws/frame"
	"github.com/Compdog-inc/pico-radio/pkg/logging"
	"go.uber.org/zap"
)

// Ping sends a ping control frame carrying payload.
func (s *Session) Ping(payload []byte) bool {
	return s.Send(payload, frame.OpPing)
}

// Close begins (or completes) the close handshake (§4.B). The first call
// sends a Close frame; once the peer's echoed Close is processed by the
// receive loop, OnClose fires and the transport is torn down.
func (s *Session) Close(code int, reason string) bool {
	s.mu.Lock()
	alreadySent := s.closeSent
	s.closeSent = true
	s.state = StateClosing
	s.mu.Unlock()

	if alreadySent {
		return false
	}
	return s.Send(encodeCloseBody(code, reason), frame.OpClose)
}

func encodeCloseBody(code int, reason string) []byte {
	body := make([]byte, 2+len(reason))
	body[0] = byte(code >> 8)
	body[1] = byte(code)
	copy(body[2:], reason)
	return body
}

func decodeCloseBody(payload []byte) (int, string) {
	if len(payload) < 2 {
		return StatusNormal, ""
	}
	code := int(payload[0])<<8 | int(payload[1])
	return code, string(payload[2:])
}

// JoinMessageLoop runs the receive loop until the transport closes or a
// fatal framing error occurs. It invokes OnReceived/OnPong/OnClose
// synchronously, holding no locks while the callback runs (§5).
func (s *Session) JoinMessageLoop() {
	s.setState(StateOpen)

	for {
		f, err := frame.Decode(s.reader)
		if err != nil {
			s.handleReceiveError(err)
			return
		}

		msg, ready, err := s.reassembler.Feed(f)
		if err != nil {
			if s.logger != nil {
				s.logger.ComponentWarn(logging.ComponentSession, "fatal framing error", zap.Error(err))
			}
			s.Disconnect()
			return
		}
		if !ready {
			continue
		}

		switch msg.Opcode {
		case frame.OpPing:
			s.Send(msg.Payload, frame.OpPong)
		case frame.OpPong:
			if s.OnPong != nil {
				s.OnPong(msg.Payload)
			}
		case frame.OpClose:
			s.handlePeerClose(msg.Payload)
			return
		default:
			if s.OnReceived != nil {
				s.OnReceived(msg.Opcode, msg.Payload)
			}
		}
	}
}

// handlePeerClose implements both halves of the close handshake: a passive
// close (peer closes first) echoes the status and disconnects; an active
// close (we already sent one) fires OnClose then disconnects (§4.B).
func (s *Session) handlePeerClose(payload []byte) {
	code, reason := decodeCloseBody(payload)

	s.mu.Lock()
	weClosedFirst := s.closeSent
	s.closeSent = true
	s.gracefullyDone = true
	s.mu.Unlock()

	if !weClosedFirst {
		s.Send(encodeCloseBody(code, reason), frame.OpClose)
	}

	if s.OnClose != nil {
		s.OnClose(CloseStatus{Code: code, Reason: reason})
	}
	s.Disconnect()
}

// handleReceiveError classifies a transport-level failure: EOF / reset
// manifests as an abnormal closure (code 1006) with no close callback,
// matching §4.B / §7.
func (s *Session) handleReceiveError(err error) {
	s.mu.Lock()
	gracefully := s.gracefullyDone
	s.mu.Unlock()

	s.Disconnect()

	if gracefully {
		return
	}
	if errors.Is(err, io.EOF) && s.logger != nil {
		s.logger.ComponentDebug(logging.ComponentSession, "peer closed without handshake")
	}
	// No OnClose callback here: abnormal closure is reported by is_connected()
	// turning false, per §4.B. The acceptor synthesizes the event (§4.C).
}
