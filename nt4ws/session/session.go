// Package session implements the WebSocket session state machine of
// spec.md §4.B: handshake, send/receive loop, ping/pong, the close
// handshake and outbound fragmentation at the link MTU. The underlying TCP
// socket is treated as an external collaborator (spec.md §1) and is
// represented here by the standard net.Conn, which already supplies the
// blocking read/write/close contract the spec describes.
package session

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Compdog-inc/pico-radio/nt4ws/frame"
	"github.com/Compdog-inc/pico-radio/pkg/logging"
)

// State is one of the four session lifecycle states (§4.B).
type State int

const (
	StateHandshaking State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseStatus is the code/reason pair delivered to the Close callback.
type CloseStatus struct {
	Code     int
	Reason   string
	Abnormal bool // true when the peer vanished without a close handshake (§4.B, §7: code 1006)
}

const (
	// StatusNormal is the normal-closure code; it is also the code reported
	// for a peer Close frame that carries no status code.
	StatusNormal       = 1000
	StatusGoingAway    = 1001
	StatusAbnormal     = 1006
	maxPacketSizeDefault = 1460
)

// Role distinguishes a client session (must mask outbound frames) from a
// server session (must not, per RFC 6455 §5.1).
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Session is one open (or opening) WebSocket connection.
type Session struct {
	conn   net.Conn
	reader io.Reader // conn, or a bufio.Reader carrying over bytes buffered during handshake
	role   Role
	logger *logging.ColoredLogger

	maxPacketSize int
	sendTimeout   time.Duration

	// sendMu is the send-mutex of §4.B, implemented as a 1-slot semaphore
	// so that a timed-out acquisition attempt never leaves the mutex
	// permanently held the way a plain sync.Mutex would.
	sendMu chan struct{}

	mu             sync.Mutex
	state          State
	closeSent      bool
	gracefullyDone bool

	reassembler frame.Reassembler

	// Callbacks, invoked synchronously from the receive loop (§2 data flow).
	OnReceived func(opcode frame.Opcode, payload []byte)
	OnPong     func(payload []byte)
	OnClose    func(status CloseStatus)

	Protocol string // negotiated subprotocol, set during handshake
}

// newSession constructs a session. reader, when non-nil, is the buffered
// reader used during the handshake — reusing it preserves any frame bytes
// the peer pipelined right after the handshake response in the same TCP
// segment. When nil, conn is read directly.
func newSession(conn net.Conn, role Role, logger *logging.ColoredLogger, reader *bufio.Reader) *Session {
	s := &Session{
		conn:          conn,
		role:          role,
		logger:        logger,
		maxPacketSize: maxPacketSizeDefault,
		sendTimeout:   750 * time.Millisecond,
		state:         StateHandshaking,
		sendMu:        make(chan struct{}, 1),
	}
	if reader != nil {
		s.reader = reader
	} else {
		s.reader = conn
	}
	return s
}

// SetMaxPacketSize configures the link MTU used to decide when Send must
// auto-fragment (§4.B).
func (s *Session) SetMaxPacketSize(n int) {
	if n > 0 {
		s.maxPacketSize = n
	}
}

// SetSendTimeout configures the bounded timeout on acquiring the send-mutex.
func (s *Session) SetSendTimeout(d time.Duration) {
	if d > 0 {
		s.sendTimeout = d
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// IsConnected reports whether the underlying transport is still usable.
// A false return with no prior Close callback indicates the peer reset the
// connection (§4.B abnormal closure).
func (s *Session) IsConnected() bool {
	return s.State() != StateClosed
}

// Disconnect tears down the transport immediately without a close
// handshake.
func (s *Session) Disconnect() {
	s.setState(StateClosed)
	_ = s.conn.Close()
}

// acquireSendMutex blocks on the send-mutex up to sendTimeout. It reports
// false ("not sent") if the timeout elapses first (§4.B, §7), without ever
// leaving the mutex held by an abandoned caller.
func (s *Session) acquireSendMutex() bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	select {
	case s.sendMu <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) releaseSendMutex() {
	<-s.sendMu
}
