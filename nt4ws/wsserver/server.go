// Package wsserver implements the WS acceptor/server of spec.md §4.C: it
// accepts TCP connections, performs the server handshake, allocates a GUID
// per client, and fires connect/disconnect events. When configured with a
// dispatch queue length it also runs a single-reader DispatchQueue worker
// between Serve and Stop; Server itself routes no calls through that queue
// and exposes no handle for enqueuing into it.
package wsserver

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/Compdog-inc/pico-radio/internal/guid"
	"github.com/Compdog-inc/pico-radio/nt4ws/frame"
	"github.com/Compdog-inc/pico-radio/nt4ws/session"
	"github.com/Compdog-inc/pico-radio/pkg/logging"
	"go.uber.org/zap"
)

// Client pairs a connected session with its server-assigned identity.
type Client struct {
	GUID    guid.Guid
	Session *session.Session
	Addr    string // "host:port", used for the $clients meta-topic
	Name    string // parsed from the request path's /nt/<name> component (§6)
}

// ClosedReason distinguishes a graceful close from an abnormal one for the
// clientDisconnected event (§4.C).
type ClosedReason int

const (
	ClosedGracefully ClosedReason = iota
	ClosedAbnormally
)

// Server is the TCP acceptor. It has no NT4 knowledge; the broker is wired
// in purely through the OnConnect/OnDisconnect/OnMessage callbacks.
type Server struct {
	logger *logging.ColoredLogger

	listenAddr       string
	maxClients       int
	selectProtocol   session.ProtocolSelector
	badRequestBody   string
	maxPacketSize    int
	sendTimeout      time.Duration // 0 = Session's own default
	handshakeTimeout time.Duration // 0 = no handshake deadline

	listener net.Listener

	mu      sync.Mutex
	clients map[guid.Guid]*Client

	dispatch *DispatchQueue

	// Callbacks, invoked from each client's own session goroutine.
	OnConnect    func(c *Client)
	OnMessage    func(c *Client, opcode frame.Opcode, payload []byte)
	OnDisconnect func(c *Client, reason ClosedReason, status session.CloseStatus)
}

// Config configures a new Server.
type Config struct {
	ListenAddr       string
	MaxClients       int
	Subprotocol      string
	BadRequestBody   string
	MaxPacketSize    int
	SendMutexTimeout time.Duration
	HandshakeTimeout time.Duration
	DispatchQueueLen int
	Logger           *logging.ColoredLogger
}

// New constructs a Server bound to cfg.ListenAddr; it does not start
// listening until Serve is called.
func New(cfg Config) *Server {
	s := &Server{
		logger:           cfg.Logger,
		listenAddr:       cfg.ListenAddr,
		maxClients:       cfg.MaxClients,
		badRequestBody:   cfg.BadRequestBody,
		maxPacketSize:    cfg.MaxPacketSize,
		sendTimeout:      cfg.SendMutexTimeout,
		handshakeTimeout: cfg.HandshakeTimeout,
		clients:          make(map[guid.Guid]*Client),
	}
	if cfg.Subprotocol != "" {
		proto := cfg.Subprotocol
		s.selectProtocol = func(offered []string) string {
			for _, p := range offered {
				if p == proto {
					return proto
				}
			}
			return ""
		}
	}
	if cfg.DispatchQueueLen > 0 {
		s.dispatch = NewDispatchQueue(cfg.DispatchQueueLen)
	}
	return s
}

// Serve opens the listener and runs the accept loop until Stop is called.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.listener = ln

	if s.dispatch != nil {
		go s.dispatch.Run()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err // listener closed by Stop()
		}
		if s.atCapacity() {
			_ = conn.Close()
			continue
		}
		go s.handleConn(conn)
	}
}

// Stop closes the listener (the accept loop then exits) and the dispatch
// queue, if any. Outstanding session loops exit independently on EOF or
// explicit Disconnect (§5 Cancellation).
func (s *Server) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.dispatch != nil {
		s.dispatch.Stop()
	}
}

func (s *Server) atCapacity() bool {
	if s.maxClients <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients) >= s.maxClients
}

func (s *Server) handleConn(conn net.Conn) {
	sess, req, err := session.ServerHandshake(conn, s.logger, s.selectProtocol, s.badRequestBody, s.handshakeTimeout)
	if err != nil {
		if s.logger != nil {
			s.logger.ComponentWarn(logging.ComponentAcceptor, "handshake failed", zap.Error(err))
		}
		_ = conn.Close()
		return
	}
	if s.maxPacketSize > 0 {
		sess.SetMaxPacketSize(s.maxPacketSize)
	}
	if s.sendTimeout > 0 {
		sess.SetSendTimeout(s.sendTimeout)
	}

	c := &Client{
		GUID:    guid.New(),
		Session: sess,
		Addr:    conn.RemoteAddr().String(),
		Name:    clientNameFromPath(req.Path),
	}

	s.mu.Lock()
	s.clients[c.GUID] = c
	s.mu.Unlock()

	sess.OnReceived = func(opcode frame.Opcode, payload []byte) {
		if s.OnMessage != nil {
			s.OnMessage(c, opcode, payload)
		}
	}

	gracefullyClosed := false
	sess.OnClose = func(status session.CloseStatus) {
		gracefullyClosed = true
		s.removeClient(c.GUID)
		if s.OnDisconnect != nil {
			s.OnDisconnect(c, ClosedGracefully, status)
		}
	}

	if s.OnConnect != nil {
		s.OnConnect(c)
	}

	sess.JoinMessageLoop()

	if !gracefullyClosed {
		s.removeClient(c.GUID)
		if s.OnDisconnect != nil {
			s.OnDisconnect(c, ClosedAbnormally, session.CloseStatus{Code: session.StatusAbnormal, Abnormal: true})
		}
	}
}

func (s *Server) removeClient(id guid.Guid) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}

// Clients returns a snapshot of currently connected clients.
func (s *Server) Clients() []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

// clientNameFromPath extracts <name> from a request path of the form
// ".../nt/<name>" by locating the "/nt/" substring, per spec.md §6.
func clientNameFromPath(path string) string {
	const marker = "/nt/"
	idx := strings.Index(path, marker)
	if idx < 0 {
		return ""
	}
	return path[idx+len(marker):]
}
