package session

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Compdog-inc/pico-radio/pkg/logging"
)

// ClientHandshake performs the client side of the RFC 6455 handshake
// (§4.B). host is used for the Host header; protocols, if non-empty, is
// sent as a comma-separated Sec-WebSocket-Protocol list. The broker's
// "self" participant never dials out, but the protocol is kept symmetric
// per spec.md §1 so RTT round trips can be exercised from either side in
// tests. handshakeTimeout, when positive, bounds the request/response
// exchange via conn's deadline, cleared again before a successful return.
func ClientHandshake(conn net.Conn, logger *logging.ColoredLogger, path, host string, protocols []string, handshakeTimeout time.Duration) (*Session, error) {
	if handshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	}

	key, err := randomKey()
	if err != nil {
		return nil, fmt.Errorf("handshake: generate key: %w", err)
	}

	var req strings.Builder
	fmt.Fprintf(&req, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&req, "Host: %s\r\n", host)
	req.WriteString("Connection: Upgrade\r\n")
	req.WriteString("Upgrade: websocket\r\n")
	req.WriteString("Sec-WebSocket-Version: 13\r\n")
	fmt.Fprintf(&req, "Sec-WebSocket-Key: %s\r\n", key)
	if len(protocols) > 0 {
		fmt.Fprintf(&req, "Sec-WebSocket-Protocol: %s\r\n", strings.Join(protocols, ", "))
	}
	req.WriteString("\r\n")

	if _, err := conn.Write([]byte(req.String())); err != nil {
		return nil, fmt.Errorf("handshake: write request: %w", err)
	}

	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, nil)
	if err != nil {
		return nil, fmt.Errorf("handshake: read response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		return nil, fmt.Errorf("handshake: expected 101, got %d", resp.StatusCode)
	}
	if !hasToken(resp.Header.Get("Connection"), "upgrade") ||
		!strings.EqualFold(resp.Header.Get("Upgrade"), "websocket") {
		return nil, fmt.Errorf("handshake: missing Connection/Upgrade headers in response")
	}
	if resp.Header.Get("Sec-WebSocket-Accept") != acceptKey(key) {
		return nil, fmt.Errorf("handshake: Sec-WebSocket-Accept mismatch")
	}

	if handshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	s := newSession(conn, RoleClient, logger, reader)
	s.Protocol = resp.Header.Get("Sec-WebSocket-Protocol")
	s.setState(StateOpen)
	return s, nil
}
