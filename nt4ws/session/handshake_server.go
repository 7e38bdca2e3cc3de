package session

import (
	"bufio"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/Compdog-inc/pico-radio/pkg/logging"
)

// ProtocolSelector chooses the one subprotocol (or "") accepted for a
// connection, given the comma-separated, trimmed list the client offered
// (§4.C "Subprotocol callback").
type ProtocolSelector func(offered []string) string

// ServerRequest is the minimal parsed HTTP upgrade request the acceptor
// needs: the request path (for /nt/<clientname> extraction, §6) and the
// handshake headers.
type ServerRequest struct {
	Path    string
	Headers textproto.MIMEHeader
}

// ServerHandshake performs the server side of the RFC 6455 handshake
// (§4.B) over conn. On success it returns an open-state Session; on
// failure it writes the configured bad-request response and returns an
// error, having already closed nothing (the caller owns conn).
// handshakeTimeout, when positive, bounds the whole handshake read/write
// sequence via conn's deadline so a peer that opens a TCP connection and
// never completes the upgrade can't hold an acceptor goroutine forever;
// the deadline is cleared before a successful return so it never applies
// to the session's own I/O afterward.
func ServerHandshake(conn net.Conn, logger *logging.ColoredLogger, selectProtocol ProtocolSelector, badRequestBody string, handshakeTimeout time.Duration) (*Session, *ServerRequest, error) {
	if handshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	}

	reader := bufio.NewReader(conn)

	requestLine, err := reader.ReadString('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("handshake: read request line: %w", err)
	}
	requestLine = strings.TrimRight(requestLine, "\r\n")
	parts := strings.Fields(requestLine)
	if len(parts) < 2 || parts[0] != "GET" {
		writeBadRequest(conn, badRequestBody)
		return nil, nil, fmt.Errorf("handshake: expected GET request line, got %q", requestLine)
	}
	path := parts[1]

	tp := textproto.NewReader(reader)
	headers, err := tp.ReadMIMEHeader()
	if err != nil {
		writeBadRequest(conn, badRequestBody)
		return nil, nil, fmt.Errorf("handshake: read headers: %w", err)
	}

	if !hasToken(headers.Get("Connection"), "upgrade") ||
		!strings.EqualFold(headers.Get("Upgrade"), "websocket") ||
		headers.Get("Sec-Websocket-Version") != "13" {
		writeBadRequest(conn, badRequestBody)
		return nil, nil, fmt.Errorf("handshake: missing or invalid upgrade headers")
	}

	clientKey := headers.Get("Sec-Websocket-Key")
	if clientKey == "" {
		writeBadRequest(conn, badRequestBody)
		return nil, nil, fmt.Errorf("handshake: missing Sec-WebSocket-Key")
	}

	var offered []string
	if raw := headers.Get("Sec-Websocket-Protocol"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			offered = append(offered, strings.TrimSpace(p))
		}
	}

	var chosen string
	if selectProtocol != nil {
		chosen = selectProtocol(offered)
	}

	var resp strings.Builder
	resp.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	resp.WriteString("Upgrade: websocket\r\n")
	resp.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&resp, "Sec-WebSocket-Accept: %s\r\n", acceptKey(clientKey))
	if chosen != "" {
		fmt.Fprintf(&resp, "Sec-WebSocket-Protocol: %s\r\n", chosen)
	}
	resp.WriteString("\r\n")

	if _, err := conn.Write([]byte(resp.String())); err != nil {
		return nil, nil, fmt.Errorf("handshake: write response: %w", err)
	}

	if handshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	s := newSession(conn, RoleServer, logger, reader)
	s.Protocol = chosen
	s.setState(StateOpen)

	return s, &ServerRequest{Path: path, Headers: headers}, nil
}

func hasToken(headerValue, token string) bool {
	for _, v := range strings.Split(headerValue, ",") {
		if strings.EqualFold(strings.TrimSpace(v), token) {
			return true
		}
	}
	return false
}

func writeBadRequest(conn net.Conn, body string) {
	if body == "" {
		body = "Bad Request"
	}
	resp := fmt.Sprintf("HTTP/1.1 400 Bad Request\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", len(body), body)
	_, _ = conn.Write([]byte(resp))
}
