package nt

import (
	"net"
	"testing"
	"time"

	"github.com/Compdog-inc/pico-radio/internal/guid"
	"github.com/Compdog-inc/pico-radio/nt4ws/frame"
	"github.com/Compdog-inc/pico-radio/nt4ws/session"
	"github.com/Compdog-inc/pico-radio/nt4ws/wsserver"
	"github.com/Compdog-inc/pico-radio/pkg/config"
	"github.com/stretchr/testify/require"
)

const testSubprotocol = "v4.1.networktables.first.wpi.edu"

// startIntegrationServer wires broker to a raw TCP listener the way
// cmd/ntserver/main.go wires a Broker to wsserver.Server, without needing
// Server.Serve's own accept loop (the test owns the listener so it can
// guarantee cleanup).
func startIntegrationServer(t *testing.T, broker *Broker) string {
	t.Helper()

	var onConnect func(c *wsserver.Client)
	var onMessage func(c *wsserver.Client, opcode frame.Opcode, payload []byte)

	onConnect = func(c *wsserver.Client) {
		send := func(payload []byte, isText bool) bool {
			opcode := frame.OpBinary
			if isText {
				opcode = frame.OpText
			}
			return c.Session.Send(payload, opcode)
		}
		broker.AddClient(c.GUID, c.Name, c.Addr, send)
	}
	onMessage = func(c *wsserver.Client, opcode frame.Opcode, payload []byte) {
		client := broker.ClientByGUID(c.GUID)
		if client == nil {
			return
		}
		switch opcode {
		case frame.OpText:
			broker.HandleTextFrame(client, payload)
		case frame.OpBinary:
			broker.HandleBinaryFrame(client, payload)
		}
		broker.Flush()
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				sess, _, err := session.ServerHandshake(conn, nil, func(offered []string) string {
					for _, p := range offered {
						if p == testSubprotocol {
							return p
						}
					}
					return ""
				}, "", 0)
				if err != nil {
					_ = conn.Close()
					return
				}

				c := &wsserver.Client{Session: sess, GUID: guid.New(), Addr: conn.RemoteAddr().String(), Name: "alice"}
				sess.OnReceived = func(opcode frame.Opcode, payload []byte) {
					onMessage(c, opcode, payload)
				}
				onConnect(c)
				sess.JoinMessageLoop()
			}()
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return ln.Addr().String()
}

// TestEndToEndPublishSubscribeAndRTTOverTheWire drives a real Broker
// through the actual wire codecs end to end: a client subscribes and
// publishes the same topic to itself, pushes a value, and round-trips an
// RTT frame (spec.md scenarios S1/S5).
func TestEndToEndPublishSubscribeAndRTTOverTheWire(t *testing.T) {
	broker := New(config.CacheConfig{MaxTextCacheLength: 4096, MaxBinaryCacheLength: 4096}, config.ClockConfig{}, nil)
	addr := startIntegrationServer(t, broker)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	sess, err := session.ClientHandshake(conn, nil, "/nt/alice", "localhost", []string{testSubprotocol}, 0)
	require.NoError(t, err)

	binaryFrames := make(chan []byte, 8)
	sess.OnReceived = func(opcode frame.Opcode, payload []byte) {
		if opcode == frame.OpBinary {
			binaryFrames <- payload
		}
	}
	go sess.JoinMessageLoop()

	require.True(t, sess.Send([]byte(`[{"method":"subscribe","params":{"subuid":1,"topics":["/wire"],"options":{}}}]`), frame.OpText))
	require.True(t, sess.Send([]byte(`[{"method":"publish","params":{"name":"/wire","pubuid":1,"type":"int","properties":{}}}]`), frame.OpText))

	encodedUpdate, err := encodeBinaryUpdate(1, 0, NewInt(42))
	require.NoError(t, err)
	require.True(t, sess.Send(encodedUpdate, frame.OpBinary))

	select {
	case payload := <-binaryFrames:
		updates, err := decodeBinaryMessages(payload)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		require.Equal(t, int64(42), updates[0].Value.Int())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the published value to echo back")
	}

	require.True(t, sess.SendRTT(555))
	select {
	case payload := <-binaryFrames:
		updates, err := decodeBinaryMessages(payload)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		require.Equal(t, int64(-1), updates[0].ID)
		require.Equal(t, int64(555), updates[0].Value.Int())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for RTT reply")
	}
}
