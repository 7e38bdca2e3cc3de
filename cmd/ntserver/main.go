// Command ntserver runs the NT4 publish/subscribe broker over a WebSocket
// listener, wiring nt4ws/wsserver's acceptor to the nt broker (spec.md §2
// data flow: bytes -> frames -> callbacks -> broker messages).
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Compdog-inc/pico-radio/nt"
	"github.com/Compdog-inc/pico-radio/nt4ws/frame"
	"github.com/Compdog-inc/pico-radio/nt4ws/session"
	"github.com/Compdog-inc/pico-radio/nt4ws/wsserver"
	"github.com/Compdog-inc/pico-radio/pkg/config"
	"github.com/Compdog-inc/pico-radio/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	logger, err := logging.NewDefaultLogger()
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.ComponentError(logging.ComponentGeneral, "failed to load config", zap.Error(err))
		os.Exit(1)
	}

	broker := nt.New(cfg.Cache, cfg.Clock, logger)

	srv := wsserver.New(wsserver.Config{
		ListenAddr:       cfg.Server.ListenAddr,
		MaxClients:       cfg.Server.MaxClients,
		Subprotocol:      cfg.Server.Subprotocol,
		BadRequestBody:   "Bad Request",
		MaxPacketSize:    cfg.Server.MaxPacketSize,
		SendMutexTimeout: cfg.Server.SendMutexTimeout,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		DispatchQueueLen: cfg.Server.DispatchQueueLen,
		Logger:           logger,
	})

	srv.OnConnect = func(c *wsserver.Client) {
		send := func(payload []byte, isText bool) bool {
			opcode := frame.OpBinary
			if isText {
				opcode = frame.OpText
			}
			return c.Session.Send(payload, opcode)
		}
		broker.AddClient(c.GUID, c.Name, c.Addr, send)
	}

	srv.OnMessage = func(c *wsserver.Client, opcode frame.Opcode, payload []byte) {
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

	srv.OnDisconnect = func(c *wsserver.Client, reason wsserver.ClosedReason, status session.CloseStatus) {
		broker.RemoveClient(c.GUID)
		logger.ComponentInfo(logging.ComponentAcceptor, "client disconnected",
			zap.String("name", c.Name), zap.Int("code", status.Code), zap.Bool("abnormal", status.Abnormal))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	logger.ComponentInfo(logging.ComponentGeneral, "ntserver listening", zap.String("addr", cfg.Server.ListenAddr))

	select {
	case sig := <-quit:
		logger.ComponentInfo(logging.ComponentGeneral, "shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			logger.ComponentError(logging.ComponentGeneral, "server error", zap.Error(err))
		}
	}

	srv.Stop()
}
