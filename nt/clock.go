package nt

import (
	"time"

	"github.com/Compdog-inc/pico-radio/pkg/config"
)

// serverClock backs server_time() = monotonic_clock() + offset (spec.md
// §4.D.5). Per §9's design note, the offset is a fixed configuration value
// on the server: only a client computes and mutates its own offset from an
// RTT round trip, so server_time() here is always the (possibly
// configured-nonzero) monotonic clock plus that fixed value.
type serverClock struct {
	nowMicros func() int64
	offset    int64
}

func newServerClock(cfg config.ClockConfig) *serverClock {
	return &serverClock{nowMicros: monotonicMicros, offset: cfg.InitialOffsetMicros}
}

func monotonicMicros() int64 {
	return time.Now().UnixMicro()
}

// ServerTime returns the current server time in microseconds.
func (c *serverClock) ServerTime() uint64 {
	return uint64(c.nowMicros() + c.offset)
}

// ServerTime returns the broker's current server time in microseconds, for
// local (self) publishers that want to stamp their own updates (spec.md
// §4.D.5, §4.D.7).
func (b *Broker) ServerTime() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clock.ServerTime()
}

// HandleRTT answers a client's RTT frame `[-1, 0, Int, clientTime]` with
// `[-1, server_time(), Int, clientTime]` (spec.md §4.D.5, scenario S5). The
// reply bypasses the batching cache and is written immediately: RTT
// accuracy depends on not sitting behind an unrelated flush threshold.
func (b *Broker) HandleRTT(c *ClientData, clientValue Value) {
	if clientValue.APIType() != TypeInt || c.send == nil {
		return
	}

	b.mu.Lock()
	ts := b.clock.ServerTime()
	b.mu.Unlock()

	encoded, err := encodeBinaryUpdate(rttID, ts, clientValue)
	if err != nil {
		return
	}
	c.send(encoded, false)
}
