package wsserver

import (
	"github.com/Compdog-inc/pico-radio/nt4ws/frame"
	"github.com/Compdog-inc/pico-radio/nt4ws/session"
)

// DispatchKind identifies which deferred action a queue entry represents
// (§4.C "Dispatch queue").
type DispatchKind int

const (
	DispatchDisconnect DispatchKind = iota
	DispatchPing
	DispatchSendText
	DispatchSendBinary
)

// DispatchEntry is one deferred call. Payload ownership transfers into the
// entry and is released once Run dispatches it.
type DispatchEntry struct {
	Kind    DispatchKind
	Session *session.Session
	Payload []byte
}

// DispatchQueue is the bounded single-reader FIFO calls made from
// interrupt-like contexts enqueue into instead of calling the session
// directly (§4.C, §9 "ISR-safe calls").
type DispatchQueue struct {
	entries chan DispatchEntry
	done    chan struct{}
}

// NewDispatchQueue creates a queue with the given capacity.
func NewDispatchQueue(capacity int) *DispatchQueue {
	return &DispatchQueue{
		entries: make(chan DispatchEntry, capacity),
		done:    make(chan struct{}),
	}
}

// Enqueue adds an entry to the queue. It returns false if the queue is full
// (the caller must not block in an ISR-safe context).
func (q *DispatchQueue) Enqueue(e DispatchEntry) bool {
	select {
	case q.entries <- e:
		return true
	default:
		return false
	}
}

// Run drains the queue on a single goroutine until Stop is called.
func (q *DispatchQueue) Run() {
	for {
		select {
		case e := <-q.entries:
			dispatch(e)
		case <-q.done:
			return
		}
	}
}

// Stop signals Run to exit once the current entry, if any, finishes.
func (q *DispatchQueue) Stop() {
	close(q.done)
}

func dispatch(e DispatchEntry) {
	switch e.Kind {
	case DispatchDisconnect:
		e.Session.Disconnect()
	case DispatchPing:
		e.Session.Ping(e.Payload)
	case DispatchSendText:
		e.Session.Send(e.Payload, frame.OpText)
	case DispatchSendBinary:
		e.Session.Send(e.Payload, frame.OpBinary)
	}
}
