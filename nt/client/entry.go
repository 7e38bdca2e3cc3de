package client

import (
	"sync"

	"github.com/Compdog-inc/pico-radio/nt"
)

// Entry combines a Subscriber with a lazily-created Publisher for the same
// topic (original_source/include/nt/ntentry.h): reads always work through
// the subscription, while the first Set call brings the publisher side up.
type Entry struct {
	broker *nt.Broker
	name   string
	props  nt.Properties

	sub *Subscriber

	mu  sync.Mutex
	pub *Publisher
}

// NewEntry subscribes self to name; no publisher is created until Set.
func NewEntry(b *nt.Broker, name string, props nt.Properties) *Entry {
	return &Entry{broker: b, name: name, props: props, sub: NewSubscriber(b, name)}
}

func (e *Entry) Get() (nt.Value, bool)        { return e.sub.Get() }
func (e *Entry) GetOr(def nt.Value) nt.Value  { return e.sub.GetOr(def) }

// IsPublishing reports whether the entry currently has a publisher, i.e.
// Set has been called since creation or since the last Unpublish.
func (e *Entry) IsPublishing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pub != nil
}

// Set pushes value, creating the publisher on first use.
func (e *Entry) Set(value nt.Value) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pub == nil {
		e.pub = NewPublisher(e.broker, e.name, value, e.props)
		return true
	}
	return e.pub.Set(value)
}

// Unpublish drops the publisher side, if any, leaving the subscription
// intact.
func (e *Entry) Unpublish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pub != nil {
		e.pub.Close()
		e.pub = nil
	}
}

// Close unpublishes (if publishing) and unsubscribes.
func (e *Entry) Close() {
	e.Unpublish()
	e.sub.Close()
}
