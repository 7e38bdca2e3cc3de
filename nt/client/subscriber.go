package client

import "github.com/Compdog-inc/pico-radio/nt"

// Subscriber is a veneer over Broker.Subscribe/Unsubscribe scoped to self
// and one topic name (original_source/include/nt/ntsubscriber.h). Get
// reads the most recent value the registry has observed via self's
// OnTopicUpdate callback.
type Subscriber struct {
	broker *nt.Broker
	reg    *registry
	name   string
	subuid int32
}

// NewSubscriber subscribes self to exactly one topic name.
func NewSubscriber(b *nt.Broker, name string) *Subscriber {
	uid := allocUID()
	reg := ensureRegistry(b)
	b.Subscribe(b.Self(), nt.Subscription{UID: uid, Topics: []string{name}, Options: nt.DefaultSubscriptionOptions()})
	return &Subscriber{broker: b, reg: reg, name: name, subuid: uid}
}

// Get returns the last known value and whether the topic is currently
// announced to self (an unannounce clears it).
func (s *Subscriber) Get() (nt.Value, bool) {
	return s.reg.get(s.name)
}

// GetOr returns the last known value, or def if none has arrived yet.
func (s *Subscriber) GetOr(def nt.Value) nt.Value {
	if v, ok := s.Get(); ok {
		return v
	}
	return def
}

// Topic returns the topic this subscriber names, or a ntserr.NotFoundError
// if nothing has ever published it.
func (s *Subscriber) Topic() (*nt.Topic, error) {
	return s.broker.TopicByName(s.name)
}

// Close unsubscribes self from the topic.
func (s *Subscriber) Close() {
	s.broker.Unsubscribe(s.broker.Self(), s.subuid)
}
