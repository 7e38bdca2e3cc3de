package client

import "github.com/Compdog-inc/pico-radio/nt"

// Publisher is a veneer over Broker.Publish/UpdateTopic/Unpublish scoped to
// self and one topic (original_source/include/nt/ntpublisher.h).
type Publisher struct {
	broker *nt.Broker
	name   string
	pubuid int32
}

// NewPublisher registers self as a publisher of name with defaultValue's
// declared type, returning a handle that can push further updates.
func NewPublisher(b *nt.Broker, name string, defaultValue nt.Value, props nt.Properties) *Publisher {
	uid := allocUID()
	ensureRegistry(b) // so the announce self receives for its own publish is recorded
	b.Publish(b.Self(), name, uid, nt.SerializeDataType(defaultValue.Type()), props)
	p := &Publisher{broker: b, name: name, pubuid: uid}
	p.Set(defaultValue)
	return p
}

// Set pushes a new value stamped with the broker's current server time.
func (p *Publisher) Set(value nt.Value) bool {
	return p.broker.UpdateTopic(p.broker.Self(), p.pubuid, value, p.broker.ServerTime())
}

// SetAt pushes a new value with an explicit timestamp.
func (p *Publisher) SetAt(value nt.Value, timestampMicros uint64) bool {
	return p.broker.UpdateTopic(p.broker.Self(), p.pubuid, value, timestampMicros)
}

// Close unpublishes, decrementing the topic's publisher count.
func (p *Publisher) Close() {
	p.broker.Unpublish(p.broker.Self(), p.pubuid)
}
