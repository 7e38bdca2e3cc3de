// Package nt implements the NetworkTables 4.1 broker described in spec.md
// §3–§4.D: the topic registry, per-client publisher/subscriber tables,
// subscription matching, announce/unannounce/update fan-out, reflective
// meta-topics, outbound text/binary batching and server-time offset
// computation. Everything lives in one package (rather than the nt/broker
// subpackage SPEC_FULL.md sketches) because the broker, the wire codecs and
// the client registry all operate on the same unexported ClientData/Topic
// fields turn by turn inside one mutex — splitting them across packages
// would just re-export those fields for no benefit; see DESIGN.md.
package nt

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Compdog-inc/pico-radio/internal/guid"
	"github.com/Compdog-inc/pico-radio/pkg/config"
	"github.com/Compdog-inc/pico-radio/pkg/logging"
	"github.com/Compdog-inc/pico-radio/pkg/ntserr"
	"go.uber.org/zap"
)

// SendFunc delivers one framed message to a real client; it is exported so
// the acceptor layer (nt4ws/wsserver) can hand the broker a closure over a
// session's Send without the nt package importing nt4ws.
type SendFunc = sendFunc

// Broker owns the topic registry and every connected ClientData, including
// the synthetic self participant (spec.md §3 Ownership).
type Broker struct {
	mu     sync.Mutex
	logger *logging.ColoredLogger
	cfg    config.CacheConfig

	topics  map[string]*Topic
	clients map[guid.Guid]*ClientData

	self          *ClientData
	selfCallbacks SelfCallbacks

	clock *serverClock
}

// New constructs a Broker with no clients connected and self registered.
func New(cfg config.CacheConfig, clockCfg config.ClockConfig, logger *logging.ColoredLogger) *Broker {
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &Broker{
		logger:  logger,
		cfg:     cfg,
		topics:  make(map[string]*Topic),
		clients: make(map[guid.Guid]*ClientData),
		clock:   newServerClock(clockCfg),
	}
	b.self = newClientData(guid.Zero, "self", nil)
	b.self.IsSelf = true
	return b
}

// SetSelfCallbacks wires the four local-delivery callbacks self uses instead
// of frame emission (spec.md §4.D.7).
func (b *Broker) SetSelfCallbacks(cb SelfCallbacks) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selfCallbacks = cb
}

// AddClient registers a newly connected client, assigning it a disambiguated
// name derived from base (spec.md §3 ClientData.name), and refreshes the
// $clients meta-topic.
func (b *Broker) AddClient(id guid.Guid, base, addr string, send sendFunc) *ClientData {
	b.mu.Lock()
	defer b.mu.Unlock()

	name := b.disambiguateName(base)
	c := newClientData(id, name, send)
	c.Addr = addr
	b.clients[id] = c

	b.logger.ComponentInfo(logging.ComponentBroker, "client connected", zap.String("name", name), zap.String("addr", addr))

	b.refreshClientsLocked()
	b.refreshClientSubLocked(c)
	b.refreshClientPubLocked(c)
	b.flushAllLocked()
	return c
}

// ClientByGUID looks up a connected client by session id, or nil (used by
// the acceptor layer to turn an inbound frame into a broker call).
func (b *Broker) ClientByGUID(id guid.Guid) *ClientData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clients[id]
}

// TopicByName looks up a topic for Go-embedding callers (the nt/client
// veneer, diagnostics) that want a real error value rather than the
// bool-returning wire-facing API (spec.md §7: "the wire paths ... stay
// bool/drop; local API callers get typed errors").
func (b *Broker) TopicByName(name string) (*Topic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	topic, ok := b.topics[name]
	if !ok {
		return nil, ntserr.NewNotFoundError("topic", name)
	}
	return topic, nil
}

// RemoveClient tears down every publisher and subscription the client held
// and drops it from the registry (spec.md §5 "Resource scoping").
func (b *Broker) RemoveClient(id guid.Guid) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.clients[id]
	if !ok {
		return
	}

	for pubuid := range c.Publishers {
		b.unpublishLocked(c, pubuid)
	}
	for subuid := range c.Subscriptions {
		b.unsubscribeLocked(c, subuid)
	}

	delete(b.clients, id)
	b.logger.ComponentInfo(logging.ComponentBroker, "client disconnected", zap.String("name", c.Name))
	b.refreshClientsLocked()
	b.flushAllLocked()
}

// disambiguateName returns base suffixed by the smallest positive integer
// not already in use by a connected client sharing that base (spec.md §3,
// scenario S1/S3: every client name carries a @n suffix, starting at 1).
func (b *Broker) disambiguateName(base string) string {
	used := make(map[int]bool)
	for _, c := range b.clients {
		prefix := base + "@"
		if strings.HasPrefix(c.Name, prefix) {
			if n, err := strconv.Atoi(c.Name[len(prefix):]); err == nil {
				used[n] = true
			}
		}
	}
	n := 1
	for used[n] {
		n++
	}
	return fmt.Sprintf("%s@%d", base, n)
}

// Subscribe inserts or replaces a client's Subscription, announces every
// currently cached topic it newly matches, and delivers initial values
// unless topicsonly is set (spec.md §4.D.1 subscribe).
func (b *Broker) Subscribe(c *ClientData, sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c.Subscriptions[sub.UID] = &sub

	for name, topic := range b.topics {
		if !sub.Matches(name) || !topic.Properties.Cached {
			continue
		}
		b.announceLocked(c, topic, nil)
		if !sub.Options.TopicsOnly {
			b.deliverUpdateLocked(c, topic, b.clock.ServerTime())
		}
	}

	b.refreshClientSubLocked(c)
	for name := range b.topics {
		if sub.Matches(name) {
			b.refreshTopicSubLocked(name)
		}
	}
	b.flushClientLocked(c)
}

// Unsubscribe removes subuid; no further announce/update reaches c for
// topics matched only by it (spec.md invariant 3).
func (b *Broker) Unsubscribe(c *ClientData, subuid int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeLocked(c, subuid)
	b.flushClientLocked(c)
}

func (b *Broker) unsubscribeLocked(c *ClientData, subuid int32) {
	sub, ok := c.Subscriptions[subuid]
	if !ok {
		return
	}
	delete(c.Subscriptions, subuid)
	b.refreshClientSubLocked(c)
	for name := range b.topics {
		if sub.Matches(name) {
			b.refreshTopicSubLocked(name)
		}
	}
}

// Publish creates the topic if absent (default value = zero of typeStr),
// registers the publisher, and announces it to c (always, with pubuid) and
// to every other subscribed client (without pubuid) (spec.md §4.D.1 publish,
// scenario S4).
func (b *Broker) Publish(c *ClientData, name string, pubuid int32, typeStr string, props Properties) (*Topic, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	typ, ok := TypeFromString(typeStr)
	if !ok {
		return nil, false
	}

	topic, existed := b.topics[name]
	if !existed {
		topic = &Topic{Name: name, DeclaredType: typ, Value: ZeroValue(typ), Properties: props}
		b.topics[name] = topic
	}
	topic.PublisherCount++

	c.Publishers[pubuid] = &Publisher{UID: pubuid, TopicName: name}

	uid := pubuid
	b.announceLocked(c, topic, &uid)

	for _, other := range b.allParticipantsLocked() {
		if other.GUID == c.GUID {
			continue
		}
		if b.anySubscriptionMatches(other, name) {
			b.announceLocked(other, topic, nil)
		}
	}

	b.refreshClientPubLocked(c)
	b.refreshTopicPubLocked(name)
	b.flushAllLocked()
	return topic, true
}

// Unpublish removes pubuid's registration and decrements publisher_count
// (spec.md §4.D.1 unpublish).
func (b *Broker) Unpublish(c *ClientData, pubuid int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unpublishLocked(c, pubuid)
	b.flushClientLocked(c)
}

func (b *Broker) unpublishLocked(c *ClientData, pubuid int32) {
	pub, ok := c.Publishers[pubuid]
	if !ok {
		return
	}
	delete(c.Publishers, pubuid)
	if topic, ok := b.topics[pub.TopicName]; ok && topic.PublisherCount > 0 {
		topic.PublisherCount--
	}
	b.refreshClientPubLocked(c)
	b.refreshTopicPubLocked(pub.TopicName)
}

// SetProperties applies a partial update and fans out a properties message
// to every current subscriber, with ack:true to initiator (spec.md §4.D.1
// setproperties, invariant 4).
func (b *Broker) SetProperties(initiator *ClientData, name string, update PropertiesUpdate) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	topic, ok := b.topics[name]
	if !ok {
		return false
	}
	topic.Properties = topic.Properties.Apply(update)

	for _, c := range b.allParticipantsLocked() {
		if !b.anySubscriptionMatches(c, name) {
			continue
		}
		ack := initiator != nil && c.GUID == initiator.GUID && c.IsSelf == initiator.IsSelf
		b.deliverPropertiesLocked(c, topic, ack, update)
	}
	b.flushAllLocked()
	return true
}

// UpdateTopic assigns a new value to pubuid's topic and emits a binary
// update to every client with a matching non-topicsonly subscription that
// has already been announced the topic, provided the value's API type
// matches the topic's (spec.md §4.D.1 updateTopic, §4.D.8 type-mismatch
// policy). The updates are flushed before it returns.
func (b *Broker) UpdateTopic(c *ClientData, pubuid int32, value Value, timestamp uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	pub, ok := c.Publishers[pubuid]
	if !ok {
		return false
	}
	topic, ok := b.topics[pub.TopicName]
	if !ok {
		return false
	}
	if value.APIType() != topic.Value.APIType() {
		return false
	}
	topic.Value = value

	for _, other := range b.allParticipantsLocked() {
		if matchingNonTopicsOnly(other, topic.Name) == nil {
			continue
		}
		if _, ok := other.TopicData[topic.Name]; !ok {
			continue // hasn't been announced the topic yet; nothing to update
		}
		b.deliverUpdateLocked(other, topic, timestamp)
	}
	b.flushAllLocked()
	return true
}

// matchingNonTopicsOnly returns a subscription of c matching name that is
// not topicsonly, or nil (invariant 2: topicsonly suppresses value delivery
// but not announces).
func matchingNonTopicsOnly(c *ClientData, name string) *Subscription {
	for _, sub := range c.Subscriptions {
		if sub.Options.TopicsOnly {
			continue
		}
		if sub.Matches(name) {
			return sub
		}
	}
	return nil
}

// allParticipantsLocked returns every connected client plus self, the set
// over which announce/update/properties fan-out ranges (spec.md §4.D.7:
// self "participates like a client").
func (b *Broker) allParticipantsLocked() []*ClientData {
	out := make([]*ClientData, 0, len(b.clients)+1)
	for _, c := range b.clients {
		out = append(out, c)
	}
	return append(out, b.self)
}

func (b *Broker) anySubscriptionMatches(c *ClientData, name string) bool {
	for _, sub := range c.Subscriptions {
		if sub.Matches(name) {
			return true
		}
	}
	return false
}

// Flush immediately drains the binary (and text) cache for every connected
// client (spec.md §4.D.1 flush).
func (b *Broker) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushAllLocked()
}

func (b *Broker) flushAllLocked() {
	for _, c := range b.clients {
		b.flushClient(c)
	}
	// self has no send function; flushing it is a no-op guarded in queueText/queueBinary.
}

func (b *Broker) flushClientLocked(c *ClientData) {
	b.flushClient(c)
}

// ReapUnretained removes every topic with retained=false and
// publisher_count==0, announcing unannounce to all subscribers first
// (spec.md §9 Open Question "Topic deletion on publisher drop": deletion is
// optional and explicit, never automatic).
func (b *Broker) ReapUnretained() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, topic := range b.topics {
		if topic.Properties.Retained || topic.PublisherCount > 0 {
			continue
		}
		for _, c := range b.allParticipantsLocked() {
			if b.anySubscriptionMatches(c, name) {
				b.deliverUnannounceLocked(c, topic)
			}
		}
		delete(b.topics, name)
		b.refreshTopicSubLocked(name)
		b.refreshTopicPubLocked(name)
	}
	b.flushAllLocked()
}

// announceLocked assigns (or returns the existing) per-client topic id and
// delivers the announce, idempotently: re-announcing an up-to-date topic to
// a client that has already seen it is a no-op (spec.md §9 "Re-announcement").
func (b *Broker) announceLocked(c *ClientData, topic *Topic, pubuid *int32) {
	id, fresh := c.assignTopicID(topic.Name)
	if !fresh && pubuid == nil {
		// Already announced and this isn't a fresh publisher correlation;
		// idempotent no-op per §9.
		return
	}
	b.deliverAnnounceLocked(c, topic, id, pubuid)
}
