package nt

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Meta-topic payload shapes (spec.md §3 Meta-topics table). Each meta-topic
// is itself a regular cached, retained Bin topic holding one of these,
// MessagePack-encoded.

type clientMeta struct {
	ID   string `msgpack:"id"`
	Conn string `msgpack:"conn"`
}

type subOptionsMeta struct {
	PeriodicMs int  `msgpack:"periodic_ms"`
	All        bool `msgpack:"all"`
	TopicsOnly bool `msgpack:"topicsonly"`
	Prefix     bool `msgpack:"prefix"`
}

type subMeta struct {
	UID     int32          `msgpack:"uid"`
	Topics  []string       `msgpack:"topics"`
	Options subOptionsMeta `msgpack:"options"`
}

type pubMeta struct {
	UID   int32  `msgpack:"uid"`
	Topic string `msgpack:"topic"`
}

func encodeMeta(v interface{}) []byte {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// publishMetaLocked (re)assigns a meta-topic's value, creating it on first
// use as a cached, retained topic with one permanent implicit publisher
// (the broker itself), and fans out announce/update to whatever already
// subscribes to it.
func (b *Broker) publishMetaLocked(name string, encoded []byte) {
	topic, existed := b.topics[name]
	if !existed {
		topic = &Topic{Name: name, Properties: Properties{Cached: true, Retained: true}, PublisherCount: 1}
		b.topics[name] = topic
	}
	topic.Value = NewBin(encoded)

	for _, c := range b.allParticipantsLocked() {
		if !b.anySubscriptionMatches(c, name) {
			continue
		}
		b.announceLocked(c, topic, nil)
		if matchingNonTopicsOnly(c, name) != nil {
			b.deliverUpdateLocked(c, topic, b.clock.ServerTime())
		}
	}
}

// refreshClientsLocked rebuilds $clients from every connected (non-self)
// client.
func (b *Broker) refreshClientsLocked() {
	list := make([]clientMeta, 0, len(b.clients))
	for _, c := range b.clients {
		list = append(list, clientMeta{ID: c.GUID.String(), Conn: c.Addr})
	}
	b.publishMetaLocked("$clients", encodeMeta(list))
}

// refreshClientSubLocked rebuilds $serversub (for self) or
// $clientsub$<name> (for a real client).
func (b *Broker) refreshClientSubLocked(c *ClientData) {
	list := make([]subMeta, 0, len(c.Subscriptions))
	for _, s := range c.Subscriptions {
		list = append(list, subMeta{UID: s.UID, Topics: s.Topics, Options: subOptionsMeta{
			PeriodicMs: s.Options.PeriodicMs, All: s.Options.All, TopicsOnly: s.Options.TopicsOnly, Prefix: s.Options.Prefix,
		}})
	}
	b.publishMetaLocked(clientSubMetaName(c), encodeMeta(list))
}

// refreshClientPubLocked rebuilds $serverpub (for self) or
// $clientpub$<name> (for a real client).
func (b *Broker) refreshClientPubLocked(c *ClientData) {
	list := make([]pubMeta, 0, len(c.Publishers))
	for _, p := range c.Publishers {
		list = append(list, pubMeta{UID: p.UID, Topic: p.TopicName})
	}
	b.publishMetaLocked(clientPubMetaName(c), encodeMeta(list))
}

func clientSubMetaName(c *ClientData) string {
	if c.IsSelf {
		return "$serversub"
	}
	return "$clientsub$" + c.Name
}

func clientPubMetaName(c *ClientData) string {
	if c.IsSelf {
		return "$serverpub"
	}
	return "$clientpub$" + c.Name
}

// refreshTopicSubLocked rebuilds $sub$<topic>: every subscriber across every
// participant whose subscription matches topicName.
func (b *Broker) refreshTopicSubLocked(topicName string) {
	if IsMeta(topicName) {
		return
	}
	var list []subMeta
	for _, c := range b.allParticipantsLocked() {
		for _, s := range c.Subscriptions {
			if s.Matches(topicName) {
				list = append(list, subMeta{UID: s.UID, Topics: s.Topics, Options: subOptionsMeta{
					PeriodicMs: s.Options.PeriodicMs, All: s.Options.All, TopicsOnly: s.Options.TopicsOnly, Prefix: s.Options.Prefix,
				}})
			}
		}
	}
	b.publishMetaLocked(fmt.Sprintf("$sub$%s", topicName), encodeMeta(list))
}

// refreshTopicPubLocked rebuilds $pub$<topic>: every publisher across every
// participant publishing topicName.
func (b *Broker) refreshTopicPubLocked(topicName string) {
	if IsMeta(topicName) {
		return
	}
	var list []pubMeta
	for _, c := range b.allParticipantsLocked() {
		for _, p := range c.Publishers {
			if p.TopicName == topicName {
				list = append(list, pubMeta{UID: p.UID, Topic: p.TopicName})
			}
		}
	}
	b.publishMetaLocked(fmt.Sprintf("$pub$%s", topicName), encodeMeta(list))
}
