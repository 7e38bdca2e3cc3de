package nt

import (
	"github.com/Compdog-inc/pico-radio/internal/guid"
)

// TopicDataEntry is the per-client view of a topic: the id the server
// assigned *to this client* for that topic, and whether its initial
// publish has been delivered yet (spec.md §3 ClientData.topic_data).
type TopicDataEntry struct {
	ID                 int64
	InitialPublishDone bool
}

// sendFunc abstracts how a ClientData actually delivers bytes: a real
// client sends frames through its WebSocket session, while self invokes
// user callbacks directly (spec.md §4.D.7, §9 "Reflection of self").
type sendFunc func(payload []byte, isText bool) bool

// ClientData is one connected participant — a real client or the
// synthetic "self" (spec.md §3 ClientData).
type ClientData struct {
	GUID guid.Guid
	Name string
	Addr string // "host:port"; empty for self (spec.md §3 Meta-topics $clients)

	Subscriptions map[int32]*Subscription
	Publishers    map[int32]*Publisher

	TopicData map[string]*TopicDataEntry

	nextTopicID int64

	textCache   []byte
	binaryCache []byte

	send sendFunc // nil for self; self is driven through broker callbacks instead

	// IsSelf marks the synthetic server-as-participant ClientData.
	IsSelf bool
}

func newClientData(id guid.Guid, name string, send sendFunc) *ClientData {
	return &ClientData{
		GUID:          id,
		Name:          name,
		Subscriptions: make(map[int32]*Subscription),
		Publishers:    make(map[int32]*Publisher),
		TopicData:     make(map[string]*TopicDataEntry),
		send:          send,
	}
}

// assignTopicID returns this client's id for topicName, allocating a fresh
// one via next_topic_id_assigned++ on first reference (spec.md §3).
func (c *ClientData) assignTopicID(topicName string) (id int64, fresh bool) {
	if entry, ok := c.TopicData[topicName]; ok {
		return entry.ID, false
	}
	id = c.nextTopicID
	c.nextTopicID++
	c.TopicData[topicName] = &TopicDataEntry{ID: id}
	return id, true
}
