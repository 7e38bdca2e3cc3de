package nt

// SelfCallbacks are the four local-delivery hooks self.go uses in place of
// frame emission (spec.md §4.D.7, §9 "Reflection of self": self is a
// ClientData variant whose send is a function-pointer dispatch to user
// callbacks; no fan-out site is specialized beyond these four functions).
type SelfCallbacks struct {
	OnTopicAnnounced        func(name string, id int64, apiType Type, props Properties)
	OnTopicUnannounced      func(name string, id int64)
	OnTopicUpdate           func(id int64, timestampMicros uint64, value Value)
	OnTopicPropertiesUpdate func(name string, update PropertiesUpdate)
}

// Self returns the broker's synthetic self participant, for code that wants
// to subscribe/publish on behalf of the embedding process (spec.md §4.D.7).
func (b *Broker) Self() *ClientData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.self
}

// deliverAnnounceLocked sends (or locally invokes) one announce, branching
// on whether c is the self participant.
func (b *Broker) deliverAnnounceLocked(c *ClientData, topic *Topic, id int64, pubuid *int32) {
	if c.IsSelf {
		if b.selfCallbacks.OnTopicAnnounced != nil {
			b.selfCallbacks.OnTopicAnnounced(topic.Name, id, topic.Value.APIType(), topic.Properties)
		}
		return
	}
	msg := encodeAnnounce(topic.Name, id, SerializeDataType(topic.DeclaredType), pubuid, topic.Properties)
	b.queueText(c, msg)
}

// deliverUnannounceLocked sends (or locally invokes) one unannounce.
func (b *Broker) deliverUnannounceLocked(c *ClientData, topic *Topic) {
	entry, ok := c.TopicData[topic.Name]
	if !ok {
		return
	}
	if c.IsSelf {
		if b.selfCallbacks.OnTopicUnannounced != nil {
			b.selfCallbacks.OnTopicUnannounced(topic.Name, entry.ID)
		}
	} else {
		b.queueText(c, encodeUnannounce(topic.Name, entry.ID))
	}
	delete(c.TopicData, topic.Name)
}

// deliverUpdateLocked sends (or locally invokes) one value update, and marks
// the per-client topic entry's initial publish as complete (spec.md §5
// ordering guarantee: announce strictly precedes the first update).
func (b *Broker) deliverUpdateLocked(c *ClientData, topic *Topic, timestampMicros uint64) {
	entry, ok := c.TopicData[topic.Name]
	if !ok {
		return
	}
	if c.IsSelf {
		if b.selfCallbacks.OnTopicUpdate != nil {
			b.selfCallbacks.OnTopicUpdate(entry.ID, timestampMicros, topic.Value)
		}
	} else {
		encoded, err := encodeBinaryUpdate(entry.ID, timestampMicros, topic.Value)
		if err != nil {
			return
		}
		b.queueBinary(c, encoded)
	}
	entry.InitialPublishDone = true
}

// deliverPropertiesLocked sends (or locally invokes) one properties update.
func (b *Broker) deliverPropertiesLocked(c *ClientData, topic *Topic, ack bool, update PropertiesUpdate) {
	if c.IsSelf {
		if b.selfCallbacks.OnTopicPropertiesUpdate != nil {
			b.selfCallbacks.OnTopicPropertiesUpdate(topic.Name, update)
		}
		return
	}
	b.queueText(c, encodeProperties(topic.Name, ack, update))
}
