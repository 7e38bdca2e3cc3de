package nt

import (
	"github.com/tidwall/gjson"
)

// HandleTextFrame decodes a batched text frame and dispatches every
// recognized message to the matching broker operation (spec.md §4.D.6).
// Unknown methods, and the client-directed methods announce/unannounce/
// properties, are no-ops on the server.
func (b *Broker) HandleTextFrame(c *ClientData, payload []byte) {
	for _, msg := range parseTextFrame(payload) {
		switch msg.method {
		case "publish":
			b.handlePublish(c, msg.params)
		case "unpublish":
			b.handleUnpublish(c, msg.params)
		case "subscribe":
			b.handleSubscribe(c, msg.params)
		case "unsubscribe":
			b.handleUnsubscribe(c, msg.params)
		case "setproperties":
			b.handleSetProperties(c, msg.params)
		default:
			// announce/unannounce/properties (client-directed) and anything
			// unrecognized are silently skipped (spec.md §4.D.6).
		}
	}
}

func (b *Broker) handlePublish(c *ClientData, params gjson.Result) {
	name := params.Get("name").String()
	typeStr := params.Get("type").String()
	if name == "" || typeStr == "" {
		return
	}
	pubuid := int32(params.Get("pubuid").Int())
	props := propertiesFromJSON(params.Get("properties"))
	b.Publish(c, name, pubuid, typeStr, props)
}

func (b *Broker) handleUnpublish(c *ClientData, params gjson.Result) {
	pubuid := int32(params.Get("pubuid").Int())
	b.Unpublish(c, pubuid)
}

func (b *Broker) handleSubscribe(c *ClientData, params gjson.Result) {
	subuid := int32(params.Get("subuid").Int())
	var topics []string
	for _, t := range params.Get("topics").Array() {
		topics = append(topics, t.String())
	}
	opts := DefaultSubscriptionOptions()
	optsJSON := params.Get("options")
	if v := optsJSON.Get("periodic"); v.Exists() {
		opts.PeriodicMs = int(v.Float() * 1000)
	}
	if v := optsJSON.Get("all"); v.Exists() {
		opts.All = v.Bool()
	}
	if v := optsJSON.Get("topicsonly"); v.Exists() {
		opts.TopicsOnly = v.Bool()
	}
	if v := optsJSON.Get("prefix"); v.Exists() {
		opts.Prefix = v.Bool()
	}
	b.Subscribe(c, Subscription{UID: subuid, Topics: topics, Options: opts})
}

func (b *Broker) handleUnsubscribe(c *ClientData, params gjson.Result) {
	subuid := int32(params.Get("subuid").Int())
	b.Unsubscribe(c, subuid)
}

func (b *Broker) handleSetProperties(c *ClientData, params gjson.Result) {
	name := params.Get("name").String()
	if name == "" {
		return
	}
	update := PropertiesUpdate{}
	upd := params.Get("update")
	if v := upd.Get("persistent"); v.Exists() && v.Type != gjson.Null {
		b := v.Bool()
		update.Persistent = &b
	}
	if v := upd.Get("retained"); v.Exists() && v.Type != gjson.Null {
		b := v.Bool()
		update.Retained = &b
	}
	if v := upd.Get("cached"); v.Exists() && v.Type != gjson.Null {
		b := v.Bool()
		update.Cached = &b
	}
	b.SetProperties(c, name, update)
}

// propertiesFromJSON parses a publish message's full properties object,
// defaulting absent fields to DefaultProperties() (spec.md §3).
func propertiesFromJSON(v gjson.Result) Properties {
	p := DefaultProperties()
	if !v.Exists() {
		return p
	}
	if r := v.Get("persistent"); r.Exists() {
		p.Persistent = r.Bool()
	}
	if r := v.Get("retained"); r.Exists() {
		p.Retained = r.Bool()
	}
	if r := v.Get("cached"); r.Exists() {
		p.Cached = r.Bool()
	}
	return p
}

// HandleBinaryFrame decodes a batched binary frame into its update messages
// and dispatches each to the matching publisher's topic, or to the RTT
// responder when id == -1 (spec.md §4.D.3, §4.D.5).
func (b *Broker) HandleBinaryFrame(c *ClientData, payload []byte) {
	updates, _ := decodeBinaryMessages(payload)
	for _, upd := range updates {
		if upd.ID == rttID {
			b.HandleRTT(c, upd.Value)
			continue
		}
		b.UpdateTopic(c, int32(upd.ID), upd.Value, upd.Timestamp)
	}
}
