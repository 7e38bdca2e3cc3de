package nt

// queueText appends a JSON message object to client's pending text batch,
// flushing first if adding it would exceed the configured threshold
// (spec.md §4.D.2, §9: the length predicate must include the two bracket
// bytes the eventual flush will add).
func (b *Broker) queueText(c *ClientData, msg string) {
	if c.send == nil {
		return // self: delivered via callbacks elsewhere, never framed
	}

	projected := len(c.textCache) + len(msg) + 2 // '[' + ']'
	if len(c.textCache) > 0 {
		projected++ // separating comma
	}
	if projected > b.cfg.MaxTextCacheLength && len(c.textCache) > 0 {
		b.flushText(c)
	}

	if len(c.textCache) > 0 {
		c.textCache = append(c.textCache, ',')
	}
	c.textCache = append(c.textCache, msg...)
}

// flushText wraps the pending text batch in [...] and sends it as one TEXT
// frame (spec.md §4.D.2).
func (b *Broker) flushText(c *ClientData) bool {
	if len(c.textCache) == 0 {
		return true
	}
	payload := make([]byte, 0, len(c.textCache)+2)
	payload = append(payload, '[')
	payload = append(payload, c.textCache...)
	payload = append(payload, ']')
	c.textCache = c.textCache[:0]
	return c.send(payload, true)
}

// queueBinary appends an encoded [id,timestamp,type,value] MessagePack
// array to client's pending binary batch (spec.md §4.D.3), flushing first
// if it would overflow the threshold.
func (b *Broker) queueBinary(c *ClientData, encoded []byte) {
	if c.send == nil {
		return
	}
	if len(c.binaryCache)+len(encoded) > b.cfg.MaxBinaryCacheLength && len(c.binaryCache) > 0 {
		b.flushBinary(c)
	}
	c.binaryCache = append(c.binaryCache, encoded...)
}

// flushBinary sends the pending binary batch as one BINARY frame.
func (b *Broker) flushBinary(c *ClientData) bool {
	if len(c.binaryCache) == 0 {
		return true
	}
	payload := c.binaryCache
	c.binaryCache = nil
	return c.send(payload, false)
}

// flushClient drains both caches for one client (used at the end of an
// incoming-message handling turn, spec.md §4.D.2).
func (b *Broker) flushClient(c *ClientData) {
	b.flushText(c)
	b.flushBinary(c)
}
