package nt

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// message is one decoded {"method":...,"params":{...}} entry from an
// incoming text frame (spec.md §4.D.6).
type message struct {
	method string
	params gjson.Result
}

// splitTopLevelObjects walks a JSON array of objects and returns the raw
// bytes of each top-level {...} element, stopping at the first malformed
// element it finds. This is what lets parseTextFrame be single-pass and
// truncate cleanly instead of failing the whole batch (spec.md §4.D.6,
// §4.D.8: "stop at the unparseable point, return success for already
// processed entries").
func splitTopLevelObjects(data []byte) [][]byte {
	var objects [][]byte

	i := 0
	n := len(data)
	// skip to the opening '['
	for i < n && data[i] != '[' {
		i++
	}
	if i >= n {
		return objects
	}
	i++

	for i < n {
		for i < n && (data[i] == ',' || data[i] == ' ' || data[i] == '\n' || data[i] == '\t' || data[i] == '\r') {
			i++
		}
		if i >= n || data[i] == ']' {
			break
		}
		if data[i] != '{' {
			break // malformed: stop here, keep what we already collected
		}

		start := i
		depth := 0
		inString := false
		escaped := false
		for ; i < n; i++ {
			c := data[i]
			if inString {
				if escaped {
					escaped = false
				} else if c == '\\' {
					escaped = true
				} else if c == '"' {
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					i++
					objects = append(objects, data[start:i])
					goto nextObject
				}
			}
		}
		return objects // ran off the end mid-object: truncate here
	nextObject:
	}

	return objects
}

// parseTextFrame decodes a batched text frame into the messages it
// contains, skipping unrecognized methods (spec.md §4.D.6). Parameter keys
// are read by name via gjson, never by position, so params may arrive in
// any key order.
func parseTextFrame(data []byte) []message {
	var out []message
	for _, obj := range splitTopLevelObjects(data) {
		parsed := gjson.ParseBytes(obj)
		if !parsed.Exists() {
			continue
		}
		method := parsed.Get("method").String()
		if method == "" {
			continue
		}
		out = append(out, message{method: method, params: parsed.Get("params")})
	}
	return out
}

// --- Outbound message construction -----------------------------------
//
// Per spec.md §9 ("Text batching uses inner JSON comma separation and
// outer array brackets"), announce/unannounce/properties frames are built
// by hand rather than through a generic struct marshaller: the wire shape
// is small, fixed, and the batching cache needs exact byte counts to
// decide when to flush.

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func propertiesJSON(p Properties) string {
	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(`"persistent":`)
	b.WriteString(strconv.FormatBool(p.Persistent))
	b.WriteString(`,"retained":`)
	b.WriteString(strconv.FormatBool(p.Retained))
	b.WriteString(`,"cached":`)
	b.WriteString(strconv.FormatBool(p.Cached))
	b.WriteByte('}')
	return b.String()
}

func propertiesUpdateJSON(u PropertiesUpdate) string {
	var parts []string
	if u.Persistent != nil {
		parts = append(parts, `"persistent":`+strconv.FormatBool(*u.Persistent))
	}
	if u.Retained != nil {
		parts = append(parts, `"retained":`+strconv.FormatBool(*u.Retained))
	}
	if u.Cached != nil {
		parts = append(parts, `"cached":`+strconv.FormatBool(*u.Cached))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// encodeAnnounce builds {"method":"announce","params":{...}} (spec.md
// §4.D.2). pubuid is included only when announcing to the publisher that
// just created the topic.
func encodeAnnounce(name string, id int64, typeStr string, pubuid *int32, props Properties) string {
	var b strings.Builder
	b.WriteString(`{"method":"announce","params":{"name":`)
	b.WriteString(jsonString(name))
	b.WriteString(`,"id":`)
	b.WriteString(strconv.FormatInt(id, 10))
	b.WriteString(`,"type":`)
	b.WriteString(jsonString(typeStr))
	if pubuid != nil {
		b.WriteString(`,"pubuid":`)
		b.WriteString(strconv.FormatInt(int64(*pubuid), 10))
	}
	b.WriteString(`,"properties":`)
	b.WriteString(propertiesJSON(props))
	b.WriteString(`}}`)
	return b.String()
}

// encodeUnannounce builds {"method":"unannounce","params":{...}}.
func encodeUnannounce(name string, id int64) string {
	var b strings.Builder
	b.WriteString(`{"method":"unannounce","params":{"name":`)
	b.WriteString(jsonString(name))
	b.WriteString(`,"id":`)
	b.WriteString(strconv.FormatInt(id, 10))
	b.WriteString(`}}`)
	return b.String()
}

// encodeProperties builds {"method":"properties","params":{...}}, with
// ack:true only for the client that initiated the change (spec.md §4.D.2,
// invariant 4).
func encodeProperties(name string, ack bool, update PropertiesUpdate) string {
	var b strings.Builder
	b.WriteString(`{"method":"properties","params":{"name":`)
	b.WriteString(jsonString(name))
	if ack {
		b.WriteString(`,"ack":true`)
	}
	b.WriteString(`,"update":`)
	b.WriteString(propertiesUpdateJSON(update))
	b.WriteString(`}}`)
	return b.String()
}
