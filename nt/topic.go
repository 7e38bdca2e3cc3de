package nt

import "strings"

// Properties are the per-topic flags of spec.md §3.
type Properties struct {
	Persistent bool // reserved for storage, never acted upon (Non-goal)
	Retained   bool // topic survives loss of all publishers
	Cached     bool // re-announced on late subscription
}

// DefaultProperties is the spec.md §3 default {false, false, true}.
func DefaultProperties() Properties {
	return Properties{Cached: true}
}

// PropertiesUpdate is a partial update (spec.md §3 "TopicProperties update
// semantics"): a nil field leaves the corresponding flag unchanged.
type PropertiesUpdate struct {
	Persistent *bool
	Retained   *bool
	Cached     *bool
}

// Apply merges u into p, leaving fields u doesn't set untouched.
func (p Properties) Apply(u PropertiesUpdate) Properties {
	if u.Persistent != nil {
		p.Persistent = *u.Persistent
	}
	if u.Retained != nil {
		p.Retained = *u.Retained
	}
	if u.Cached != nil {
		p.Cached = *u.Cached
	}
	return p
}

// Topic is an authoritative, globally named typed value (spec.md §3).
type Topic struct {
	Name string
	// DeclaredType is the surface type the first publisher named (e.g.
	// TypeMsgpack, TypeJSON), kept distinct from Value.APIType() so the
	// topic can still be announced under its real type string even though
	// json/msgpack/protobuf/raw all collapse to Str/Bin on the wire.
	DeclaredType   Type
	Value          Value
	Properties     Properties
	PublisherCount uint32
}

// IsMeta reports whether name is a reflective meta-topic name (spec.md §3:
// "Names starting with $ are meta-topics").
func IsMeta(name string) bool {
	return strings.HasPrefix(name, "$")
}
