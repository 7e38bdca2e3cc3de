package nt

import "strings"

// SubscriptionOptions are the per-subscription knobs of spec.md §3, with
// defaults {100ms, false, false, false}.
type SubscriptionOptions struct {
	PeriodicMs int
	All        bool
	TopicsOnly bool
	Prefix     bool
}

// DefaultSubscriptionOptions returns the spec.md §3 defaults.
func DefaultSubscriptionOptions() SubscriptionOptions {
	return SubscriptionOptions{PeriodicMs: 100}
}

// Subscription is a client's standing request for announces and/or value
// updates over a set of topic names or prefixes (spec.md §3).
type Subscription struct {
	UID     int32
	Topics  []string
	Options SubscriptionOptions
}

// Matches implements the exact, non-overridable predicate of spec.md §4.D.4:
// prefix subscribers never match a $-topic unless their own entry also
// starts with $ (this is what keeps an empty-string prefix subscription
// from slurping up every meta-topic).
func (s Subscription) Matches(topicName string) bool {
	for _, entry := range s.Topics {
		if s.Options.Prefix {
			if strings.HasPrefix(topicName, "$") {
				if strings.HasPrefix(entry, "$") && strings.HasPrefix(topicName, entry) {
					return true
				}
			} else if entry == "" || strings.HasPrefix(topicName, entry) {
				return true
			}
		} else if topicName == entry {
			return true
		}
	}
	return false
}

// Publisher is a client's declaration that it will emit updates for a topic
// (spec.md §3).
type Publisher struct {
	UID       int32
	TopicName string
}
