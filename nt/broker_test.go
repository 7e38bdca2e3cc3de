package nt

import (
	"strings"
	"testing"

	"github.com/Compdog-inc/pico-radio/internal/guid"
	"github.com/Compdog-inc/pico-radio/pkg/config"
	"github.com/stretchr/testify/require"
)

// fakeWire records every frame a client would have received, split by
// opcode, so tests can assert on exactly what the broker sent.
type fakeWire struct {
	texts    []string
	binaries [][]byte
}

func (w *fakeWire) send(payload []byte, isText bool) bool {
	if isText {
		w.texts = append(w.texts, string(payload))
	} else {
		cp := append([]byte(nil), payload...)
		w.binaries = append(w.binaries, cp)
	}
	return true
}

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	return New(config.CacheConfig{MaxTextCacheLength: 4096, MaxBinaryCacheLength: 4096}, config.ClockConfig{}, nil)
}

func addTestClient(b *Broker, base string) (*ClientData, *fakeWire) {
	w := &fakeWire{}
	c := b.AddClient(guid.New(), base, "127.0.0.1:0", w.send)
	return c, w
}

func lastBinaryUpdate(t *testing.T, w *fakeWire) BinaryUpdate {
	t.Helper()
	require.NotEmpty(t, w.binaries)
	updates, err := decodeBinaryMessages(w.binaries[len(w.binaries)-1])
	require.NoError(t, err)
	require.Len(t, updates, 1)
	return updates[0]
}

// S1: a single client subscribing to a topic a second client then publishes
// receives an announce, then the value the publisher pushes.
func TestSubscribeThenPublishDeliversAnnounceAndUpdate(t *testing.T) {
	b := newTestBroker(t)
	alice, aliceWire := addTestClient(b, "alice")
	bob, _ := addTestClient(b, "bob")

	require.Equal(t, "alice@1", alice.Name)
	require.Equal(t, "bob@1", bob.Name)

	b.Subscribe(alice, Subscription{UID: 1, Topics: []string{"/t"}, Options: DefaultSubscriptionOptions()})
	aliceWire.texts = nil // discard meta-topic churn from Subscribe itself

	topic, ok := b.Publish(bob, "/t", 1, "int", DefaultProperties())
	require.True(t, ok)
	require.Equal(t, "/t", topic.Name)

	require.NotEmpty(t, aliceWire.texts)
	require.Contains(t, aliceWire.texts[len(aliceWire.texts)-1], `"method":"announce"`)
	require.Contains(t, aliceWire.texts[len(aliceWire.texts)-1], `"name":"/t"`)

	b.UpdateTopic(bob, 1, NewInt(42), b.ServerTime())
	upd := lastBinaryUpdate(t, aliceWire)
	require.Equal(t, int64(42), upd.Value.Int())
}

// S3: two clients connecting with the same base name get distinct @n
// suffixes, smallest unused integer first.
func TestClientNameDisambiguation(t *testing.T) {
	b := newTestBroker(t)
	a1, _ := addTestClient(b, "alice")
	a2, _ := addTestClient(b, "alice")
	require.Equal(t, "alice@1", a1.Name)
	require.Equal(t, "alice@2", a2.Name)

	b.RemoveClient(a1.GUID)
	a3, _ := addTestClient(b, "alice")
	require.Equal(t, "alice@1", a3.Name, "freed suffix is reused")
}

// Invariant 2: topicsonly suppresses value delivery but not announces.
func TestTopicsOnlySuppressesUpdatesNotAnnounces(t *testing.T) {
	b := newTestBroker(t)
	alice, aliceWire := addTestClient(b, "alice")
	bob, _ := addTestClient(b, "bob")

	opts := DefaultSubscriptionOptions()
	opts.TopicsOnly = true
	b.Subscribe(alice, Subscription{UID: 1, Topics: []string{"/t"}, Options: opts})
	aliceWire.texts = nil

	b.Publish(bob, "/t", 1, "int", DefaultProperties())
	require.NotEmpty(t, aliceWire.texts)

	binCountBefore := len(aliceWire.binaries)
	b.UpdateTopic(bob, 1, NewInt(7), b.ServerTime())
	require.Equal(t, binCountBefore, len(aliceWire.binaries), "topicsonly subscriber must never receive value frames")
}

// A subscriber that existed before the topic was published still receives
// updates once the publisher starts pushing values (regression: the
// per-client topic entry must not permanently gate delivery).
func TestSubscribeBeforePublishStillReceivesUpdates(t *testing.T) {
	b := newTestBroker(t)
	alice, aliceWire := addTestClient(b, "alice")
	bob, _ := addTestClient(b, "bob")

	b.Subscribe(alice, Subscription{UID: 1, Topics: []string{"/late"}, Options: DefaultSubscriptionOptions()})

	b.Publish(bob, "/late", 1, "int", DefaultProperties())
	b.UpdateTopic(bob, 1, NewInt(99), b.ServerTime())

	upd := lastBinaryUpdate(t, aliceWire)
	require.Equal(t, int64(99), upd.Value.Int())
}

// Invariant 3: unsubscribe stops further announce/update delivery.
func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBroker(t)
	alice, aliceWire := addTestClient(b, "alice")
	bob, _ := addTestClient(b, "bob")

	b.Subscribe(alice, Subscription{UID: 1, Topics: []string{"/t"}, Options: DefaultSubscriptionOptions()})
	b.Publish(bob, "/t", 1, "int", DefaultProperties())
	b.Unsubscribe(alice, 1)

	binCountBefore := len(aliceWire.binaries)
	b.UpdateTopic(bob, 1, NewInt(5), b.ServerTime())
	require.Equal(t, binCountBefore, len(aliceWire.binaries))
}

// Invariant 4: setproperties acks only the initiator.
func TestSetPropertiesAcksOnlyInitiator(t *testing.T) {
	b := newTestBroker(t)
	alice, aliceWire := addTestClient(b, "alice")
	bob, bobWire := addTestClient(b, "bob")

	b.Subscribe(alice, Subscription{UID: 1, Topics: []string{"/t"}, Options: DefaultSubscriptionOptions()})
	b.Subscribe(bob, Subscription{UID: 1, Topics: []string{"/t"}, Options: DefaultSubscriptionOptions()})
	b.Publish(bob, "/t", 1, "int", DefaultProperties())
	aliceWire.texts, bobWire.texts = nil, nil

	retained := true
	ok := b.SetProperties(bob, "/t", PropertiesUpdate{Retained: &retained})
	require.True(t, ok)

	require.Contains(t, bobWire.texts[len(bobWire.texts)-1], `"ack":true`)
	require.NotContains(t, aliceWire.texts[len(aliceWire.texts)-1], `"ack":true`)
}

// S4: publish announces to the publisher with a pubuid, and to every other
// subscribed client without one.
func TestPublishAnnouncesPubuidOnlyToPublisher(t *testing.T) {
	b := newTestBroker(t)
	alice, aliceWire := addTestClient(b, "alice")
	bob, bobWire := addTestClient(b, "bob")

	b.Subscribe(alice, Subscription{UID: 1, Topics: []string{"/t"}, Options: DefaultSubscriptionOptions()})
	bobWire.texts = nil

	b.Publish(bob, "/t", 7, "int", DefaultProperties())

	require.Contains(t, bobWire.texts[len(bobWire.texts)-1], `"pubuid":7`)

	var lastAliceAnnounce string
	for _, m := range aliceWire.texts {
		if strings.Contains(m, `"method":"announce"`) && strings.Contains(m, `"name":"/t"`) {
			lastAliceAnnounce = m
		}
	}
	require.NotEmpty(t, lastAliceAnnounce)
	require.NotContains(t, lastAliceAnnounce, `"pubuid"`)
}

// S5: RTT responses bypass the batching cache and answer immediately.
func TestHandleRTTRespondsImmediately(t *testing.T) {
	b := newTestBroker(t)
	alice, aliceWire := addTestClient(b, "alice")

	b.HandleRTT(alice, NewInt(123456))

	require.Len(t, aliceWire.binaries, 1)
	updates, err := decodeBinaryMessages(aliceWire.binaries[0])
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Equal(t, int64(-1), updates[0].ID)
	require.Equal(t, int64(123456), updates[0].Value.Int())
}

// Self participates in fan-out exactly like a real client, through the
// four SelfCallbacks hooks instead of framed bytes.
func TestSelfParticipatesLikeAClient(t *testing.T) {
	b := newTestBroker(t)
	bob, _ := addTestClient(b, "bob")

	var announced string
	var updated int64
	b.SetSelfCallbacks(SelfCallbacks{
		OnTopicAnnounced: func(name string, id int64, apiType Type, props Properties) {
			announced = name
		},
		OnTopicUpdate: func(id int64, ts uint64, value Value) {
			updated = value.Int()
		},
	})

	b.Subscribe(b.Self(), Subscription{UID: 1, Topics: []string{"/t"}, Options: DefaultSubscriptionOptions()})
	b.Publish(bob, "/t", 1, "int", DefaultProperties())
	b.UpdateTopic(bob, 1, NewInt(77), b.ServerTime())

	require.Equal(t, "/t", announced)
	require.Equal(t, int64(77), updated)
}

// Meta-topics: $clients exists as a Bin-typed topic, and
// $clientsub$<name> holds a non-empty payload once the client subscribes.
func TestMetaTopicsReflectState(t *testing.T) {
	b := newTestBroker(t)
	_, aliceWire := addTestClient(b, "alice")

	b.Subscribe(b.clients[firstGUID(b)], Subscription{UID: 5, Topics: []string{"/t"}, Options: DefaultSubscriptionOptions()})

	clientsTopic, ok := b.topics["$clients"]
	require.True(t, ok)
	require.Equal(t, TypeBin, clientsTopic.Value.APIType())

	subTopic, ok := b.topics["$clientsub$alice@1"]
	require.True(t, ok)
	require.NotEmpty(t, subTopic.Value.Bytes())

	_ = aliceWire
}

func firstGUID(b *Broker) guid.Guid {
	for id := range b.clients {
		return id
	}
	return guid.Zero
}

// Type-mismatch policy (spec.md §4.D.8): updateTopic with a value whose
// API type doesn't match the topic's is rejected.
func TestUpdateTopicRejectsTypeMismatch(t *testing.T) {
	b := newTestBroker(t)
	bob, _ := addTestClient(b, "bob")

	b.Publish(bob, "/t", 1, "int", DefaultProperties())
	ok := b.UpdateTopic(bob, 1, NewString("nope"), b.ServerTime())
	require.False(t, ok)
}

// A topic published as msgpack announces under its real type string and
// still accepts updates, because its zero value and wire updates must both
// project to the same API type (Bin) despite the declared type differing
// from the wire's "raw"/Bin case.
func TestMsgpackTopicAnnouncesAndUpdates(t *testing.T) {
	b := newTestBroker(t)
	alice, aliceWire := addTestClient(b, "alice")
	bob, _ := addTestClient(b, "bob")

	b.Subscribe(alice, Subscription{UID: 1, Topics: []string{"/m"}, Options: DefaultSubscriptionOptions()})
	aliceWire.texts = nil

	topic, ok := b.Publish(bob, "/m", 1, "msgpack", DefaultProperties())
	require.True(t, ok)
	require.Equal(t, TypeBin, topic.Value.APIType())

	require.Contains(t, aliceWire.texts[len(aliceWire.texts)-1], `"type":"msgpack"`)

	ok = b.UpdateTopic(bob, 1, NewBin([]byte{1, 2, 3}), b.ServerTime())
	require.True(t, ok, "a Bin-APIType update must be accepted for a msgpack-declared topic")

	upd := lastBinaryUpdate(t, aliceWire)
	require.Equal(t, []byte{1, 2, 3}, upd.Value.Bytes())
}

// Open Question resolution: topic deletion is opt-in via ReapUnretained,
// never automatic on unpublish.
func TestUnpublishDoesNotDeleteTopicWithoutReap(t *testing.T) {
	b := newTestBroker(t)
	bob, _ := addTestClient(b, "bob")

	b.Publish(bob, "/t", 1, "int", DefaultProperties())
	b.Unpublish(bob, 1)

	_, ok := b.topics["/t"]
	require.True(t, ok, "topic must survive until ReapUnretained is called")

	b.ReapUnretained()
	_, ok = b.topics["/t"]
	require.False(t, ok)
}

// Retained topics survive ReapUnretained even with zero publishers.
func TestReapUnretainedSparesRetainedTopics(t *testing.T) {
	b := newTestBroker(t)
	bob, _ := addTestClient(b, "bob")

	props := DefaultProperties()
	props.Retained = true
	b.Publish(bob, "/t", 1, "string", props)
	b.Unpublish(bob, 1)
	b.ReapUnretained()

	_, ok := b.topics["/t"]
	require.True(t, ok)
}
