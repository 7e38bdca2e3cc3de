package client

import (
	"testing"

	"github.com/Compdog-inc/pico-radio/nt"
	"github.com/Compdog-inc/pico-radio/pkg/config"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) *nt.Broker {
	t.Helper()
	return nt.New(config.CacheConfig{MaxTextCacheLength: 4096, MaxBinaryCacheLength: 4096}, config.ClockConfig{}, nil)
}

func TestPublisherPushesValuesThroughSelf(t *testing.T) {
	b := newTestBroker(t)

	pub := NewPublisher(b, "/x", nt.NewInt(0), nt.DefaultProperties())
	defer pub.Close()

	require.True(t, pub.Set(nt.NewInt(5)))

	topic, err := b.TopicByName("/x")
	require.NoError(t, err)
	require.Equal(t, int64(5), topic.Value.Int())
}

func TestSubscriberObservesPublishedValue(t *testing.T) {
	b := newTestBroker(t)

	pub := NewPublisher(b, "/y", nt.NewString("hello"), nt.DefaultProperties())
	defer pub.Close()

	sub := NewSubscriber(b, "/y")
	defer sub.Close()

	v, ok := sub.Get()
	require.True(t, ok)
	require.Equal(t, "hello", v.Str())

	require.True(t, pub.Set(nt.NewString("world")))
	v, ok = sub.Get()
	require.True(t, ok)
	require.Equal(t, "world", v.Str())
}

func TestSubscriberTopicNotFound(t *testing.T) {
	b := newTestBroker(t)
	sub := NewSubscriber(b, "/never-published")
	defer sub.Close()

	_, err := sub.Topic()
	require.Error(t, err)
}

func TestEntryLazilyCreatesPublisher(t *testing.T) {
	b := newTestBroker(t)
	e := NewEntry(b, "/z", nt.DefaultProperties())
	defer e.Close()

	require.False(t, e.IsPublishing())
	require.True(t, e.Set(nt.NewBool(true)))
	require.True(t, e.IsPublishing())

	v, ok := e.Get()
	require.True(t, ok)
	require.True(t, v.Bool())

	e.Unpublish()
	require.False(t, e.IsPublishing())
}
