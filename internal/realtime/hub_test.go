package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastDeliversToSubscribersOnChannel(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe(ChannelTasks)
	defer hub.Unsubscribe(sub)

	hub.Broadcast(ChannelTasks, Event{Type: "task.created", EntityID: "t1", Ts: time.Now()})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, "task.created", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcastDoesNotCrossChannels(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe(ChannelAgents)
	defer hub.Unsubscribe(sub)

	hub.Broadcast(ChannelTasks, Event{Type: "task.created", EntityID: "t1"})

	select {
	case <-sub.Events():
		t.Fatal("should not have received an event for a different channel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberIsDroppedOnFullBuffer(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe(ChannelRAG)

	hub.Broadcast(ChannelRAG, Event{Type: "a"})
	require.Equal(t, 1, hub.SubscriberCount(ChannelRAG))

	// Buffer now full (capacity 1, one unread event); next broadcast drops it.
	hub.Broadcast(ChannelRAG, Event{Type: "b"})
	assert.Equal(t, 0, hub.SubscriberCount(ChannelRAG))
}

func TestUnsubscribeClosesEventsChannel(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe(ChannelContext)
	hub.Unsubscribe(sub)

	_, ok := <-sub.Events()
	assert.False(t, ok)
}
