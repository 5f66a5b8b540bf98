package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	b.Publish(&Event{Type: EventMediaReady, Message: "Movie"})

	select {
	case event := <-sub:
		assert.Equal(t, EventMediaReady, event.Type)
		assert.Equal(t, "Movie", event.Message)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBrokerFanout(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	first := b.Subscribe()
	second := b.Subscribe()
	b.Publish(&Event{Type: EventTaskLaunched})

	for _, sub := range []Subscriber{first, second} {
		select {
		case event := <-sub:
			assert.Equal(t, EventTaskLaunched, event.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered to every subscriber")
		}
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Zero(t, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open, "unsubscribed channel is closed")
}

func TestBrokerSkipsSlowSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	slow := b.Subscribe()
	// Overfill the subscriber buffer; extra events are dropped, not blocked on.
	for i := 0; i < cap(slow)+20; i++ {
		b.Publish(&Event{Type: EventTaskProgress})
	}

	require.Eventually(t, func() bool {
		return len(slow) == cap(slow)
	}, time.Second, 10*time.Millisecond)
}
