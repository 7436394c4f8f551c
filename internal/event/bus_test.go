package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	first, unsubFirst := bus.Subscribe()
	second, unsubSecond := bus.Subscribe()
	defer unsubFirst()
	defer unsubSecond()

	bus.Publish(New(TypeLoginSucceeded, StatusSuccess, "user-1"))

	for _, ch := range []<-chan Event{first, second} {
		got := <-ch
		assert.Equal(t, TypeLoginSucceeded, got.Type)
		assert.Equal(t, "user-1", got.ActorID)
		assert.NotEmpty(t, got.ID)
	}
}

func TestBus_UnsubscribeClosesChannelOnce(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()

	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)

	bus.Publish(New(TypeLoggedOut, StatusSuccess, "user-1"))
}

func TestBus_PublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(New(TypeRefreshed, StatusSuccess, "user-1"))
	}

	require.Len(t, ch, subscriberBuffer)
}
