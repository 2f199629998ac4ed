package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishWakesSubscriber(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("user-1")
	defer cancel()

	hub.Publish("user-1", 3)

	select {
	case count := <-ch:
		assert.Equal(t, int64(3), count)
	case <-time.After(time.Second):
		t.Fatal("expected a published count")
	}
}

func TestHub_SlowSubscriberGetsLatestValue(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("user-1")
	defer cancel()

	// Nobody is receiving; later publishes must replace, not block.
	hub.Publish("user-1", 1)
	hub.Publish("user-1", 2)
	hub.Publish("user-1", 7)

	select {
	case count := <-ch:
		assert.Equal(t, int64(7), count)
	case <-time.After(time.Second):
		t.Fatal("expected the latest count")
	}
}

func TestHub_MultipleSubscribersPerUser(t *testing.T) {
	hub := NewHub()

	ch1, cancel1 := hub.Subscribe("user-1")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("user-1")
	defer cancel2()

	hub.Publish("user-1", 5)

	for _, ch := range []<-chan int64{ch1, ch2} {
		select {
		case count := <-ch:
			require.Equal(t, int64(5), count)
		case <-time.After(time.Second):
			t.Fatal("every subscriber should receive the count")
		}
	}
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("user-1")
	cancel()

	hub.Publish("user-1", 9)

	select {
	case <-ch:
		t.Fatal("cancelled subscriber must not receive")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PublishToUnknownUserIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Publish("ghost", 1)
}
