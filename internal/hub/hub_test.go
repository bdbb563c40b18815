package hub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveWithTimeout(t *testing.T, sub *Subscription) ([]byte, int64) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	event, missed, err := sub.Receive(ctx)
	require.NoError(t, err)
	return event, missed
}

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	h := New(8)
	sub1 := h.Subscribe()
	defer sub1.Close()
	sub2 := h.Subscribe()
	defer sub2.Close()

	h.Publish([]byte(`{"red":1,"total":1}`))

	for _, sub := range []*Subscription{sub1, sub2} {
		event, missed := receiveWithTimeout(t, sub)
		assert.Equal(t, `{"red":1,"total":1}`, string(event))
		assert.Zero(t, missed)
	}
}

func TestPublish_PreservesOrderPerSubscriber(t *testing.T) {
	h := New(16)
	sub := h.Subscribe()
	defer sub.Close()

	for i := 0; i < 10; i++ {
		h.Publish([]byte(fmt.Sprintf("event-%d", i)))
	}

	for i := 0; i < 10; i++ {
		event, missed := receiveWithTimeout(t, sub)
		assert.Equal(t, fmt.Sprintf("event-%d", i), string(event))
		assert.Zero(t, missed)
	}
}

func TestPublish_NoSubscribersIsNoOp(t *testing.T) {
	h := New(8)
	assert.NotPanics(t, func() {
		h.Publish([]byte("nobody home"))
	})
	assert.Zero(t, h.Subscribers())
}

func TestPublish_LaggingSubscriberSkipsOldest(t *testing.T) {
	h := New(2)
	sub := h.Subscribe()
	defer sub.Close()

	// Queue holds 2; publishing 5 drops the 3 oldest.
	for i := 0; i < 5; i++ {
		h.Publish([]byte(fmt.Sprintf("event-%d", i)))
	}

	event, missed := receiveWithTimeout(t, sub)
	assert.Equal(t, "event-3", string(event), "subscriber resumes from most recent retained entries")
	assert.Equal(t, int64(3), missed, "gap is surfaced on the next receive")

	event, missed = receiveWithTimeout(t, sub)
	assert.Equal(t, "event-4", string(event))
	assert.Zero(t, missed)
}

func TestPublish_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	h := New(1)
	slow := h.Subscribe()
	defer slow.Close()
	fast := h.Subscribe()
	defer fast.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			h.Publish([]byte(fmt.Sprintf("event-%d", i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// The fast subscriber still sees the newest event.
	event, _ := receiveWithTimeout(t, fast)
	assert.Equal(t, "event-99", string(event))
}

func TestSubscribe_NoReplayOfHistory(t *testing.T) {
	h := New(8)
	h.Publish([]byte("before"))

	sub := h.Subscribe()
	defer sub.Close()
	h.Publish([]byte("after"))

	event, _ := receiveWithTimeout(t, sub)
	assert.Equal(t, "after", string(event))
}

func TestClose_ReceiveReturnsErrClosed(t *testing.T) {
	h := New(8)
	sub := h.Subscribe()
	sub.Close()
	sub.Close() // idempotent

	_, _, err := sub.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, h.Subscribers())
}

func TestReceive_ContextCancellation(t *testing.T) {
	h := New(8)
	sub := h.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := sub.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
