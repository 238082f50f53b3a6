package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flush(t *testing.T, b *bus.Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Flush(ctx))
}

func TestPublish_RejectsContractViolations(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	err := b.Publish(bus.Message{Type: "explode", Payload: &bus.ClickCanvas{}})
	assert.ErrorIs(t, err, bus.ErrUnknownType)

	err = b.Publish(bus.Message{Type: bus.TypeDeleteInstance, Payload: &bus.SelectInstance{ID: "a"}})
	assert.ErrorIs(t, err, bus.ErrPayloadMismatch)

	err = b.Publish(bus.Message{Type: bus.TypeDeleteInstance})
	assert.ErrorIs(t, err, bus.ErrPayloadMismatch)

	var nilPayload *bus.DeleteInstance
	err = b.Publish(bus.Message{Type: bus.TypeDeleteInstance, Payload: nilPayload})
	assert.ErrorIs(t, err, bus.ErrPayloadMismatch)

	_, err = b.Subscribe("explode", func(bus.Message) {})
	assert.ErrorIs(t, err, bus.ErrUnknownType)
}

func TestPublish_DeliversOnlyMatchingType(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	var mu sync.Mutex
	var got []string
	_, err := bus.On(b, func(p *bus.SelectInstance) {
		mu.Lock()
		got = append(got, p.ID)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, b.Emit(&bus.SelectInstance{ID: "a"}))
	require.NoError(t, b.Emit(&bus.DeleteInstance{ID: "zzz"}))
	require.NoError(t, b.Emit(&bus.SelectInstance{ID: "b"}))
	flush(t, b)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestPublish_PreservesOrderPerSubscriber(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	const n = 500
	var mu sync.Mutex
	seen := map[int][]int{}
	for s := 0; s < 3; s++ {
		s := s
		_, err := bus.On(b, func(p *bus.ReparentInstance) {
			mu.Lock()
			seen[s] = append(seen[s], p.Index)
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	for i := 0; i < n; i++ {
		require.NoError(t, b.Emit(&bus.ReparentInstance{ID: "x", ParentID: "root", Index: i}))
	}
	flush(t, b)

	mu.Lock()
	defer mu.Unlock()
	for s := 0; s < 3; s++ {
		require.Len(t, seen[s], n)
		for i, v := range seen[s] {
			assert.Equal(t, i, v)
		}
	}
}

func TestPublish_NeverReentersPublisher(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	var mu sync.Mutex
	publishing := false
	reentered := false
	_, err := b.SubscribeAll(func(bus.Message) {
		mu.Lock()
		if publishing {
			reentered = true
		}
		mu.Unlock()
	})
	require.NoError(t, err)

	mu.Lock()
	publishing = true
	require.NoError(t, b.Emit(&bus.ClickCanvas{}))
	publishing = false
	mu.Unlock()

	flush(t, b)
	assert.False(t, reentered)
}

func TestPublish_WithoutSubscribersIsDropped(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	require.NoError(t, b.Emit(&bus.ClickCanvas{}))
	flush(t, b)

	var count int
	var mu sync.Mutex
	_, err := bus.On(b, func(*bus.ClickCanvas) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)
	flush(t, b)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count, "messages are not queued for future subscribers")
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	var mu sync.Mutex
	count := 0
	sub, err := bus.On(b, func(*bus.UnselectInstance) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, b.Emit(&bus.UnselectInstance{}))
	flush(t, b)
	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, b.Emit(&bus.UnselectInstance{}))
	flush(t, b)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
	assert.Zero(t, b.Subscribers())
}

func TestFlush_WaitsForCascades(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	done := make(chan struct{}, 1)
	_, err := bus.On(b, func(p *bus.DeleteInstance) {
		_ = b.Emit(&bus.UnselectInstance{})
	})
	require.NoError(t, err)
	_, err = bus.On(b, func(*bus.UnselectInstance) {
		time.Sleep(10 * time.Millisecond)
		done <- struct{}{}
	})
	require.NoError(t, err)

	require.NoError(t, b.Emit(&bus.DeleteInstance{ID: "a"}))
	flush(t, b)

	select {
	case <-done:
	default:
		t.Fatal("flush returned before the cascaded message was handled")
	}
}

func TestHandlerPanic_DoesNotKillSubscriber(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	var mu sync.Mutex
	var ids []string
	_, err := bus.On(b, func(p *bus.SelectInstance) {
		if p.ID == "boom" {
			panic("boom")
		}
		mu.Lock()
		ids = append(ids, p.ID)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, b.Emit(&bus.SelectInstance{ID: "boom"}))
	require.NoError(t, b.Emit(&bus.SelectInstance{ID: "ok"}))
	flush(t, b)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ok"}, ids)
}

func TestClose(t *testing.T) {
	b := bus.NewBus()
	_, err := b.SubscribeAll(func(bus.Message) {})
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Emit(&bus.ClickCanvas{}), bus.ErrClosed)
	_, err = b.SubscribeAll(func(bus.Message) {})
	assert.ErrorIs(t, err, bus.ErrClosed)
	flush(t, b)
}

func TestFlush_HonoursContext(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	release := make(chan struct{})
	_, err := bus.On(b, func(*bus.ClickCanvas) { <-release })
	require.NoError(t, err)
	require.NoError(t, b.Emit(&bus.ClickCanvas{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Flush(ctx), context.DeadlineExceeded)
	close(release)
	flush(t, b)
}
