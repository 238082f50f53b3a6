package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu   sync.Mutex
	msgs []bus.Message
}

func (c *collector) handle(m bus.Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	c.mu.Unlock()
}

func (c *collector) types() []bus.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bus.Type, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Type
	}
	return out
}

func TestBridge_CrossesTransportWithoutEcho(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	left, right := bus.NewBus(), bus.NewBus()
	defer left.Close()
	defer right.Close()
	lt, rt := memory.NewPipe()

	lb := bus.NewBridge(left, lt, bus.WithOrigin("authoring"))
	rb := bus.NewBridge(right, rt, bus.WithOrigin("canvas"))
	go func() { _ = lb.Run(ctx) }()
	go func() { _ = rb.Run(ctx) }()

	var onLeft, onRight collector
	_, err := left.SubscribeAll(onLeft.handle)
	require.NoError(t, err)
	_, err = right.SubscribeAll(onRight.handle)
	require.NoError(t, err)

	// Both bridges subscribe asynchronously; wait until they are mounted.
	require.Eventually(t, func() bool {
		return left.Subscribers() == 2 && right.Subscribers() == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, left.Emit(&bus.SelectInstance{ID: "a"}))
	require.Eventually(t, func() bool {
		return len(onRight.types()) == 1
	}, time.Second, 5*time.Millisecond)

	onRight.mu.Lock()
	got := onRight.msgs[0]
	onRight.mu.Unlock()
	assert.Equal(t, "authoring", got.Origin)
	assert.Equal(t, "a", got.Payload.(*bus.SelectInstance).ID)

	require.NoError(t, right.Emit(&bus.ClickCanvas{}))
	require.Eventually(t, func() bool {
		return len(onLeft.types()) == 2
	}, time.Second, 5*time.Millisecond)

	// Give any echo a chance to show up before asserting there is none.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, []bus.Type{bus.TypeSelectInstance, bus.TypeClickCanvas}, onLeft.types())
	assert.Equal(t, []bus.Type{bus.TypeSelectInstance, bus.TypeClickCanvas}, onRight.types())
}

func TestBridge_OutboundFilter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := bus.NewBus()
	defer local.Close()
	lt, rt := memory.NewPipe()
	in, err := rt.Receive(ctx)
	require.NoError(t, err)

	br := bus.NewBridge(local, lt, bus.WithOutbound(bus.TypeTreeChanged))
	go func() { _ = br.Run(ctx) }()
	require.Eventually(t, func() bool { return local.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, local.Emit(&bus.HoverInstance{ID: "a"}))
	require.NoError(t, local.Emit(&bus.TreeChanged{Version: 1}))

	select {
	case data := <-in:
		m, err := bus.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, bus.TypeTreeChanged, m.Type)
		assert.Equal(t, br.Origin(), m.Origin)
	case <-time.After(time.Second):
		t.Fatal("nothing forwarded")
	}
}
