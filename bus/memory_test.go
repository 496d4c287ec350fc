package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/credshare/types"
)

type collector struct {
	mu   sync.Mutex
	msgs []types.Message
}

func (c *collector) handle(msg types.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) snapshot() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]types.Message(nil), c.msgs...)
}

func TestMemory_Broadcast(t *testing.T) {
	b := NewMemory(0)
	defer func() { _ = b.Close() }()

	var a, c collector
	_, err := b.Subscribe(a.handle)
	require.NoError(t, err)
	_, err = b.Subscribe(c.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(t.Context(), types.NewLeaderRequest("peer-1", time.Now())))

	require.Eventually(t, func() bool {
		return len(a.snapshot()) == 1 && len(c.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	require.EqualValues(t, 1, b.Published())
}

func TestMemory_PerSenderOrder(t *testing.T) {
	b := NewMemory(1024)
	defer func() { _ = b.Close() }()

	var got collector
	_, err := b.Subscribe(got.handle)
	require.NoError(t, err)

	base := time.UnixMilli(1_000)
	for i := range 500 {
		require.NoError(t, b.Publish(t.Context(), types.NewLeaderRequest("peer-1", base.Add(time.Duration(i)*time.Millisecond))))
	}

	require.Eventually(t, func() bool { return len(got.snapshot()) == 500 }, 2*time.Second, 5*time.Millisecond)
	for i, msg := range got.snapshot() {
		require.Equal(t, base.UnixMilli()+int64(i), msg.Timestamp)
	}
}

func TestMemory_NoSubscribersIsNotAnError(t *testing.T) {
	b := NewMemory(0)
	require.NoError(t, b.Publish(t.Context(), types.NewLogout("peer-1", time.Now())))
}

func TestMemory_RejectsInvalid(t *testing.T) {
	b := NewMemory(0)
	require.ErrorIs(t, b.Publish(t.Context(), types.Message{SenderID: "x"}), types.ErrUnknownKind)
}

func TestMemory_FullQueueDrops(t *testing.T) {
	b := NewMemory(1)
	defer func() { _ = b.Close() }()

	block := make(chan struct{})
	_, err := b.Subscribe(func(types.Message) { <-block })
	require.NoError(t, err)

	for range 10 {
		require.NoError(t, b.Publish(t.Context(), types.NewLeaderRequest("peer-1", time.Now())))
	}
	close(block)

	require.Positive(t, b.Dropped())
}

func TestMemory_UnsubscribeAndClose(t *testing.T) {
	b := NewMemory(0)

	var got collector
	sub, err := b.Subscribe(got.handle)
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())

	require.NoError(t, b.Publish(t.Context(), types.NewLeaderRequest("peer-1", time.Now())))
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, got.snapshot())

	require.NoError(t, b.Close())
	require.ErrorIs(t, b.Publish(t.Context(), types.NewLeaderRequest("peer-1", time.Now())), types.ErrBusClosed)
	_, err = b.Subscribe(got.handle)
	require.ErrorIs(t, err, types.ErrBusClosed)
}
