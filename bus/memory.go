package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/credshare/types"
)

// defaultMemoryQueue is the per-subscriber queue length of a Memory bus.
const defaultMemoryQueue = 256

// Memory is an in-process broadcast hub.
//
// Every peer of a simulated session shares one *Memory. Each subscriber owns
// a queue drained by its own goroutine, so one slow peer never delays
// another and per-sender order is preserved. A full queue drops the message,
// mirroring a peer that misses broadcasts while busy.
type Memory struct {
	queueLen    int
	subscribers *xsync.Map[uint64, *memorySub]
	nextID      atomic.Uint64
	closed      atomic.Bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

var _ types.Bus = (*Memory)(nil)

// NewMemory creates an in-process bus.
//
// Parameters:
//   - queueLen: Per-subscriber queue length (<= 0 uses 256)
func NewMemory(queueLen int) *Memory {
	if queueLen <= 0 {
		queueLen = defaultMemoryQueue
	}

	return &Memory{
		queueLen:    queueLen,
		subscribers: xsync.NewMap[uint64, *memorySub](),
	}
}

// Publish delivers msg to every current subscriber.
func (m *Memory) Publish(_ context.Context, msg types.Message) error {
	if m.closed.Load() {
		return types.ErrBusClosed
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	m.published.Add(1)
	m.subscribers.Range(func(_ uint64, sub *memorySub) bool {
		if !sub.offer(msg) {
			m.dropped.Add(1)
		}

		return true
	})

	return nil
}

// Subscribe registers handler.
func (m *Memory) Subscribe(handler func(types.Message)) (types.Subscription, error) {
	if m.closed.Load() {
		return nil, types.ErrBusClosed
	}

	id := m.nextID.Add(1)
	sub := &memorySub{
		queue: make(chan types.Message, m.queueLen),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		onEnd: func() { m.subscribers.Delete(id) },
	}
	m.subscribers.Store(id, sub)

	go sub.run(handler)

	return sub, nil
}

// Close stops every subscription and rejects further use.
func (m *Memory) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	m.subscribers.Range(func(_ uint64, sub *memorySub) bool {
		_ = sub.Unsubscribe()
		return true
	})

	return nil
}

// Published returns the number of accepted publishes.
func (m *Memory) Published() uint64 {
	return m.published.Load()
}

// Dropped returns the number of deliveries dropped on full queues.
func (m *Memory) Dropped() uint64 {
	return m.dropped.Load()
}

type memorySub struct {
	queue chan types.Message
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	onEnd func()
}

func (s *memorySub) offer(msg types.Message) bool {
	select {
	case <-s.stop:
		return true
	default:
	}

	select {
	case s.queue <- msg:
		return true
	default:
		return false
	}
}

func (s *memorySub) run(handler func(types.Message)) {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case msg := <-s.queue:
			handler(msg)
		}
	}
}

// Unsubscribe stops delivery and waits for an in-progress handler to return.
func (s *memorySub) Unsubscribe() error {
	s.once.Do(func() {
		close(s.stop)
		s.onEnd()
	})
	<-s.done

	return nil
}
