package claimstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/credshare/types"
)

// watchers fans claim events out to in-process handlers.
//
// notify calls handlers synchronously; callers serialize notify with their
// writes so every handler observes changes in commit order. Handlers must
// not call back into the store.
type watchers struct {
	m    *xsync.Map[uint64, func(types.ClaimEvent)]
	next atomic.Uint64
}

func newWatchers() *watchers {
	return &watchers{m: xsync.NewMap[uint64, func(types.ClaimEvent)]()}
}

func (w *watchers) add(ctx context.Context, handler func(types.ClaimEvent)) types.Subscription {
	id := w.next.Add(1)
	w.m.Store(id, handler)

	sub := &funcSubscription{}
	stop := context.AfterFunc(ctx, func() { w.m.Delete(id) })
	sub.fn = func() error {
		stop()
		w.m.Delete(id)

		return nil
	}

	return sub
}

func (w *watchers) notify(ev types.ClaimEvent) {
	w.m.Range(func(_ uint64, handler func(types.ClaimEvent)) bool {
		handler(ev)
		return true
	})
}

func (w *watchers) clear() {
	w.m.Clear()
}

// funcSubscription runs fn once on the first Unsubscribe.
type funcSubscription struct {
	once sync.Once
	fn   func() error
	err  error
}

func (s *funcSubscription) Unsubscribe() error {
	s.once.Do(func() { s.err = s.fn() })
	return s.err
}
