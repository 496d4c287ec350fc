package hooks

import (
	"context"
	"sync"

	"github.com/arloliu/credshare/types"
)

// Runner dispatches hooks on a single background worker so callers never
// block on user code. Hooks run one at a time in the order they were
// queued. Hook errors are logged and otherwise ignored.
type Runner struct {
	hooks  types.Hooks
	logger types.Logger

	mu      sync.Mutex
	queue   []func()
	started bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewRunner creates a Runner for h. Nil callbacks are skipped.
func NewRunner(h *types.Hooks, logger types.Logger) *Runner {
	return &Runner{
		hooks:  Fill(h),
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// RoleChanged queues OnRoleChanged.
func (r *Runner) RoleChanged(ctx context.Context, from, to types.Role) {
	r.enqueue(func() {
		if err := r.hooks.OnRoleChanged(ctx, from, to); err != nil {
			r.logger.Error("OnRoleChanged hook failed", "from", from, "to", to, "error", err)
		}
	})
}

// CredentialChanged queues OnCredentialChanged.
func (r *Runner) CredentialChanged(ctx context.Context, cred types.Credential) {
	r.enqueue(func() {
		if err := r.hooks.OnCredentialChanged(ctx, cred); err != nil {
			r.logger.Error("OnCredentialChanged hook failed", "error", err)
		}
	})
}

// Error queues OnError.
func (r *Runner) Error(ctx context.Context, hookErr error) {
	r.enqueue(func() {
		if err := r.hooks.OnError(ctx, hookErr); err != nil {
			r.logger.Error("OnError hook failed", "error", err, "original_error", hookErr)
		}
	})
}

// Close stops accepting hooks and waits for the queued ones to finish or
// for ctx to end. Hooks queued after Close are dropped.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	started := r.started
	r.mu.Unlock()

	if !started {
		return nil
	}
	r.signal()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) enqueue(fn func()) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, fn)
	if !r.started {
		r.started = true
		go r.work()
	}
	r.mu.Unlock()

	r.signal()
}

func (r *Runner) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) work() {
	defer close(r.done)

	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		closed := r.closed
		r.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-r.wake
	}
}
