package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"custody-vault/pkg/apperror"
)

type guardToken struct{ g *ReentrancyGuard }

// ReentrancyGuard is the instance-scoped lock around ledger mutations.
//
// Entering stamps the returned context with a call-chain token. A call that
// arrives carrying that token is nested inside an in-flight operation (for
// example a transfer callback) and is rejected with Reentrant, whatever
// account it names. Calls without the token are independent callers and
// wait for the slot, bounded by ctx and the configured wait.
//
// While the holder is inside its external interaction (see Interact) every
// Enter fails with Reentrant, token or not: a callback from the external
// system arrives on a fresh context and must not queue behind the call that
// is waiting for it.
type ReentrancyGuard struct {
	slot        chan struct{}
	wait        time.Duration
	interacting atomic.Bool
}

// NewReentrancyGuard creates a guard. wait <= 0 means wait until ctx ends.
func NewReentrancyGuard(wait time.Duration) *ReentrancyGuard {
	return &ReentrancyGuard{
		slot: make(chan struct{}, 1),
		wait: wait,
	}
}

// Enter acquires the guard. The returned release func is idempotent and
// must be called on every path.
func (g *ReentrancyGuard) Enter(ctx context.Context) (context.Context, func(), error) {
	if g.Held(ctx) || g.interacting.Load() {
		return ctx, func() {}, apperror.ErrReentrant()
	}

	waitCtx := ctx
	if g.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.wait)
		defer cancel()
	}

	select {
	case g.slot <- struct{}{}:
	case <-waitCtx.Done():
		return ctx, func() {}, apperror.ErrLockTimeout(waitCtx.Err())
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.interacting.Store(false)
			<-g.slot
		})
	}
	return context.WithValue(ctx, guardToken{g}, true), release, nil
}

// Held reports whether ctx belongs to a call chain that holds this guard.
func (g *ReentrancyGuard) Held(ctx context.Context) bool {
	held, _ := ctx.Value(guardToken{g}).(bool)
	return held
}

// Interact marks the start of the holder's external interaction. done ends
// it and must run before the guard is released; release also ends it.
func (g *ReentrancyGuard) Interact() (done func()) {
	g.interacting.Store(true)
	return func() { g.interacting.Store(false) }
}
