package services

import (
	"context"
	"sync/atomic"

	"microcredit/internal/core/domain"
)

type guardKey struct{ g *ReentrancyGuard }

// ReentrancyGuard rejects nested entry into the ledger while an entry point is
// in progress. The in-progress flag is set on entry and cleared by the release
// func on every exit path. Nested calls are recognised through the context
// handed to collaborators, so a callback re-entering the ledger fails fast
// instead of waiting on the ledger's entry lock.
type ReentrancyGuard struct {
	entered atomic.Bool
}

// Active reports whether ctx was derived from a guarded call of g.
func (g *ReentrancyGuard) Active(ctx context.Context) bool {
	return ctx.Value(guardKey{g}) != nil
}

// Enter marks the guard as in progress. The returned context must be used for
// everything done under the guard; release must be called exactly once.
func (g *ReentrancyGuard) Enter(ctx context.Context) (context.Context, func(), error) {
	if g.Active(ctx) || !g.entered.CompareAndSwap(false, true) {
		return ctx, func() {}, domain.ErrReentrant
	}
	return context.WithValue(ctx, guardKey{g}, true), func() { g.entered.Store(false) }, nil
}

// InProgress reports whether a guarded call is running.
func (g *ReentrancyGuard) InProgress() bool {
	return g.entered.Load()
}
