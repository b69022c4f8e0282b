// Package ledger mutates a client's point balance and tier level. It is
// the only writer of that pair: balance and tier are recomputed and
// stored together, so recomputing the tier from the stored balance
// always yields the stored label.
package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
	"github.com/pahanaedu/bookstore-billing/internal/model"
	"github.com/pahanaedu/bookstore-billing/internal/policy"
	"github.com/pahanaedu/bookstore-billing/internal/store"
)

var ErrPointsIncorrect = errors.New("points value is incorrect")

type Ledger interface {
	// Credit adds points and re-derives the tier, returning the
	// updated client.
	Credit(ctx context.Context, clientID int, points int) (model.Client, error)
	// Debit removes points, clamped at zero, and re-derives the tier.
	// The clamp means a debit is not always the exact inverse of an
	// earlier credit if other mutations happened in between.
	Debit(ctx context.Context, clientID int, points int) (model.Client, error)
}

type ledger struct {
	store    store.Store
	policies policy.PolicyStore

	mu          sync.Mutex
	clientLocks map[int]*sync.Mutex
}

func NewLedger(store store.Store, policies policy.PolicyStore) Ledger {
	return &ledger{
		store:       store,
		policies:    policies,
		clientLocks: make(map[int]*sync.Mutex),
	}
}

// clientLock serializes read-modify-write per client; concurrent
// mutations of the same balance would otherwise lose updates.
func (l *ledger) clientLock(clientID int) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.clientLocks[clientID]
	if !ok {
		lock = &sync.Mutex{}
		l.clientLocks[clientID] = lock
	}
	return lock
}

func (l *ledger) Credit(ctx context.Context, clientID int, points int) (model.Client, error) {
	return l.apply(ctx, clientID, points, false)
}

func (l *ledger) Debit(ctx context.Context, clientID int, points int) (model.Client, error) {
	return l.apply(ctx, clientID, points, true)
}

func (l *ledger) apply(ctx context.Context, clientID int, points int, negate bool) (model.Client, error) {
	if points <= 0 {
		return model.Client{}, ErrPointsIncorrect
	}

	lock := l.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	client, err := l.store.ClientByID(ctx, clientID)
	if err != nil {
		return model.Client{}, err
	}

	newBalance := client.PointBalance + points
	if negate {
		newBalance = client.PointBalance - points
		if newBalance < 0 {
			newBalance = 0
		}
	}

	// tier is pinned to the policy active at mutation time
	newTier, _ := loyalty.Classify(l.policies.GetActive(), newBalance)

	if err := l.store.ClientUpdateLoyalty(ctx, clientID, newBalance, newTier); err != nil {
		return model.Client{}, err
	}

	client.PointBalance = newBalance
	client.TierLevel = newTier
	return client, nil
}
