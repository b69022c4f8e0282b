// Package policy owns the single active loyalty policy. Readers get an
// immutable snapshot; activation swaps the snapshot only after the new
// policy is validated and durably stored.
package policy

import (
	"context"
	"errors"
	"sync"

	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
	"github.com/pahanaedu/bookstore-billing/internal/store"
)

type PolicyStore interface {
	// GetActive never returns a zero policy; without any configured
	// policy it falls back to loyalty.DefaultPolicy.
	GetActive() loyalty.Policy
	Activate(ctx context.Context, policy loyalty.Policy) (loyalty.Policy, error)
	History(ctx context.Context) ([]loyalty.Policy, error)
}

type policyStore struct {
	store store.Store

	mu     sync.RWMutex
	active loyalty.Policy
}

// NewPolicyStore loads the active policy from storage, or installs the
// documented default when none has ever been configured.
func NewPolicyStore(ctx context.Context, st store.Store) (PolicyStore, error) {
	active, err := st.PolicyActive(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoRows) {
			return nil, err
		}
		active = loyalty.DefaultPolicy()
	}
	return &policyStore{store: st, active: active}, nil
}

func (ps *policyStore) GetActive() loyalty.Policy {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.active
}

// Activate validates the candidate, persists it as the one active row
// and only then publishes it to readers. On any failure the previous
// policy stays active.
func (ps *policyStore) Activate(ctx context.Context, candidate loyalty.Policy) (loyalty.Policy, error) {
	if err := candidate.Validate(); err != nil {
		return loyalty.Policy{}, err
	}

	id, err := ps.store.PolicyActivate(ctx, candidate)
	if err != nil {
		return loyalty.Policy{}, err
	}
	candidate.ID = id
	candidate.Active = true

	ps.mu.Lock()
	ps.active = candidate
	ps.mu.Unlock()

	return candidate, nil
}

func (ps *policyStore) History(ctx context.Context) ([]loyalty.Policy, error) {
	return ps.store.PolicyList(ctx)
}
