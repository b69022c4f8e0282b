package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
	"github.com/pahanaedu/bookstore-billing/internal/store"
)

type fakeStore struct {
	store.Store

	active      *loyalty.Policy
	history     []loyalty.Policy
	nextID      int
	activateErr error
}

func (f *fakeStore) PolicyActive(context.Context) (loyalty.Policy, error) {
	if f.active == nil {
		return loyalty.Policy{}, store.ErrNoRows
	}
	return *f.active, nil
}

func (f *fakeStore) PolicyActivate(_ context.Context, p loyalty.Policy) (int, error) {
	if f.activateErr != nil {
		return 0, f.activateErr
	}
	f.nextID++
	p.ID = f.nextID
	p.Active = true
	f.active = &p
	f.history = append(f.history, p)
	return p.ID, nil
}

func (f *fakeStore) PolicyList(context.Context) ([]loyalty.Policy, error) {
	out := make([]loyalty.Policy, len(f.history))
	copy(out, f.history)
	return out, nil
}

func TestNewPolicyStoreDefaultFallback(t *testing.T) {
	ps, err := NewPolicyStore(context.Background(), &fakeStore{})
	require.NoError(t, err)

	active := ps.GetActive()
	assert.Equal(t, loyalty.DefaultPolicy().PointsPerHundred, active.PointsPerHundred)
	assert.Equal(t, loyalty.TierGold, active.Tiers[1].Name)
	assert.Equal(t, 500, active.Tiers[1].MinPoints)
}

func TestNewPolicyStoreLoadsPersisted(t *testing.T) {
	persisted := loyalty.DefaultPolicy()
	persisted.ID = 42
	persisted.PointsPerHundred = 2

	ps, err := NewPolicyStore(context.Background(), &fakeStore{active: &persisted})
	require.NoError(t, err)
	assert.Equal(t, 42, ps.GetActive().ID)
	assert.Equal(t, 2, ps.GetActive().PointsPerHundred)
}

func TestActivateSwapsSnapshot(t *testing.T) {
	st := &fakeStore{}
	ps, err := NewPolicyStore(context.Background(), st)
	require.NoError(t, err)

	candidate := loyalty.DefaultPolicy()
	candidate.PointsPerHundred = 3
	candidate.Tiers[2].DiscountPercent = decimal.NewFromInt(15)

	activated, err := ps.Activate(context.Background(), candidate)
	require.NoError(t, err)
	assert.Equal(t, 1, activated.ID)
	assert.True(t, activated.Active)

	assert.Equal(t, 3, ps.GetActive().PointsPerHundred)
	assert.Equal(t, "15", ps.GetActive().Tiers[2].DiscountPercent.String())
	require.NotNil(t, st.active, "activation must be durable before it is published")
}

func TestActivateRejectsInvalidPolicy(t *testing.T) {
	ps, err := NewPolicyStore(context.Background(), &fakeStore{})
	require.NoError(t, err)
	before := ps.GetActive()

	candidate := loyalty.DefaultPolicy()
	candidate.Tiers[1].MinPoints = 0 // duplicate threshold

	_, err = ps.Activate(context.Background(), candidate)
	require.ErrorIs(t, err, loyalty.ErrInvalidPolicy)
	assert.Equal(t, before, ps.GetActive(), "a rejected candidate leaves the active policy alone")
}

func TestActivateStoreFailureKeepsActive(t *testing.T) {
	st := &fakeStore{activateErr: errors.New("connection reset")}
	ps, err := NewPolicyStore(context.Background(), st)
	require.NoError(t, err)
	before := ps.GetActive()

	_, err = ps.Activate(context.Background(), loyalty.DefaultPolicy())
	require.Error(t, err)
	assert.Equal(t, before, ps.GetActive())
}

func TestHistory(t *testing.T) {
	st := &fakeStore{}
	ps, err := NewPolicyStore(context.Background(), st)
	require.NoError(t, err)

	for rate := 1; rate <= 3; rate++ {
		candidate := loyalty.DefaultPolicy()
		candidate.PointsPerHundred = rate
		_, err := ps.Activate(context.Background(), candidate)
		require.NoError(t, err)
	}

	history, err := ps.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[2].PointsPerHundred)
}
