package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
	"github.com/pahanaedu/bookstore-billing/internal/model"
	"github.com/pahanaedu/bookstore-billing/internal/policy"
	"github.com/pahanaedu/bookstore-billing/internal/store"
)

// fakeStore keeps client loyalty state in memory; everything else is
// inherited from the embedded nil interface and must not be called.
type fakeStore struct {
	store.Store
	mu      sync.Mutex
	clients map[int]model.Client
	failing bool
}

func newFakeStore(clients ...model.Client) *fakeStore {
	f := &fakeStore{clients: make(map[int]model.Client)}
	for _, client := range clients {
		f.clients[client.ID] = client
	}
	return f
}

func (f *fakeStore) ClientByID(_ context.Context, id int) (model.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	client, ok := f.clients[id]
	if !ok {
		return model.Client{}, store.ErrNoRows
	}
	return client, nil
}

func (f *fakeStore) ClientUpdateLoyalty(_ context.Context, id int, pointBalance int, tierLevel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("connection reset")
	}
	client, ok := f.clients[id]
	if !ok {
		return store.ErrNoRows
	}
	client.PointBalance = pointBalance
	client.TierLevel = tierLevel
	f.clients[id] = client
	return nil
}

func (f *fakeStore) PolicyActive(context.Context) (loyalty.Policy, error) {
	return loyalty.Policy{}, store.ErrNoRows
}

func newTestLedger(t *testing.T, st *fakeStore) Ledger {
	t.Helper()
	policies, err := policy.NewPolicyStore(context.Background(), st)
	require.NoError(t, err)
	return NewLedger(st, policies)
}

func TestCreditUpdatesBalanceAndTier(t *testing.T) {
	st := newFakeStore(model.Client{ID: 1, PointBalance: 600, TierLevel: loyalty.TierGold})
	l := newTestLedger(t, st)

	client, err := l.Credit(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.Equal(t, 609, client.PointBalance)
	assert.Equal(t, loyalty.TierGold, client.TierLevel)
}

func TestCreditCrossesTierBoundary(t *testing.T) {
	st := newFakeStore(model.Client{ID: 1, PointBalance: 1995, TierLevel: loyalty.TierGold})
	l := newTestLedger(t, st)

	client, err := l.Credit(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2005, client.PointBalance)
	assert.Equal(t, loyalty.TierPlatinum, client.TierLevel)
}

func TestDebitClampsAtZero(t *testing.T) {
	st := newFakeStore(model.Client{ID: 1, PointBalance: 5, TierLevel: loyalty.TierSilver})
	l := newTestLedger(t, st)

	client, err := l.Debit(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.Equal(t, 0, client.PointBalance)
	assert.Equal(t, loyalty.TierSilver, client.TierLevel)
}

func TestDebitDropsTier(t *testing.T) {
	st := newFakeStore(model.Client{ID: 1, PointBalance: 2005, TierLevel: loyalty.TierPlatinum})
	l := newTestLedger(t, st)

	client, err := l.Debit(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1995, client.PointBalance)
	assert.Equal(t, loyalty.TierGold, client.TierLevel)
}

// With no mutation in between, a debit of n undoes a credit of n.
func TestCreditDebitRoundTrip(t *testing.T) {
	st := newFakeStore(model.Client{ID: 1, PointBalance: 1995, TierLevel: loyalty.TierGold})
	l := newTestLedger(t, st)
	ctx := context.Background()

	_, err := l.Credit(ctx, 1, 10)
	require.NoError(t, err)
	client, err := l.Debit(ctx, 1, 10)
	require.NoError(t, err)

	assert.Equal(t, 1995, client.PointBalance)
	assert.Equal(t, loyalty.TierGold, client.TierLevel)
}

func TestRejectsNonPositivePoints(t *testing.T) {
	st := newFakeStore(model.Client{ID: 1, TierLevel: loyalty.TierSilver})
	l := newTestLedger(t, st)
	ctx := context.Background()

	_, err := l.Credit(ctx, 1, 0)
	require.ErrorIs(t, err, ErrPointsIncorrect)
	_, err = l.Debit(ctx, 1, -5)
	require.ErrorIs(t, err, ErrPointsIncorrect)
}

func TestUnknownClient(t *testing.T) {
	l := newTestLedger(t, newFakeStore())

	_, err := l.Credit(context.Background(), 42, 10)
	require.ErrorIs(t, err, store.ErrNoRows)
}

// Stored tier always matches a fresh classification of the stored
// balance, whatever sequence of mutations ran.
func TestTierBalanceConsistency(t *testing.T) {
	st := newFakeStore(model.Client{ID: 1, PointBalance: 0, TierLevel: loyalty.TierSilver})
	l := newTestLedger(t, st)
	ctx := context.Background()

	ops := []struct {
		debit  bool
		points int
	}{
		{false, 300}, {false, 250}, {true, 40}, {false, 1600}, {true, 2000}, {false, 7},
	}

	for _, op := range ops {
		var err error
		if op.debit {
			_, err = l.Debit(ctx, 1, op.points)
		} else {
			_, err = l.Credit(ctx, 1, op.points)
		}
		require.NoError(t, err)

		stored, err := st.ClientByID(ctx, 1)
		require.NoError(t, err)
		require.GreaterOrEqual(t, stored.PointBalance, 0)
		wantTier, _ := loyalty.Classify(loyalty.DefaultPolicy(), stored.PointBalance)
		require.Equal(t, wantTier, stored.TierLevel)
	}
}

// Concurrent credits to one client must not lose updates.
func TestConcurrentCredits(t *testing.T) {
	st := newFakeStore(model.Client{ID: 1, PointBalance: 0, TierLevel: loyalty.TierSilver})
	l := newTestLedger(t, st)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Credit(ctx, 1, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	client, err := st.ClientByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, workers*5, client.PointBalance)
}

func TestUpdateFailureLeavesClientUnchanged(t *testing.T) {
	st := newFakeStore(model.Client{ID: 1, PointBalance: 600, TierLevel: loyalty.TierGold})
	st.failing = true
	l := newTestLedger(t, st)

	_, err := l.Credit(context.Background(), 1, 9)
	require.Error(t, err)

	st.failing = false
	client, err := st.ClientByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 600, client.PointBalance)
	assert.Equal(t, loyalty.TierGold, client.TierLevel)
}
