package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/norma"
)

func newTestBreaker(threshold int, window, cooldown time.Duration) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(threshold, window, cooldown)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.False(t, cb.Allow())
}

func TestCircuitBreakerClosesAfterCooldown(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute, 30*time.Second)

	cb.RecordFailure()
	assert.False(t, cb.Allow())

	*now = now.Add(31 * time.Second)
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerWindowPrunesOldFailures(t *testing.T) {
	cb, now := newTestBreaker(3, time.Minute, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	*now = now.Add(2 * time.Minute)
	cb.RecordFailure()
	assert.True(t, cb.Allow(), "failures outside the window do not count")
}

func TestCircuitBreakerSuccessResets(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow())
}

func TestNilCircuitBreakerAlwaysAllows(t *testing.T) {
	var cb *CircuitBreaker
	assert.True(t, cb.Allow())
	cb.RecordFailure()
	cb.RecordSuccess()
}

// flakyStorage fails every call until healed.
type flakyStorage struct {
	healed bool
	loads  int
	saves  int
}

func (s *flakyStorage) Load(context.Context, string) (norma.NormalizedRepresentation, error) {
	s.loads++
	if !s.healed {
		return nil, norma.NewStorageError("backend down", nil)
	}
	return norma.NormalizedRepresentation{"theme": "dark"}, nil
}

func (s *flakyStorage) Save(context.Context, string, norma.NormalizedRepresentation) error {
	s.saves++
	if !s.healed {
		return norma.NewStorageError("backend down", nil)
	}
	return nil
}

func TestBreakerStorageFailsFastWhileOpen(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStorage{}
	cb, now := newTestBreaker(2, time.Minute, 30*time.Second)
	store := NewBreakerStorage("postgres", inner, cb)

	_, err := store.Load(ctx, "profile")
	require.Error(t, err)
	require.Error(t, store.Save(ctx, "profile", norma.NormalizedRepresentation{}))
	assert.Equal(t, 1, inner.loads)
	assert.Equal(t, 1, inner.saves)

	// Breaker is open now: the backend is no longer touched.
	_, err = store.Load(ctx, "profile")
	require.Error(t, err)
	assert.True(t, norma.IsStorageError(err))
	require.Error(t, store.Save(ctx, "profile", norma.NormalizedRepresentation{}))
	assert.Equal(t, 1, inner.loads)
	assert.Equal(t, 1, inner.saves)

	// After the cooldown a healed backend serves again.
	inner.healed = true
	*now = now.Add(31 * time.Second)
	out, err := store.Load(ctx, "profile")
	require.NoError(t, err)
	assert.Equal(t, "dark", out["theme"])
	assert.True(t, cb.Allow())
}

func TestBreakerStoragePassesThroughCapabilities(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStorage()
	store := NewBreakerStorage("memory", inner, NewCircuitBreaker(3, time.Minute, time.Second))

	require.NoError(t, store.Save(ctx, "profile", norma.NormalizedRepresentation{"a": "b"}))
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"profile"}, keys)

	require.NoError(t, store.Delete(ctx, "profile"))
	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBreakerStorageWithoutCapabilities(t *testing.T) {
	ctx := context.Background()
	store := NewBreakerStorage("flaky", &flakyStorage{healed: true}, NewCircuitBreaker(3, time.Minute, time.Second))

	_, err := store.Keys(ctx)
	require.Error(t, err)
	require.Error(t, store.Delete(ctx, "profile"))
}
