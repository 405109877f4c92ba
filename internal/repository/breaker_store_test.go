package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPulse/internal/domain"
	"RiskPulse/internal/domain/models"
)

type flakyStore struct {
	*MemoryStore
	fail  atomic.Bool
	calls atomic.Int32
}

func (f *flakyStore) LoadSymbols(ctx context.Context) ([]models.SymbolBounds, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errors.New("dial tcp: connection refused")
	}
	return f.MemoryStore.LoadSymbols(ctx)
}

func TestBreakerStore_WrapsErrors(t *testing.T) {
	fs := &flakyStore{MemoryStore: NewMemoryStore()}
	fs.fail.Store(true)
	b := NewBreakerStore(fs, BreakerSettings{FailureThreshold: 5}, nil)

	_, err := b.LoadSymbols(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistenceUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBreakerStore_OpensAndFailsFast(t *testing.T) {
	fs := &flakyStore{MemoryStore: NewMemoryStore()}
	fs.fail.Store(true)
	b := NewBreakerStore(fs, BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.LoadSymbols(ctx)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.LoadSymbols(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistenceUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), fs.calls.Load())

	err = b.Health(ctx)
	assert.ErrorIs(t, err, domain.ErrPersistenceUnavailable)
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	b := NewBreakerStore(NewMemoryStore(), BreakerSettings{}, nil)
	ctx := context.Background()
	require.NoError(t, b.UpsertSymbol(ctx, btcBounds()))
	id, err := b.AppendOutcome(ctx, models.Outcome{Symbol: "BTC", Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	syms, err := b.LoadSymbols(ctx)
	require.NoError(t, err)
	assert.Len(t, syms, 1)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerStore_CanceledDoesNotTrip(t *testing.T) {
	fs := &cancelStore{MemoryStore: NewMemoryStore()}
	b := NewBreakerStore(fs, BreakerSettings{FailureThreshold: 1}, nil)
	_, err := b.LoadSymbols(context.Background())
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

type cancelStore struct{ *MemoryStore }

func (cancelStore) LoadSymbols(context.Context) ([]models.SymbolBounds, error) {
	return nil, context.Canceled
}
