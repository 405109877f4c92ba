package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	NoopMetrics
	mu     sync.Mutex
	errors map[string]int
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[kind]++
}

func (m *countingMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func TestWriter_DrainsOnClose(t *testing.T) {
	w := NewWriter(nil, nil, WithWorkers(3), WithQueueSize(16))
	w.Start()
	var done atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, w.Submit(WriteJob{Kind: "t", Fn: func(context.Context) error {
			done.Add(1)
			return nil
		}}))
	}
	require.NoError(t, w.Close(context.Background()))
	assert.Equal(t, int32(10), done.Load())
	assert.False(t, w.Submit(WriteJob{Kind: "t", Fn: func(context.Context) error { return nil }}))
}

func TestWriter_DropsWhenFull(t *testing.T) {
	m := &countingMetrics{}
	w := NewWriter(m, nil, WithQueueSize(2))
	noop := WriteJob{Kind: "t", Fn: func(context.Context) error { return nil }}
	assert.True(t, w.Submit(noop))
	assert.True(t, w.Submit(noop))
	assert.False(t, w.Submit(noop))
	assert.Equal(t, 1, m.count("writer_drop"))
	assert.Equal(t, 2, w.Depth())
	require.NoError(t, w.Close(context.Background()))
	assert.Equal(t, 0, w.Depth())
}

func TestWriter_CountsFailuresAndTimesOut(t *testing.T) {
	m := &countingMetrics{}
	w := NewWriter(m, nil, WithWriteTimeout(20*time.Millisecond))
	w.Start()
	w.Submit(WriteJob{Kind: "archive", Fn: func(context.Context) error { return errors.New("boom") }})
	w.Submit(WriteJob{Kind: "slow", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	require.NoError(t, w.Close(context.Background()))
	assert.Equal(t, 1, m.count("writer_archive"))
	assert.Equal(t, 1, m.count("writer_slow"))
}

func TestWriter_SameKeyKeepsOrder(t *testing.T) {
	w := NewWriter(nil, nil, WithWorkers(4), WithQueueSize(256))
	w.Start()
	var mu sync.Mutex
	var got []int
	for i := 0; i < 40; i++ {
		i := i
		require.True(t, w.Submit(WriteJob{Kind: "ladder", Key: "BTC", Fn: func(context.Context) error {
			if i == 0 {
				time.Sleep(50 * time.Millisecond)
			}
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}}))
	}
	require.NoError(t, w.Close(context.Background()))
	require.Len(t, got, 40)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	var inside atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("BTC")
			assert.Equal(t, int32(1), inside.Add(1))
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
