package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/repository"
	"RiskPulse/internal/service/ratelimit"
)

func tickBytes(t *testing.T, tick models.Tick) []byte {
	t.Helper()
	b, err := json.Marshal(tick)
	require.NoError(t, err)
	return b
}

func TestKafkaTicksHandler_RecordsAndAlerts(t *testing.T) {
	f := newFixture(t)
	sink := &repository.RecordingAlertSink{}
	h := NewKafkaTicksHandler("risk.ticks", f.e, sink, nil, nil)
	ctx := context.Background()
	assert.Equal(t, "risk.ticks", h.Topic())

	ms := f.clk.Now().Add(-time.Minute).UnixMilli()
	require.NoError(t, h.Handle(ctx, tickBytes(t, models.Tick{Symbol: "BTC", T: ms, C: 30001, V: 1})))

	outs, err := f.store.ListOutcomes(ctx, "BTC", f.clk.Now().Add(-time.Hour), f.clk.Now())
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, time.UnixMilli(ms).UTC(), outs[0].Timestamp)

	alerts := sink.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertExtremeLow, alerts[0].Type)
}

func TestKafkaTicksHandler_SkipsUnknownAndInvalid(t *testing.T) {
	f := newFixture(t)
	h := NewKafkaTicksHandler("risk.ticks", f.e, nil, nil, nil)
	ctx := context.Background()

	assert.NoError(t, h.Handle(ctx, tickBytes(t, models.Tick{Symbol: "FAKE", T: 1700000000, C: 1})))
	assert.NoError(t, h.Handle(ctx, tickBytes(t, models.Tick{Symbol: "BTC", T: 1700000000, C: -1})))
	assert.Error(t, h.Handle(ctx, []byte("{")))
}

func TestKafkaTicksHandler_RetriesPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.store.down.Store(true)
	h := NewKafkaTicksHandler("risk.ticks", f.e, nil, nil, nil)
	err := h.Process(context.Background(), models.Tick{Symbol: "BTC", T: 1700000000, C: 94000})
	assert.Error(t, err)
}

type sliceSource struct{ ch chan models.Tick }

func (s sliceSource) Ticks() <-chan models.Tick { return s.ch }

func TestTickCollector_SamplesPerSymbol(t *testing.T) {
	src := sliceSource{ch: make(chan models.Tick, 8)}
	var (
		mu  sync.Mutex
		got []models.Tick
	)
	sink := TickSinkFunc(func(_ context.Context, t models.Tick) error {
		mu.Lock()
		got = append(got, t)
		mu.Unlock()
		if t.Symbol == "ERR" {
			return errors.New("broker down")
		}
		return nil
	})
	c := NewTickCollector(src, sink, ratelimit.Every(time.Hour, 1), nil, nil)

	src.ch <- models.Tick{Symbol: "BTC", C: 1}
	src.ch <- models.Tick{Symbol: "BTC", C: 2}
	src.ch <- models.Tick{Symbol: "ETH", C: 3}
	src.ch <- models.Tick{Symbol: "", C: 3}
	src.ch <- models.Tick{Symbol: "ERR", C: 4}
	close(src.ch)
	c.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, 1.0, got[0].C)
	assert.Equal(t, "ETH", got[1].Symbol)
}
