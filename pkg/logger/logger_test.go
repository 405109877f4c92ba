package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches []LogBatch
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.(LogBatch))
	return nil
}

func TestLogger_LevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Config{Level: "info", Writer: &buf, Service: "riskpulse"})
	require.NoError(t, err)

	l.Debug("hidden")
	l.With(String("symbol", "BTC")).Warn("stale price", Float64("risk", 0.42), Error(errors.New("boom")))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &ev))
	assert.Equal(t, "warn", ev["level"])
	assert.Equal(t, "stale price", ev["message"])
	assert.Equal(t, "riskpulse", ev["service"])
	assert.Equal(t, "BTC", ev["symbol"])
	assert.Equal(t, 0.42, ev["risk"])
	assert.Equal(t, "boom", ev["error"])
	assert.Contains(t, ev["caller"], "logger_test.go")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	require.Error(t, err)
}

func TestCollector_DeduplicatesAndFlushes(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "logs", Service: "riskpulse", Publisher: pub})
	child := l.With(String("component", "writer"))

	for i := 0; i < 3; i++ {
		child.Error("persist failed", String("symbol", "BTC"))
	}
	child.Error("persist failed", String("symbol", "ETH"))
	child.Info("not collected")
	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "logs", pub.topic)
	require.Len(t, pub.batches, 1)
	entries := pub.batches[0].Entries
	require.Len(t, entries, 2)
	counts := map[interface{}]int{}
	for _, e := range entries {
		assert.Equal(t, "writer", e.Fields["component"])
		assert.Contains(t, e.Caller, "logger_test.go")
		counts[e.Fields["symbol"]] = e.Count
	}
	assert.Equal(t, map[interface{}]int{"BTC": 3, "ETH": 1}, counts)
}

func TestCollector_CountThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0].Entries, 2)
}
