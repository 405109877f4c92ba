package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RiskPulse/internal/domain"
	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
)

// KafkaTicksHandler turns ticks into recorded outcomes and publishes the
// alerts they raise.
type KafkaTicksHandler struct {
	topic   string
	engine  *Engine
	sink    domrepo.AlertSink
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewKafkaTicksHandler(topic string, engine *Engine, sink domrepo.AlertSink, metrics domrepo.Metrics, l *applogger.Logger) *KafkaTicksHandler {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaTicksHandler{topic: topic, engine: engine, sink: sink, metrics: metrics, l: l}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m models.Tick
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode tick: %w", err)
	}
	return h.Process(ctx, m)
}

// Process records one tick. Ticks for unknown symbols or with invalid prices
// are skipped; only persistence failures are returned so they can be retried.
func (h *KafkaTicksHandler) Process(ctx context.Context, m models.Tick) error {
	ts := m.Time()
	if m.T == 0 {
		ts = time.Now().UTC()
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())

	o, err := h.engine.RecordOutcome(ctx, m.Symbol, m.C, ts)
	switch {
	case errors.Is(err, domain.ErrSymbolNotFound), errors.Is(err, domain.ErrInvalidPrice):
		h.metrics.RecordError("tick_skipped")
		h.l.Debug("tick skipped", applogger.String("symbol", m.Symbol), applogger.Error(err))
		return nil
	case err != nil:
		h.metrics.RecordError("tick_record")
		return err
	}

	alerts, err := h.engine.GetAlerts(ctx, o.Symbol, o.ActualPrice)
	if err != nil {
		return err
	}
	if len(alerts) == 0 || h.sink == nil {
		return nil
	}
	if err := h.sink.Publish(ctx, alerts); err != nil {
		h.metrics.RecordError("alert_publish")
		return fmt.Errorf("publish alerts %s: %w", o.Symbol, err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
