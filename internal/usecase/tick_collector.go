package usecase

import (
	"context"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	"RiskPulse/internal/service/ratelimit"
	applogger "RiskPulse/pkg/logger"
)

// TickSource yields live ticks.
type TickSource interface {
	Ticks() <-chan models.Tick
}

// TickSink receives sampled ticks: the Kafka ticks topic, or the ticks handler directly.
type TickSink interface {
	PublishTick(ctx context.Context, t models.Tick) error
}

// TickSinkFunc adapts a function to TickSink.
type TickSinkFunc func(ctx context.Context, t models.Tick) error

func (f TickSinkFunc) PublishTick(ctx context.Context, t models.Tick) error { return f(ctx, t) }

// TickCollector samples ticks per symbol and forwards them to a sink.
type TickCollector struct {
	source  TickSource
	sink    TickSink
	sampler *ratelimit.Limiter
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewTickCollector(source TickSource, sink TickSink, sampler *ratelimit.Limiter, metrics domrepo.Metrics, l *applogger.Logger) *TickCollector {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &TickCollector{source: source, sink: sink, sampler: sampler, metrics: metrics, l: l}
}

// Run forwards ticks until ctx is done or the source closes.
func (c *TickCollector) Run(ctx context.Context) {
	ticks := c.source.Ticks()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ticks:
			if !ok {
				return
			}
			c.forward(ctx, t)
		}
	}
}

func (c *TickCollector) forward(ctx context.Context, t models.Tick) {
	if t.Symbol == "" || t.C <= 0 {
		c.metrics.RecordError("tick_validate")
		return
	}
	if c.sampler != nil && !c.sampler.Allow(t.Symbol) {
		return
	}
	if err := c.sink.PublishTick(ctx, t); err != nil {
		c.metrics.RecordError("tick_forward")
		c.l.Warn("tick not forwarded", applogger.String("symbol", t.Symbol), applogger.Error(err))
	}
}
