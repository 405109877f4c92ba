package repository

import (
	"context"
	"sync"

	"RiskPulse/internal/domain/models"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
)

// batchPublisher is the subset of *pkgkafka.Producer used by the sink.
type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaAlertSink publishes alerts keyed by symbol so one symbol's alerts stay ordered.
type KafkaAlertSink struct {
	producer batchPublisher
	topic    string
}

// NewKafkaAlertSink creates an alert sink on top of a Kafka producer.
func NewKafkaAlertSink(producer *pkgkafka.Producer, topic string) *KafkaAlertSink {
	return &KafkaAlertSink{producer: producer, topic: topic}
}

func (p *KafkaAlertSink) Publish(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(alerts))
	for i, a := range alerts {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(a.Symbol),
			Value: a,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaAlertSink) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// LogAlertSink writes alerts to the structured log. It is used when Kafka is disabled.
type LogAlertSink struct {
	l *applogger.Logger
}

func NewLogAlertSink(l *applogger.Logger) *LogAlertSink {
	if l == nil {
		l = applogger.Nop()
	}
	return &LogAlertSink{l: l}
}

func (s *LogAlertSink) Publish(_ context.Context, alerts []models.Alert) error {
	for _, a := range alerts {
		s.l.Info("risk alert",
			applogger.String("id", a.ID),
			applogger.String("symbol", a.Symbol),
			applogger.String("type", string(a.Type)),
			applogger.String("severity", string(a.Severity)),
			applogger.Float64("risk", a.RiskValue),
			applogger.Float64("price", a.Price),
		)
	}
	return nil
}

// RecordingAlertSink keeps published alerts in memory.
type RecordingAlertSink struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (s *RecordingAlertSink) Publish(_ context.Context, alerts []models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alerts...)
	return nil
}

// Alerts returns a copy of everything published so far.
func (s *RecordingAlertSink) Alerts() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Alert(nil), s.alerts...)
}

// KafkaTickPublisher writes sampled ticks to the ticks topic.
type KafkaTickPublisher struct {
	producer batchPublisher
	topic    string
}

func NewKafkaTickPublisher(producer *pkgkafka.Producer, topic string) *KafkaTickPublisher {
	return &KafkaTickPublisher{producer: producer, topic: topic}
}

func (p *KafkaTickPublisher) PublishTick(ctx context.Context, t models.Tick) error {
	return p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{{Key: []byte(t.Symbol), Value: t}})
}
