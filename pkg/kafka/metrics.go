package kafka

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type clientMetrics struct {
	producerMsgs    *prometheus.CounterVec
	producerBytes   *prometheus.CounterVec
	producerLatency *prometheus.HistogramVec
	consumerDepth   *prometheus.GaugeVec
	consumerHandle  *prometheus.HistogramVec
	consumerResults *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *clientMetrics
	registerer  prometheus.Registerer = prometheus.DefaultRegisterer
)

// SetMetricsRegisterer sets the registerer used for Kafka client metrics.
// It must be called before the first producer or consumer is created.
func SetMetricsRegisterer(reg prometheus.Registerer) {
	if reg != nil {
		registerer = reg
	}
}

func kafkaMetrics() *clientMetrics {
	metricsOnce.Do(func() {
		f := promauto.With(registerer)
		metrics = &clientMetrics{
			producerMsgs: f.NewCounterVec(prometheus.CounterOpts{
				Name: "riskpulse_kafka_producer_messages_total",
				Help: "Messages published to Kafka",
			}, []string{"topic", "result"}),
			producerBytes: f.NewCounterVec(prometheus.CounterOpts{
				Name: "riskpulse_kafka_producer_bytes_total",
				Help: "Payload bytes published",
			}, []string{"topic"}),
			producerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "riskpulse_kafka_producer_publish_seconds",
				Help:    "Publish latency",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
			consumerDepth: f.NewGaugeVec(prometheus.GaugeOpts{
				Name: "riskpulse_kafka_consumer_queue_depth",
				Help: "Messages waiting in the consumer queue",
			}, []string{"topic"}),
			consumerHandle: f.NewHistogramVec(prometheus.HistogramOpts{
				Name: "riskpulse_kafka_consumer_handle_seconds",
				Help: "Handling time per message including retries",
			}, []string{"topic"}),
			consumerResults: f.NewCounterVec(prometheus.CounterOpts{
				Name: "riskpulse_kafka_consumer_messages_total",
				Help: "Consumed messages by result",
			}, []string{"topic", "result"}),
		}
	})
	return metrics
}
