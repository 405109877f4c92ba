package di

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"RiskPulse/internal/catalog"
	domrepo "RiskPulse/internal/domain/repository"
	"RiskPulse/internal/handler/api"
	"RiskPulse/internal/repository"
	rcache "RiskPulse/internal/service/cache"
	"RiskPulse/internal/service/finnhub"
	"RiskPulse/internal/service/ratelimit"
	"RiskPulse/internal/usecase"
	pkgcache "RiskPulse/pkg/cache"
	pkgch "RiskPulse/pkg/clickhouse"
	"RiskPulse/pkg/config"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/metrics"
	"RiskPulse/pkg/server"
)

// ProvideLogger builds the application logger from the log section and
// attaches the error-log collector when enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "riskpulse",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collect && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.CollectInterval,
			CountThreshold: cfg.Log.CollectMax,
			Topic:          cfg.Kafka.LogsTopic,
			Service:        "riskpulse",
			Publisher:      producer,
		})
	}
	l = l.With(applogger.String("env", cfg.Environment))
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

func ProvideCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return cat, nil
}

// ProvideRedisCache connects the shared L2 cache; nil when redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/4, 4*time.Second),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideAssessmentCache layers the in-process LRU over the optional redis cache.
func ProvideAssessmentCache(cfg *config.Config, rc *pkgcache.RedisCache) (*rcache.AssessmentCache, func()) {
	mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Engine.CacheMaxEntries))
	layered := pkgcache.NewLayeredCache(mem, rc)
	return rcache.NewAssessmentCache(layered, cfg.Engine.CacheTTL), func() { _ = mem.Close() }
}

// ProvideStore opens the configured durable store, retrying the initial
// connect with exponential backoff, and guards it with a circuit breaker.
func ProvideStore(cfg *config.Config, l *applogger.Logger) (domrepo.Store, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.ConnectWait+10*time.Second)
	defer cancel()

	var store domrepo.Store
	switch cfg.Storage.Backend {
	case "postgres":
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = cfg.Storage.ConnectWait
		pg, err := backoff.RetryNotifyWithData(func() (*repository.PostgresStore, error) {
			return repository.OpenPostgres(ctx, cfg.Storage.DSN, cfg.Storage.MaxOpen, cfg.Storage.Timeout, l)
		}, backoff.WithContext(eb, ctx), func(err error, next time.Duration) {
			l.Warn("postgres not ready, retrying", applogger.Error(err), applogger.Duration("next", next))
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		store = pg
	case "bolt":
		bs, err := repository.OpenBolt(cfg.Storage.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		store = bs
	default:
		store = repository.NewMemoryStore()
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("init %s store: %w", cfg.Storage.Backend, err)
	}
	l.Info("store ready", applogger.String("backend", cfg.Storage.Backend))

	cleanup := func() {
		if err := store.Close(); err != nil {
			l.Warn("store close error", applogger.Error(err))
		}
	}
	if cfg.Breaker.Enabled {
		store = repository.NewBreakerStore(store, repository.BreakerSettings{
			Name:             cfg.Storage.Backend,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			OpenTimeout:      cfg.Breaker.OpenTimeout,
			HalfOpenRequests: cfg.Breaker.HalfOpenRequests,
		}, l)
	}
	return store, cleanup, nil
}

// ProvideClickHouseClient creates a ClickHouse client and the archive schema;
// nil when clickhouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, repository.ArchiveSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideArchive returns the ClickHouse archive, or a bounded in-memory one.
func ProvideArchive(ch *pkgch.Client, l *applogger.Logger) domrepo.Archive {
	if ch == nil {
		return repository.NewMemoryArchive(0)
	}
	return repository.NewCHArchive(ch, l)
}

// ProvideKafkaProducer creates a Kafka producer; nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideAlertSink publishes alerts to Kafka, or logs them when kafka is off.
func ProvideAlertSink(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) domrepo.AlertSink {
	if producer == nil {
		return repository.NewLogAlertSink(l)
	}
	return repository.NewKafkaAlertSink(producer, cfg.Kafka.AlertsTopic)
}

func ProvideWriter(cfg *config.Config, m domrepo.Metrics, l *applogger.Logger) *usecase.Writer {
	return usecase.NewWriter(m, l,
		usecase.WithQueueSize(cfg.Engine.WriterQueue),
		usecase.WithWorkers(cfg.Engine.WriterWorkers),
		usecase.WithWriteTimeout(cfg.Engine.PersistTimeout),
	)
}

// ProvideFinnhubStream creates the trade websocket; nil when finnhub is disabled.
func ProvideFinnhubStream(cfg *config.Config, l *applogger.Logger) *finnhub.Stream {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	return finnhub.NewStream(finnhub.StreamConfig{
		APIKey:       cfg.Finnhub.APIKey,
		URL:          cfg.Finnhub.WebSocketURL,
		Symbols:      cfg.Finnhub.Symbols,
		PingInterval: cfg.Finnhub.PingInterval,
		MaxAge:       cfg.Finnhub.MaxAge,
		ReconnectMin: cfg.Finnhub.ReconnectMin,
		ReconnectMax: cfg.Finnhub.ReconnectMax,
	}, l)
}

// ProvidePriceSource combines the stream with the REST quote fallback. Without
// an API key there is no live price and the engine uses its fallback price.
func ProvidePriceSource(cfg *config.Config, stream *finnhub.Stream, l *applogger.Logger) domrepo.PriceSource {
	if cfg.Finnhub.APIKey == "" || len(cfg.Finnhub.Symbols) == 0 {
		return nil
	}
	quotes := finnhub.NewQuoteClient(cfg.Finnhub.RestURL, cfg.Finnhub.APIKey, cfg.Finnhub.Symbols,
		cfg.Finnhub.QuoteTimeout, cfg.Finnhub.QuotesPerMinute)
	return finnhub.NewPriceFeed(stream, quotes, cfg.Finnhub.QuoteTimeout, l)
}

func ProvideEngine(
	cfg *config.Config,
	cat *catalog.Catalog,
	cache *rcache.AssessmentCache,
	store domrepo.Store,
	writer *usecase.Writer,
	archive domrepo.Archive,
	prices domrepo.PriceSource,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Engine {
	opts := []usecase.EngineOption{
		usecase.WithArchive(archive),
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
	}
	if prices != nil {
		opts = append(opts, usecase.WithPriceSource(prices))
	}
	return usecase.NewEngine(usecase.EngineConfig{
		BoundsTolerance:  cfg.Engine.BoundsTolerance,
		PersistTimeout:   cfg.Engine.PersistTimeout,
		BatchConcurrency: cfg.Engine.BatchConcurrency,
		OutcomeWindow:    cfg.Engine.OutcomeWindow,
		LadderStep:       cfg.Engine.LadderStep,
		HydrateDays:      cfg.Engine.HydrateDays,
	}, cat, cache, store, writer, opts...)
}

// ProvideKafkaConsumer creates the ticks consumer; nil when kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, m domrepo.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.OffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(ctx context.Context, topic string, km kafkago.Message, _ []byte, err error) {
			m.RecordError("kafka_" + topic)
			l.Warn("kafka message failed",
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.String("trace_id", pkgkafka.TraceID(ctx)),
				applogger.Error(err),
			)
		},
	})
	return consumer, nil
}

// ProvideKafkaTicksHandler handles the ticks topic.
func ProvideKafkaTicksHandler(cfg *config.Config, engine *usecase.Engine, sink domrepo.AlertSink, m domrepo.Metrics, l *applogger.Logger) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, engine, sink, m, l)
}

// ProvideTickCollector samples stream ticks onto the ticks topic, or straight
// into the ticks handler when kafka is disabled.
func ProvideTickCollector(
	cfg *config.Config,
	stream *finnhub.Stream,
	producer *pkgkafka.Producer,
	kh *usecase.KafkaTicksHandler,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.TickCollector {
	if stream == nil {
		return nil
	}
	var sink usecase.TickSink = usecase.TickSinkFunc(kh.Process)
	if producer != nil {
		sink = repository.NewKafkaTickPublisher(producer, cfg.Kafka.TicksTopic)
	}
	var sampler *ratelimit.Limiter
	if cfg.Finnhub.SampleEvery > 0 {
		sampler = ratelimit.Every(cfg.Finnhub.SampleEvery, 1)
	}
	return usecase.NewTickCollector(stream, sink, sampler, m, l)
}

func ProvideRiskHandler(cfg *config.Config, l *applogger.Logger, engine *usecase.Engine) *api.RiskEchoHandler {
	var opts []api.RiskHandlerOption
	if cfg.Server.WriteRPS > 0 {
		opts = append(opts, api.WithWriteLimiter(ratelimit.New(rate.Limit(cfg.Server.WriteRPS), cfg.Server.WriteBurst)))
	}
	return api.NewRiskEchoHandler(l, engine, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	engine *usecase.Engine,
	writer *usecase.Writer,
	handler *api.RiskEchoHandler,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	stream *finnhub.Stream,
	collector *usecase.TickCollector,
) *server.App {
	c := server.Components{
		Engine:    engine,
		Writer:    writer,
		Handler:   handler,
		Stream:    stream,
		Collector: collector,
	}
	if consumer != nil {
		c.Consumer = consumer
		c.Ticks = kh
	}
	return server.New(cfg, l, c)
}

// CLI is the subset of the graph used by one-shot commands.
type CLI struct {
	Engine *usecase.Engine
	Writer *usecase.Writer
	Store  domrepo.Store
	Logger *applogger.Logger
}

func ProvideCLI(engine *usecase.Engine, writer *usecase.Writer, store domrepo.Store, l *applogger.Logger) *CLI {
	return &CLI{Engine: engine, Writer: writer, Store: store, Logger: l}
}
