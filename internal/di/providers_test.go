package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPulse/internal/repository"
	"RiskPulse/internal/usecase"
	"RiskPulse/pkg/config"
	applogger "RiskPulse/pkg/logger"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Environment = "test"
	return cfg
}

func TestProvideStore_MemoryWithBreaker(t *testing.T) {
	cfg := testConfig()
	store, cleanup, err := ProvideStore(cfg, applogger.Nop())
	require.NoError(t, err)
	defer cleanup()

	_, ok := store.(*repository.BreakerStore)
	assert.True(t, ok)
	assert.NoError(t, store.Health(context.Background()))
}

func TestProvideStore_Bolt(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = "bolt"
	cfg.Storage.BoltPath = filepath.Join(t.TempDir(), "risk.db")
	cfg.Breaker.Enabled = false

	store, cleanup, err := ProvideStore(cfg, applogger.Nop())
	require.NoError(t, err)
	defer cleanup()

	_, ok := store.(*repository.BoltStore)
	assert.True(t, ok)
}

func TestProvideStore_PostgresGivesUp(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = "postgres"
	cfg.Storage.DSN = "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"
	cfg.Storage.ConnectWait = 200 * time.Millisecond

	_, _, err := ProvideStore(cfg, applogger.Nop())
	assert.Error(t, err)
}

func TestOptionalProvidersDisabled(t *testing.T) {
	cfg := testConfig()

	rc, cleanup, err := ProvideRedisCache(cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, rc)

	ch, cleanup, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, ch)

	p, cleanup, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, p)

	c, err := ProvideKafkaConsumer(cfg, usecase.NoopMetrics{}, applogger.Nop())
	require.NoError(t, err)
	assert.Nil(t, c)

	assert.Nil(t, ProvideFinnhubStream(cfg, applogger.Nop()))
	assert.Nil(t, ProvidePriceSource(cfg, nil, applogger.Nop()))

	_, isMem := ProvideArchive(nil, applogger.Nop()).(*repository.MemoryArchive)
	assert.True(t, isMem)
	_, isLog := ProvideAlertSink(cfg, nil, applogger.Nop()).(*repository.LogAlertSink)
	assert.True(t, isLog)
}

func TestProvideEngineGraph(t *testing.T) {
	cfg := testConfig()
	l := applogger.Nop()

	cat, err := ProvideCatalog(cfg)
	require.NoError(t, err)
	cache, cleanupCache := ProvideAssessmentCache(cfg, nil)
	defer cleanupCache()
	store, cleanupStore, err := ProvideStore(cfg, l)
	require.NoError(t, err)
	defer cleanupStore()

	m := usecase.NoopMetrics{}
	writer := ProvideWriter(cfg, m, l)
	engine := ProvideEngine(cfg, cat, cache, store, writer, ProvideArchive(nil, l), nil, m, l)
	kh := ProvideKafkaTicksHandler(cfg, engine, ProvideAlertSink(cfg, nil, l), m, l)
	assert.Equal(t, cfg.Kafka.TicksTopic, kh.Topic())
	assert.Nil(t, ProvideTickCollector(cfg, nil, nil, kh, m, l))

	ctx := context.Background()
	require.NoError(t, engine.Bootstrap(ctx))
	a, err := engine.Assess(ctx, "BTC", 94000)
	require.NoError(t, err)
	assert.Equal(t, "BTC", a.Symbol)

	cli := ProvideCLI(engine, writer, store, l)
	assert.NoError(t, cli.Writer.Close(ctx))

	app := ProvideApp(cfg, l, engine, writer, ProvideRiskHandler(cfg, l, engine), nil, kh, nil, nil)
	assert.NotNil(t, app)
}
