package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	xutil "RiskPulse/pkg/util"
)

const envPrefix = "RISKPULSE_"

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
		// Collect aggregates error logs and publishes them to kafka.logs_topic.
		Collect         bool          `yaml:"collect"`
		CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
		CollectMax      int           `yaml:"collect_max" default:"100"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
		CORS            bool          `yaml:"cors" default:"true"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		// WriteRPS limits mutating API calls per client; zero disables.
		WriteRPS   float64 `yaml:"write_rps" default:"5"`
		WriteBurst int     `yaml:"write_burst" default:"10"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool `yaml:"enabled" default:"true"`
	} `yaml:"metrics"`
	Engine struct {
		CacheTTL         time.Duration `yaml:"cache_ttl" default:"5m" validate:"gt=0"`
		CacheMaxEntries  int           `yaml:"cache_max_entries" default:"10000"`
		BoundsTolerance  float64       `yaml:"bounds_tolerance" default:"0.01" validate:"gte=0,lte=0.5"`
		PersistTimeout   time.Duration `yaml:"persist_timeout" default:"5s"`
		BatchConcurrency int           `yaml:"batch_concurrency" default:"8" validate:"gte=1,lte=256"`
		OutcomeWindow    int           `yaml:"outcome_window" default:"256" validate:"gte=2"`
		HydrateDays      int           `yaml:"hydrate_days" default:"30" validate:"gte=1"`
		LadderStep       float64       `yaml:"ladder_step" default:"0.1" validate:"gt=0,lte=0.5"`
		WriterQueue      int           `yaml:"writer_queue" default:"1024" validate:"gte=1"`
		WriterWorkers    int           `yaml:"writer_workers" default:"2" validate:"gte=1"`
	} `yaml:"engine"`
	Catalog struct {
		// Path to the symbols YAML; empty uses the built-in catalog.
		Path string `yaml:"path"`
	} `yaml:"catalog"`
	Storage struct {
		Backend     string        `yaml:"backend" default:"memory" validate:"oneof=memory postgres bolt"`
		DSN         string        `yaml:"dsn"`
		BoltPath    string        `yaml:"bolt_path" default:"data/riskpulse.db"`
		MaxOpen     int           `yaml:"max_open" default:"10"`
		Timeout     time.Duration `yaml:"timeout" default:"5s"`
		ConnectWait time.Duration `yaml:"connect_wait" default:"30s"`
	} `yaml:"storage"`
	Breaker struct {
		Enabled          bool          `yaml:"enabled" default:"true"`
		FailureThreshold uint32        `yaml:"failure_threshold" default:"5" validate:"gte=1"`
		OpenTimeout      time.Duration `yaml:"open_timeout" default:"30s"`
		HalfOpenRequests uint32        `yaml:"half_open_requests" default:"1" validate:"gte=1"`
	} `yaml:"breaker"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"20"`
		Prefix   string `yaml:"prefix" default:"riskpulse"`
	} `yaml:"redis"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"riskpulse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		TicksTopic   string   `yaml:"ticks_topic" default:"riskpulse.ticks"`
		AlertsTopic  string   `yaml:"alerts_topic" default:"riskpulse.alerts"`
		LogsTopic    string   `yaml:"logs_topic" default:"riskpulse.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id" default:"riskpulse"`
			OffsetReset string        `yaml:"offset_reset" default:"latest" validate:"oneof=earliest latest"`
			Workers     int           `yaml:"workers" default:"4"`
			BufferSize  int           `yaml:"buffer_size" default:"1000"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic    string        `yaml:"dlq_topic" default:"riskpulse.ticks.dlq"`
			MinBytes    int           `yaml:"min_bytes" default:"1"`
			MaxBytes    int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Finnhub struct {
		Enabled      bool   `yaml:"enabled"`
		APIKey       string `yaml:"api_key"`
		WebSocketURL string `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		RestURL      string `yaml:"rest_url" default:"https://finnhub.io/api/v1"`
		// Symbols maps catalog symbols to feed symbols (BTC: BINANCE:BTCUSDT).
		Symbols         map[string]string `yaml:"symbols"`
		PingInterval    time.Duration     `yaml:"ping_interval" default:"20s"`
		MaxAge          time.Duration     `yaml:"max_age" default:"1m"`
		ReconnectMin    time.Duration     `yaml:"reconnect_min" default:"1s"`
		ReconnectMax    time.Duration     `yaml:"reconnect_max" default:"1m"`
		QuoteTimeout    time.Duration     `yaml:"quote_timeout" default:"3s"`
		QuotesPerMinute int               `yaml:"quotes_per_minute" default:"30"`
		// SampleEvery forwards at most one tick per symbol per interval.
		SampleEvery time.Duration `yaml:"sample_every" default:"10s"`
	} `yaml:"finnhub"`
	Scheduler struct {
		CatalogRefresh string `yaml:"catalog_refresh" default:"@every 10m"`
	} `yaml:"scheduler"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, applying defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	// defaults first so explicit zero values in YAML (cors: false) survive
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default returns a configuration built only from defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path starts from defaults.
func LoadWithEnv(path string) (*Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = Load(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}

	if v, ok := get(envPrefix + "ENVIRONMENT"); ok {
		c.Environment = v
	}
	if v, ok := get(envPrefix + "LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get(envPrefix + "PORT"); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		c.Server.Port = p
	}
	if v, ok := get(envPrefix + "CATALOG_PATH"); ok {
		c.Catalog.Path = v
	}
	if v, ok := get(envPrefix + "STORAGE_BACKEND"); ok {
		c.Storage.Backend = v
	}
	if v, ok := get(envPrefix+"DATABASE_DSN", "DATABASE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := get(envPrefix + "BOLT_PATH"); ok {
		c.Storage.BoltPath = v
	}
	if v, ok := get(envPrefix+"REDIS_ADDR", "REDIS_ADDR"); ok {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v, ok := get(envPrefix+"KAFKA_BROKERS", "KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = xutil.SplitCSV(v)
		c.Kafka.Enabled = len(c.Kafka.Brokers) > 0
	}
	if v, ok := get(envPrefix+"FINNHUB_API_KEY", "FINNHUB_API_KEY"); ok {
		c.Finnhub.APIKey = v
	}
	return nil
}

// Validate checks struct tags and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Storage.Backend == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the postgres backend")
	}
	if c.Storage.Backend == "bolt" && c.Storage.BoltPath == "" {
		return fmt.Errorf("storage.bolt_path is required for the bolt backend")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Log.Collect && !c.Kafka.Enabled {
		return fmt.Errorf("log.collect requires kafka")
	}
	if c.Finnhub.Enabled {
		if c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required")
		}
		if len(c.Finnhub.Symbols) == 0 {
			return fmt.Errorf("finnhub.symbols cannot be empty")
		}
	}
	if c.Engine.CacheTTL <= 0 {
		return fmt.Errorf("engine.cache_ttl must be positive")
	}
	return nil
}
