// Package config defines the YAML-backed configuration for the search
// services. Load starts from built-in development defaults, layers the
// file on top, then lets SD_-prefixed environment variables override
// individual fields.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates every subsystem's settings.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Cache     CacheConfig     `yaml:"cache"`
	RPC       RPCConfig       `yaml:"rpc"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig shapes the public HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// EngineConfig carries the BM25 parameters and the query limit bounds
// the engine enforces.
type EngineConfig struct {
	K1                   float64 `yaml:"k1"`
	B                    float64 `yaml:"b"`
	DefaultLimit         int     `yaml:"defaultLimit"`
	MaxLimit             int     `yaml:"maxLimit"`
	DefaultFuzzyDistance int     `yaml:"defaultFuzzyDistance"`
	MaxFuzzyDistance     int     `yaml:"maxFuzzyDistance"`
	SuggestLimit         int     `yaml:"suggestLimit"`
}

// PostgresConfig points at the document warehouse.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN renders the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig names the brokers and the topics the services exchange
// events on.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

type KafkaTopics struct {
	DocumentUpdates string `yaml:"documentUpdates"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// CacheConfig configures the Redis query cache. Disabled means searchd
// runs without Redis entirely.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	TTL      time.Duration `yaml:"ttl"`
}

// RPCConfig holds the internal JSON-over-TCP RPC listener settings.
type RPCConfig struct {
	Enabled bool          `yaml:"enabled"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig controls the per-client token bucket on search routes.
type RateLimitConfig struct {
	Enabled        bool    `yaml:"enabled"`
	RequestsPerSec float64 `yaml:"requestsPerSec"`
	Burst          int     `yaml:"burst"`
}

// AnalyticsConfig controls event batching and snapshot persistence.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig selects the slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig switches the Prometheus listener on and picks its port.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load builds the effective configuration: defaults first, then the YAML
// file at path when one is given, then environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig is the local-development baseline. Every value here can
// be reached from the YAML file or an SD_ variable.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Engine: EngineConfig{
			K1:                   1.2,
			B:                    0.75,
			DefaultLimit:         10,
			MaxLimit:             1000,
			DefaultFuzzyDistance: 2,
			MaxFuzzyDistance:     4,
			SuggestLimit:         10,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searchd",
			User:            "searchd",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "searchd-group",
			Topics: KafkaTopics{
				DocumentUpdates: "document-updates",
				AnalyticsEvents: "search-analytics",
			},
		},
		Cache: CacheConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			TTL:      60 * time.Second,
		},
		RPC: RPCConfig{
			Enabled: true,
			Port:    7700,
			Timeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:        false,
			RequestsPerSec: 50,
			Burst:          100,
		},
		Analytics: AnalyticsConfig{
			Enabled:          true,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// applyEnvOverrides maps SD_ variables onto their config fields. Values
// that fail to parse are ignored rather than fatal.
func applyEnvOverrides(cfg *Config) {
	envInt("SD_SERVER_PORT", &cfg.Server.Port)
	envStr("SD_POSTGRES_HOST", &cfg.Postgres.Host)
	envInt("SD_POSTGRES_PORT", &cfg.Postgres.Port)
	envStr("SD_POSTGRES_DATABASE", &cfg.Postgres.Database)
	envStr("SD_POSTGRES_USER", &cfg.Postgres.User)
	envStr("SD_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	envStr("SD_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	envStr("SD_CACHE_ADDR", &cfg.Cache.Addr)
	envStr("SD_CACHE_PASSWORD", &cfg.Cache.Password)
	envInt("SD_RPC_PORT", &cfg.RPC.Port)
	envStr("SD_LOGGING_LEVEL", &cfg.Logging.Level)
	envStr("SD_LOGGING_FORMAT", &cfg.Logging.Format)
	envInt("SD_METRICS_PORT", &cfg.Metrics.Port)

	if v := os.Getenv("SD_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}
