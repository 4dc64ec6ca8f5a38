package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Server captures process-level configuration for cmd/server and beaconctl.
type Server struct {
	Addr          string
	RegulatedMode bool
	Log           LogConfig
	Redis         RedisConfig
	Postgres      PostgresConfig
	Kafka         KafkaConfig
	Routing       RoutingConfig
	Blackout      BlackoutConfig
	Isolation     IsolationConfig
	Auth          AuthConfig
	Audit         AuditConfig
	RateLimit     RateLimitConfig

	// PartnerSeedFile is an optional YAML registry loaded at startup.
	PartnerSeedFile string
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RedisConfig is optional; an empty URL selects the Postgres or in-memory
// blackout store.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig is optional; an empty DSN runs every store in memory.
type PostgresConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnMaxLife  time.Duration `yaml:"conn_max_life"`
	Migrate      bool          `yaml:"migrate"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"`
	Partitions  int32    `yaml:"partitions"`
	Replication int16    `yaml:"replication"`
}

// RoutingConfig bounds delivery: MaxAttempts includes the first try.
type RoutingConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`

	BreakerFailures    int           `yaml:"breaker_failures"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout"`
}

type BlackoutConfig struct {
	DefaultDuration   time.Duration `yaml:"default_duration"`
	ExtensionDuration time.Duration `yaml:"extension_duration"`
}

type IsolationConfig struct {
	AnonymizationSecret string `yaml:"anonymization_secret"`
}

type AuthConfig struct {
	JWTSigningKey string `yaml:"jwt_signing_key"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
}

// RateLimitConfig bounds inbound traffic per client IP and per partner.
// A zero request count disables that bucket.
type RateLimitConfig struct {
	Disabled        bool          `yaml:"disabled"`
	ClientRequests  int           `yaml:"client_requests"`
	PartnerRequests int           `yaml:"partner_requests"`
	Window          time.Duration `yaml:"window"`
}

type AuditConfig struct {
	AsyncBuffer    int           `yaml:"async_buffer"`
	RelayInterval  time.Duration `yaml:"relay_interval"`
	RelayBatchSize int           `yaml:"relay_batch_size"`

	// OperationsSampleRate keeps this fraction of operations events.
	OperationsSampleRate float64 `yaml:"operations_sample_rate"`
}

const (
	devJWTKey     = "dev-secret-key-change-in-production"
	devAnonSecret = "dev-anonymization-secret-change-in-production"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          getEnv("BEACON_ADDR", ":8080"),
		RegulatedMode: os.Getenv("REGULATED_MODE") == "true",
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLife:  getDuration("DB_CONN_MAX_LIFE", 30*time.Minute),
			Migrate:      os.Getenv("DB_MIGRATE") != "false",
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "beacon.audit"),
			Partitions:  int32(getInt("KAFKA_PARTITIONS", 3)),
			Replication: int16(getInt("KAFKA_REPLICATION", 1)),
		},
		Routing: RoutingConfig{
			MaxAttempts:        getInt("ROUTING_MAX_ATTEMPTS", 4),
			BackoffBase:        getDuration("ROUTING_BACKOFF_BASE", 500*time.Millisecond),
			BackoffMax:         getDuration("ROUTING_BACKOFF_MAX", 8*time.Second),
			WebhookTimeout:     getDuration("ROUTING_WEBHOOK_TIMEOUT", 10*time.Second),
			BreakerFailures:    getInt("ROUTING_BREAKER_FAILURES", 5),
			BreakerOpenTimeout: getDuration("ROUTING_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Blackout: BlackoutConfig{
			DefaultDuration:   getDuration("BLACKOUT_DEFAULT", 48*time.Hour),
			ExtensionDuration: getDuration("BLACKOUT_EXTENSION", 72*time.Hour),
		},
		Isolation: IsolationConfig{
			AnonymizationSecret: os.Getenv("ISOLATION_ANON_SECRET"),
		},
		Auth: AuthConfig{
			JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
			Issuer:        getEnv("JWT_ISSUER", "beacon"),
			Audience:      getEnv("JWT_AUDIENCE", "beacon-operators"),
		},
		Audit: AuditConfig{
			AsyncBuffer:    getInt("AUDIT_ASYNC_BUFFER", 1024),
			RelayInterval:  getDuration("AUDIT_RELAY_INTERVAL", time.Second),
			RelayBatchSize: getInt("AUDIT_RELAY_BATCH_SIZE", 100),

			OperationsSampleRate: getFloat("AUDIT_OPS_SAMPLE_RATE", 1),
		},
		RateLimit: RateLimitConfig{
			Disabled:        os.Getenv("RATELIMIT_DISABLED") == "true",
			ClientRequests:  getInt("RATELIMIT_CLIENT_REQUESTS", 300),
			PartnerRequests: getInt("RATELIMIT_PARTNER_REQUESTS", 120),
			Window:          getDuration("RATELIMIT_WINDOW", time.Minute),
		},
		PartnerSeedFile: os.Getenv("PARTNER_SEED_FILE"),
	}
	cfg.applyDevDefaults()
	return cfg, cfg.Validate()
}

// fileConfig is the YAML shape accepted by beaconctl --config.
type fileConfig struct {
	Addr            string           `yaml:"addr"`
	Log             *LogConfig       `yaml:"log"`
	Redis           *RedisConfig     `yaml:"redis"`
	Postgres        *PostgresConfig  `yaml:"postgres"`
	Kafka           *KafkaConfig     `yaml:"kafka"`
	Routing         *RoutingConfig   `yaml:"routing"`
	Blackout        *BlackoutConfig  `yaml:"blackout"`
	Isolation       *IsolationConfig `yaml:"isolation"`
	Auth            *AuthConfig      `yaml:"auth"`
	Audit           *AuditConfig     `yaml:"audit"`
	RateLimit       *RateLimitConfig `yaml:"rate_limit"`
	PartnerSeedFile string           `yaml:"partner_seed_file"`
}

// Load reads env first and overlays sections present in the YAML file.
// Sections in the file replace the env section wholesale.
func Load(path string) (Server, error) {
	cfg, err := FromEnv()
	if err != nil || path == "" {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.overlay(data); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c *Server) overlay(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}
	if fc.Addr != "" {
		c.Addr = fc.Addr
	}
	if fc.Log != nil {
		c.Log = *fc.Log
	}
	if fc.Redis != nil {
		c.Redis = *fc.Redis
	}
	if fc.Postgres != nil {
		c.Postgres = *fc.Postgres
	}
	if fc.Kafka != nil {
		c.Kafka = *fc.Kafka
	}
	if fc.Routing != nil {
		c.Routing = *fc.Routing
	}
	if fc.Blackout != nil {
		c.Blackout = *fc.Blackout
	}
	if fc.Isolation != nil {
		c.Isolation = *fc.Isolation
	}
	if fc.Auth != nil {
		c.Auth = *fc.Auth
	}
	if fc.Audit != nil {
		c.Audit = *fc.Audit
	}
	if fc.RateLimit != nil {
		c.RateLimit = *fc.RateLimit
	}
	if fc.PartnerSeedFile != "" {
		c.PartnerSeedFile = fc.PartnerSeedFile
	}
	c.applyDevDefaults()
	return nil
}

// applyDevDefaults fills secrets outside regulated mode only.
func (c *Server) applyDevDefaults() {
	if c.RegulatedMode {
		return
	}
	if c.Auth.JWTSigningKey == "" {
		c.Auth.JWTSigningKey = devJWTKey
	}
	if c.Isolation.AnonymizationSecret == "" {
		c.Isolation.AnonymizationSecret = devAnonSecret
	}
}

// Validate rejects configurations that would weaken routing bounds or run
// regulated deployments with development secrets.
func (c Server) Validate() error {
	var errs []error
	if c.Routing.MaxAttempts < 1 {
		errs = append(errs, errors.New("routing max attempts must be at least 1"))
	}
	if c.Routing.BackoffBase <= 0 || c.Routing.BackoffMax < c.Routing.BackoffBase {
		errs = append(errs, errors.New("routing backoff must be positive and max >= base"))
	}
	if c.Routing.WebhookTimeout <= 0 {
		errs = append(errs, errors.New("webhook timeout must be positive"))
	}
	if c.Blackout.DefaultDuration <= 0 || c.Blackout.ExtensionDuration <= 0 {
		errs = append(errs, errors.New("blackout durations must be positive"))
	}
	if c.Audit.OperationsSampleRate < 0 || c.Audit.OperationsSampleRate > 1 {
		errs = append(errs, errors.New("audit operations sample rate must be between 0 and 1"))
	}
	if !c.RateLimit.Disabled && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.RegulatedMode {
		if c.Isolation.AnonymizationSecret == "" {
			errs = append(errs, errors.New("ISOLATION_ANON_SECRET is required in regulated mode"))
		}
		if c.Auth.JWTSigningKey == "" {
			errs = append(errs, errors.New("JWT_SIGNING_KEY is required in regulated mode"))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
