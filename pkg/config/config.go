// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, BigKinds, Expansion, Redis, Postgres, Kafka, LLM, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	BigKinds  BigKindsConfig  `yaml:"bigkinds"`
	Expansion ExpansionConfig `yaml:"expansion"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	LLM       LLMConfig       `yaml:"llm"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// BigKindsConfig holds the news search provider endpoint, credentials and
// the fault-tolerance settings applied to every upstream call.
type BigKindsConfig struct {
	BaseURL     string               `yaml:"baseUrl"`
	APIKey      string               `yaml:"apiKey"`
	Timeout     time.Duration        `yaml:"timeout"`
	Retry       RetryConfig          `yaml:"retry"`
	Breaker     CircuitBreakerConfig `yaml:"breaker"`
	SearchSize  int                  `yaml:"searchSize"`
	LookbackDay int                  `yaml:"lookbackDays"`
}

// RetryConfig mirrors resilience.RetryConfig in YAML form.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// CircuitBreakerConfig mirrors resilience.CircuitBreakerConfig in YAML form.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// ExpansionConfig holds the default pipeline parameters. Request values
// override them per call.
type ExpansionConfig struct {
	MaxQuestions        int           `yaml:"maxQuestions"`
	MaxQuestionsLimit   int           `yaml:"maxQuestionsLimit"`
	ClusterCount        int           `yaml:"clusterCount"`
	MaxRecursionDepth   int           `yaml:"maxRecursionDepth"`
	MinArticlesPerQuery int           `yaml:"minArticlesPerQuery"`
	RelatedLimit        int           `yaml:"relatedLimit"`
	TopNLimit           int           `yaml:"topnLimit"`
	PopularDays         int           `yaml:"popularDays"`
	PopularLimit        int           `yaml:"popularLimit"`
	RandomSeed          int64         `yaml:"randomSeed"`
	Deadline            time.Duration `yaml:"deadline"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	QuestionEvents string `yaml:"questionEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LLMConfig controls the optional question rephraser.
type LLMConfig struct {
	Enabled bool          `yaml:"enabled"`
	APIKey  string        `yaml:"apiKey"`
	BaseURL string        `yaml:"baseUrl"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig controls per-client request limits on the question API.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	e := c.Expansion
	switch {
	case e.MaxQuestions <= 0:
		return fmt.Errorf("expansion.maxQuestions must be positive, got %d", e.MaxQuestions)
	case e.MaxQuestionsLimit < e.MaxQuestions:
		return fmt.Errorf("expansion.maxQuestionsLimit (%d) is below maxQuestions (%d)", e.MaxQuestionsLimit, e.MaxQuestions)
	case e.ClusterCount <= 0:
		return fmt.Errorf("expansion.clusterCount must be positive, got %d", e.ClusterCount)
	case e.MaxRecursionDepth <= 0:
		return fmt.Errorf("expansion.maxRecursionDepth must be positive, got %d", e.MaxRecursionDepth)
	case e.MinArticlesPerQuery <= 0:
		return fmt.Errorf("expansion.minArticlesPerQuery must be positive, got %d", e.MinArticlesPerQuery)
	}
	if c.BigKinds.BaseURL == "" {
		return fmt.Errorf("bigkinds.baseUrl is required")
	}
	return nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		BigKinds: BigKindsConfig{
			BaseURL: "https://tools.kinds.or.kr",
			Timeout: 30 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 200 * time.Millisecond,
				MaxDelay:     2 * time.Second,
			},
			Breaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
			},
			SearchSize:  30,
			LookbackDay: 30,
		},
		Expansion: ExpansionConfig{
			MaxQuestions:        10,
			MaxQuestionsLimit:   20,
			ClusterCount:        5,
			MaxRecursionDepth:   2,
			MinArticlesPerQuery: 3,
			RelatedLimit:        30,
			TopNLimit:           30,
			PopularDays:         7,
			PopularLimit:        20,
			RandomSeed:          42,
			Deadline:            60 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "relatedquestions",
			User:            "relatedquestions",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "related-questions",
			Topics: KafkaTopics{
				QuestionEvents: "question-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		LLM: LLMConfig{
			Model:   "gpt-4o-mini",
			Timeout: 15 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 30,
			Window:   time.Minute,
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

// applyEnvOverrides reads RQ_* environment variables (and the provider
// credentials BIGKINDS_KEY / OPENAI_API_KEY) and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RQ_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RQ_BIGKINDS_BASE_URL"); v != "" {
		cfg.BigKinds.BaseURL = v
	}
	if v := os.Getenv("BIGKINDS_KEY"); v != "" {
		cfg.BigKinds.APIKey = v
	}
	if v := os.Getenv("RQ_BIGKINDS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BigKinds.Timeout = d
		}
	}
	if v := os.Getenv("RQ_EXPANSION_MAX_QUESTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Expansion.MaxQuestions = n
		}
	}
	if v := os.Getenv("RQ_EXPANSION_CLUSTER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Expansion.ClusterCount = n
		}
	}
	if v := os.Getenv("RQ_EXPANSION_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Expansion.MaxRecursionDepth = n
		}
	}
	if v := os.Getenv("RQ_EXPANSION_MIN_ARTICLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Expansion.MinArticlesPerQuery = n
		}
	}
	if v := os.Getenv("RQ_EXPANSION_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Expansion.Deadline = d
		}
	}
	if v := os.Getenv("RQ_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v)
	}
	if v := os.Getenv("RQ_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RQ_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RQ_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RQ_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RQ_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RQ_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("RQ_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v)
	}
	if v := os.Getenv("RQ_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RQ_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RQ_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RQ_LLM_ENABLED"); v != "" {
		cfg.LLM.Enabled = parseBool(v)
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("RQ_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("RQ_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RQ_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RQ_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
