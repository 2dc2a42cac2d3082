// Package config reads service settings from a YAML file, layers FR_*
// environment variables on top and checks the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is shared by every binary; each reads the sections it needs.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Language LanguageConfig `yaml:"language"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig is the public HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig locates the entry store and sizes its pool.
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
	// ConnectAttempts is how many times startup pings the database.
	ConnectAttempts int `yaml:"connectAttempts"`
}

// DSN renders the settings as a lib/pq keyword string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		p.Host, p.Port, p.Database, p.User, p.Password, p.SSLMode)
}

// KafkaConfig covers both the producer and the consumer group.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
	// StartFromFirst makes a new consumer group replay the topic from the
	// earliest offset instead of only new messages.
	StartFromFirst bool          `yaml:"startFromFirst"`
	HandleTimeout  time.Duration `yaml:"handleTimeout"`
	MaxAttempts    int           `yaml:"maxAttempts"`
	BatchTimeout   time.Duration `yaml:"batchTimeout"`
}

// KafkaTopics names the topic for each event stream.
type KafkaTopics struct {
	EntryProcess string `yaml:"entryProcess"`
	EntryRanked  string `yaml:"entryRanked"`
}

// RedisConfig is the query-result cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	// Timeout bounds dialing and each command.
	Timeout time.Duration `yaml:"timeout"`
}

// LanguageConfig points at the language model bundles. An empty ModelsDir
// uses only the embedded bundles.
type LanguageConfig struct {
	ModelsDir string `yaml:"modelsDir"`
	Default   string `yaml:"default"`
}

// SearchConfig controls query compilation, snippet extraction and result
// limits.
type SearchConfig struct {
	MaxResults      int `yaml:"maxResults"`
	DefaultLimit    int `yaml:"defaultLimit"`
	SnippetRadius   int `yaml:"snippetRadius"`
	SnippetTokens   int `yaml:"snippetTokens"`
	MaxSnippets     int `yaml:"maxSnippets"`
	DefaultNear     int `yaml:"defaultNear"`
	PhraseCacheSize int `yaml:"phraseCacheSize"`
	CandidateLimit  int `yaml:"candidateLimit"`
}

// LoggingConfig is passed to logger.Setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig is the separate Prometheus scrape listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Load starts from the defaults, overlays the file at path when path is set,
// then the environment. A malformed environment value is an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "feedrank",
			User:            "feedrank",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectAttempts: 5,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "feedrank-group",
			Topics: KafkaTopics{
				EntryProcess: "entry-process",
				EntryRanked:  "entry-ranked",
			},
			HandleTimeout: 30 * time.Second,
			MaxAttempts:   3,
			BatchTimeout:  10 * time.Millisecond,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
			Timeout:  time.Second,
		},
		Language: LanguageConfig{
			Default: "heuristic",
		},
		Search: SearchConfig{
			MaxResults:      500,
			DefaultLimit:    50,
			SnippetRadius:   70,
			SnippetTokens:   5,
			MaxSnippets:     3,
			DefaultNear:     5,
			PhraseCacheSize: 256,
			CandidateLimit:  5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

func (c *Config) validate() error {
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search limits: defaultLimit=%d maxResults=%d", c.Search.DefaultLimit, c.Search.MaxResults)
	}
	if c.Search.DefaultNear < 0 {
		return fmt.Errorf("search defaultNear must not be negative, got %d", c.Search.DefaultNear)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /, got %q", c.Metrics.Path)
	}
	return nil
}

type envBinding struct {
	name string
	set  func(v string) error
}

func envString(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func envInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func envBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func envList(dst *[]string) func(string) error {
	return func(v string) error {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
		return nil
	}
}

func envBindings(cfg *Config) []envBinding {
	return []envBinding{
		{"FR_SERVER_PORT", envInt(&cfg.Server.Port)},
		{"FR_POSTGRES_HOST", envString(&cfg.Postgres.Host)},
		{"FR_POSTGRES_PORT", envInt(&cfg.Postgres.Port)},
		{"FR_POSTGRES_DATABASE", envString(&cfg.Postgres.Database)},
		{"FR_POSTGRES_USER", envString(&cfg.Postgres.User)},
		{"FR_POSTGRES_PASSWORD", envString(&cfg.Postgres.Password)},
		{"FR_POSTGRES_SSLMODE", envString(&cfg.Postgres.SSLMode)},
		{"FR_KAFKA_BROKERS", envList(&cfg.Kafka.Brokers)},
		{"FR_KAFKA_START_FROM_FIRST", envBool(&cfg.Kafka.StartFromFirst)},
		{"FR_REDIS_ADDR", envString(&cfg.Redis.Addr)},
		{"FR_REDIS_PASSWORD", envString(&cfg.Redis.Password)},
		{"FR_LANGUAGE_MODELS_DIR", envString(&cfg.Language.ModelsDir)},
		{"FR_LANGUAGE_DEFAULT", envString(&cfg.Language.Default)},
		{"FR_LOGGING_LEVEL", envString(&cfg.Logging.Level)},
		{"FR_LOGGING_FORMAT", envString(&cfg.Logging.Format)},
		{"FR_METRICS_PORT", envInt(&cfg.Metrics.Port)},
	}
}

// applyEnv overrides cfg from every set, non-empty FR_* variable.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings(cfg) {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(v); err != nil {
			return fmt.Errorf("env %s=%q: %w", b.name, v, err)
		}
	}
	return nil
}
