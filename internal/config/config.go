package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ConnString builds a pgx-compatible connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type NATSConfig struct {
	URL               string        `mapstructure:"url"`
	Name              string        `mapstructure:"name"`
	MaxReconnects     int           `mapstructure:"max_reconnects"`
	ReconnectWait     time.Duration `mapstructure:"reconnect_wait"`
	Timeout           time.Duration `mapstructure:"timeout"`
	FlushTimeout      time.Duration `mapstructure:"flush_timeout"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type IngestionConfig struct {
	Topic         string        `mapstructure:"topic"`
	Producer      string        `mapstructure:"producer"`
	MaxEventSize  int64         `mapstructure:"max_event_size"`
	MaxBatchSize  int64         `mapstructure:"max_batch_size"`
	LocalCacheTTL time.Duration `mapstructure:"local_cache_ttl"`
}

type LifecycleConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	Queue         string `mapstructure:"queue"`
}

type AuthConfig struct {
	// TokenSecret enables bearer-token auth on the ingestion endpoints
	// when non-empty.
	TokenSecret string `mapstructure:"token_secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "flowgate")
	v.SetDefault("database.password", "flowgate")
	v.SetDefault("database.database", "flowgate")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.cache_ttl", "300s")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "flowgate-gateway")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")
	v.SetDefault("nats.flush_timeout", "10s")
	v.SetDefault("nats.connect_retries", 5)
	v.SetDefault("nats.connect_retry_delay", "500ms")
	v.SetDefault("ingestion.topic", "guaranteed-ingestion-channel.1")
	v.SetDefault("ingestion.producer", "flowgate-webhook-gateway")
	v.SetDefault("ingestion.max_event_size", 65536)
	v.SetDefault("ingestion.max_batch_size", 8388608)
	v.SetDefault("ingestion.local_cache_ttl", "30s")
	v.SetDefault("lifecycle.enabled", true)
	v.SetDefault("lifecycle.subject_prefix", "flowcore")
	v.SetDefault("lifecycle.queue", "flowgate-lifecycle")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/flowgate")
	}

	// Environment variables override
	v.SetEnvPrefix("FLOWGATE")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
