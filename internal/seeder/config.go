// Package seeder generates a fake resource hierarchy and drives ingestion
// traffic against a running gateway, for development and load testing.
package seeder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the seeder profile.
type Config struct {
	Gateway   GatewayConfig   `mapstructure:"gateway" yaml:"gateway"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Hierarchy HierarchyConfig `mapstructure:"hierarchy" yaml:"hierarchy"`
	Traffic   TrafficConfig   `mapstructure:"traffic" yaml:"traffic"`
}

type GatewayConfig struct {
	URL   string `mapstructure:"url" yaml:"url"`
	Token string `mapstructure:"token" yaml:"token"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// HierarchyConfig controls the fan-out of the generated resource tree.
type HierarchyConfig struct {
	Tenants            int `mapstructure:"tenants" yaml:"tenants"`
	DataCoresPerTenant int `mapstructure:"data_cores_per_tenant" yaml:"data_cores_per_tenant"`
	FlowTypesPerCore   int `mapstructure:"flow_types_per_core" yaml:"flow_types_per_core"`
	EventTypesPerFlow  int `mapstructure:"event_types_per_flow" yaml:"event_types_per_flow"`
}

// TrafficConfig controls the ingestion load fired at the gateway.
type TrafficConfig struct {
	Events    int `mapstructure:"events" yaml:"events"`
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// LoadConfig loads the profile with cascade: explicit path, ./seeder.yaml,
// ~/.flowgate/seeder.yaml, then defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("seeder")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SEEDER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".flowgate"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.url", "http://localhost:8085")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "flowgate")
	v.SetDefault("database.password", "flowgate")
	v.SetDefault("database.database", "flowgate")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("hierarchy.tenants", 2)
	v.SetDefault("hierarchy.data_cores_per_tenant", 2)
	v.SetDefault("hierarchy.flow_types_per_core", 3)
	v.SetDefault("hierarchy.event_types_per_flow", 3)
	v.SetDefault("traffic.events", 500)
	v.SetDefault("traffic.batch_size", 25)
}

// Validate checks the profile for values the runner cannot work with.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	if c.Hierarchy.Tenants < 1 ||
		c.Hierarchy.DataCoresPerTenant < 1 ||
		c.Hierarchy.FlowTypesPerCore < 1 ||
		c.Hierarchy.EventTypesPerFlow < 1 {
		return fmt.Errorf("hierarchy fan-out values must all be at least 1")
	}
	if c.Traffic.BatchSize < 1 {
		return fmt.Errorf("traffic.batch_size must be at least 1")
	}
	return nil
}

// WriteProfile writes the profile as YAML, used to bootstrap a starter
// seeder.yaml.
func (c *Config) WriteProfile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Default returns the built-in profile.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}
