package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/quantfold/gexengine/internal/notify"
)

type Config struct {
	Provider   ProviderConfig   `mapstructure:"provider"`
	Engine     EngineConfig     `mapstructure:"engine"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Snapshots  SnapshotsConfig  `mapstructure:"snapshots"`
	Server     ServerConfig     `mapstructure:"server"`
	Notify     notify.Config    `mapstructure:"notify"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ProviderConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelaySec int    `mapstructure:"retry_delay_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

type EngineConfig struct {
	Timezone string   `mapstructure:"timezone"`
	Symbols  []string `mapstructure:"symbols"`
}

type ClickHouseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// SnapshotsConfig selects the file-backed snapshot source used when
// ClickHouse is disabled (offline backtests against JSONL dumps).
type SnapshotsConfig struct {
	Directory string `mapstructure:"directory"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("provider.base_url", "https://api.marketdata.app")
	v.SetDefault("provider.timeout_sec", 30)
	v.SetDefault("provider.retry_count", 3)
	v.SetDefault("provider.retry_delay_sec", 2)
	v.SetDefault("provider.rate_per_second", 2)
	v.SetDefault("engine.timezone", "America/New_York")
	v.SetDefault("engine.symbols", []string{"SPY"})
	v.SetDefault("clickhouse.enabled", false)
	v.SetDefault("clickhouse.port", 9000)
	v.SetDefault("clickhouse.database", "gexengine")
	v.SetDefault("clickhouse.user", "default")
	v.SetDefault("snapshots.directory", "data")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "moneybag")
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("GEXENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("provider.api_key", "GEXENGINE_API_KEY")
	_ = v.BindEnv("clickhouse.password", "GEXENGINE_CLICKHOUSE_PASSWORD")
	_ = v.BindEnv("notify.token", "GEXENGINE_NTFY_TOKEN")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in 1-65535")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Notify.Enabled && c.Notify.Topic == "" {
		return fmt.Errorf("notify.topic is required when notifications are enabled")
	}
	return nil
}
