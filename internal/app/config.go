package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the raidhelper service.
type Config struct {
	Server   ServerConfig           `mapstructure:"server"`
	Database DatabaseConfig         `mapstructure:"database"`
	Cache    CacheConfig            `mapstructure:"cache"`
	Bot      BotConfig              `mapstructure:"bot"`
	Notify   NotifyConfig           `mapstructure:"notify"`
	Groups   map[string]GroupConfig `mapstructure:"groups"`
}

// ServerConfig configures the HTTP server and logging.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends. With Redis disabled the notification
// dedup counters live in the main database.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// BotConfig tunes the questionnaire conversation.
type BotConfig struct {
	MessageInterval time.Duration `mapstructure:"message_interval"`
	PromptTimeout   time.Duration `mapstructure:"prompt_timeout"`
	MaxRetry        int           `mapstructure:"max_retry"`
	ExitKeyword     string        `mapstructure:"exit_keyword"`
}

// NotifyConfig tunes reminders and batched leader digests.
type NotifyConfig struct {
	ReminderWindows []time.Duration `mapstructure:"reminder_windows"`
	FlushSpec       string          `mapstructure:"flush_spec"`
	SendDelay       time.Duration   `mapstructure:"send_delay"`
}

// GroupConfig describes one raid community the bot serves.
type GroupConfig struct {
	ChannelID string   `mapstructure:"channel_id"`
	Leaders   []string `mapstructure:"leaders"`
	Worlds    []string `mapstructure:"worlds"`
}

// LoadConfig initialises application configuration using Viper with sensible
// defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("RAIDHELPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate checks the parts the service cannot start without.
func (c *Config) Validate() error {
	if len(c.Groups) == 0 {
		return errors.New("config: at least one group must be configured")
	}
	for name, group := range c.Groups {
		if len(group.Worlds) == 0 {
			return fmt.Errorf("config: group %s has no worlds", name)
		}
		if len(group.Leaders) == 0 {
			return fmt.Errorf("config: group %s has no leaders", name)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/raidhelper.sqlite")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("bot.message_interval", "500ms")
	v.SetDefault("bot.prompt_timeout", "2m")
	v.SetDefault("bot.max_retry", 3)
	v.SetDefault("bot.exit_keyword", "exit")

	v.SetDefault("notify.reminder_windows", "24h,2h")
	v.SetDefault("notify.flush_spec", "@every 5m")
	v.SetDefault("notify.send_delay", "500ms")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
