package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. CRAWLDASH_API_BASE.
const EnvPrefix = "CRAWLDASH"

// Config holds all configuration for the application.
// Values are read by viper from a config file, environment variables or flags.
type Config struct {
	APIBase        string        `mapstructure:"api_base"`
	AuthToken      string        `mapstructure:"auth_token"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SearchDebounce time.Duration `mapstructure:"search_debounce"`
	PageSize       int           `mapstructure:"page_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// BulkRate paces bulk actions in requests per second. Zero is unlimited.
	BulkRate  float64 `mapstructure:"bulk_rate"`
	CachePath string  `mapstructure:"cache_path"`

	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   int64  `mapstructure:"telegram_chat_id"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	MockAddr string `mapstructure:"mock_addr"`
}

// SetDefaults registers every key with its default so env overrides are
// picked up by Unmarshal even when no config file exists.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_base", "http://localhost:8080")
	v.SetDefault("auth_token", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("poll_interval", 5*time.Second)
	v.SetDefault("search_debounce", 200*time.Millisecond)
	v.SetDefault("page_size", 5)
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("bulk_rate", 0)
	v.SetDefault("cache_path", "./crawldash_cache")
	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("telegram_chat_id", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "crawldash.log")
	v.SetDefault("mock_addr", ":8080")
}

// New returns a viper instance wired for crawldash: defaults, a config.yaml
// search path and CRAWLDASH_-prefixed environment variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// LoadConfig reads configuration from file, environment and any flags already
// bound to v. path is searched first, then ./configs and the working directory.
func LoadConfig(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, env vars and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings every command depends on.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base %q must be an absolute http(s) URL", c.APIBase)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.SearchDebounce < 0 {
		return fmt.Errorf("search_debounce must not be negative, got %s", c.SearchDebounce)
	}
	if c.BulkRate < 0 {
		return fmt.Errorf("bulk_rate must not be negative, got %v", c.BulkRate)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// RequireCredentials is checked by commands that call the backend.
func (c Config) RequireCredentials() error {
	if c.AuthToken == "" && c.JWTSecret == "" {
		return errors.New("auth_token or jwt_secret must be set (CRAWLDASH_AUTH_TOKEN / CRAWLDASH_JWT_SECRET)")
	}
	return nil
}

// NotificationsEnabled reports whether Telegram notifications are configured.
func (c Config) NotificationsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}
