package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries the settings shared by the server and the chat client.
type Config struct {
	Port                  string `mapstructure:"PORT"`
	Env                   string `mapstructure:"ENV"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	JWTSecret             string `mapstructure:"JWT_SECRET"`
	NotifyChannel         string `mapstructure:"NOTIFY_CHANNEL"`
	ChatbotAPIURL         string `mapstructure:"CHATBOT_API_URL"`
	ChatbotAPIToken       string `mapstructure:"CHATBOT_API_TOKEN"`
	RequestTimeoutSeconds int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
}

// Load reads configuration from the environment, with an optional .env
// file for development.  Nothing here is required: the server command
// validates DATABASE_URL itself, and the chat client runs fully local when
// CHATBOT_API_URL is unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("NOTIFY_CHANNEL", "symptom_reports")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 5)

	for _, key := range []string{
		"PORT",
		"ENV",
		"DATABASE_URL",
		"JWT_SECRET",
		"NOTIFY_CHANNEL",
		"CHATBOT_API_URL",
		"CHATBOT_API_TOKEN",
		"REQUEST_TIMEOUT_SECONDS",
	} {
		v.BindEnv(key)
	}

	// Try reading .env, but don't fail if missing.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 5
	}
	return cfg, nil
}

// RequestTimeout is the bound applied to every outbound network call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// IsDev reports whether the process runs in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}
