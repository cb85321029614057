package deliverdocument

import (
	"fmt"
	"time"
)

type Config struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	TelegramEnabled  bool          `mapstructure:"telegram_enabled"`
	TelegramBotURL   string        `mapstructure:"telegram_bot_url"`
	MessengerEnabled bool          `mapstructure:"messenger_enabled"`
	MessengerURL     string        `mapstructure:"messenger_url"`
	MessengerToken   string        `mapstructure:"messenger_token"`
	ConsoleSinkPath  string        `mapstructure:"console_sink_path"`
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		ConsoleSinkPath: "/tmp/attestation.pdf",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.TelegramEnabled && c.TelegramBotURL == "" {
		return fmt.Errorf("telegram_bot_url is required when telegram is enabled")
	}
	if c.MessengerEnabled && (c.MessengerURL == "" || c.MessengerToken == "") {
		return fmt.Errorf("messenger_url and messenger_token are required when messenger is enabled")
	}
	if c.ConsoleSinkPath == "" {
		return fmt.Errorf("console_sink_path is required")
	}
	return nil
}
