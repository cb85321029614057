// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Form     FormConfig     `mapstructure:"form"`
	Channels ChannelsConfig `mapstructure:"channels"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// RedisConfig selects the redis session store. An empty address keeps sessions in memory.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// BrowserConfig holds settings for the shared headless browser.
type BrowserConfig struct {
	ExecPath     string        `mapstructure:"exec_path"`
	Headless     bool          `mapstructure:"headless"`
	NoSandbox    bool          `mapstructure:"no_sandbox"`
	StartTimeout time.Duration `mapstructure:"start_timeout"`
}

// FormConfig describes the third-party attestation form and how long to wait on it.
type FormConfig struct {
	URL               string        `mapstructure:"url"`
	DownloadsDir      string        `mapstructure:"downloads_dir"`
	DownloadWait      time.Duration `mapstructure:"download_wait"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// --- Channel Configuration ---

type ChannelsConfig struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Messenger MessengerConfig `mapstructure:"messenger"`
	Console   ConsoleConfig   `mapstructure:"console"`
}

type TelegramConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Token       string        `mapstructure:"token"`
	BaseURL     string        `mapstructure:"base_url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// BotURL returns the bot API root for the configured token.
func (t TelegramConfig) BotURL() string {
	return fmt.Sprintf("%s/bot%s", t.BaseURL, t.Token)
}

type MessengerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	PageToken   string `mapstructure:"page_token"`
	VerifyToken string `mapstructure:"verify_token"`
	GraphURL    string `mapstructure:"graph_url"`
}

type ConsoleConfig struct {
	SinkPath string `mapstructure:"sink_path"`
}
