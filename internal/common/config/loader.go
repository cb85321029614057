// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultFormURL       = "https://media.interieur.gouv.fr/deplacement-covid-19/"
	DefaultTelegramURL   = "https://api.telegram.org"
	DefaultGraphURL      = "https://graph.facebook.com/v18.0"
	DefaultConsoleSink   = "/tmp/attestation.pdf"
	DefaultDownloadsDir  = "./downloads"
	DefaultDownloadWait  = time.Second
	DefaultServerAddress = ":8080"
)

// Load reads config.yaml (plus a config.<env>.yaml overlay) and the environment.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	bindEnv(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "derogation-bot")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("channels.telegram.enabled", false)
	v.SetDefault("channels.messenger.enabled", false)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills channel credentials from the conventional env names.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Channels.Telegram.Token == "" {
		if val := os.Getenv("TELEGRAM_ACCESS_TOKEN"); val != "" {
			cfg.Channels.Telegram.Token = val
		}
	}
	if cfg.Channels.Messenger.PageToken == "" {
		if val := os.Getenv("MESSENGER_ACCESS_TOKEN"); val != "" {
			cfg.Channels.Messenger.PageToken = val
		}
	}
	if cfg.Channels.Messenger.VerifyToken == "" {
		if val := os.Getenv("MESSENGER_VERIFY_TOKEN"); val != "" {
			cfg.Channels.Messenger.VerifyToken = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultServerAddress
	}

	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 30 * 24 * time.Hour
	}

	if cfg.Browser.StartTimeout == 0 {
		cfg.Browser.StartTimeout = 30 * time.Second
	}

	if cfg.Form.URL == "" {
		cfg.Form.URL = DefaultFormURL
	}
	if cfg.Form.DownloadsDir == "" {
		cfg.Form.DownloadsDir = DefaultDownloadsDir
	}
	if cfg.Form.DownloadWait == 0 {
		cfg.Form.DownloadWait = DefaultDownloadWait
	}
	if cfg.Form.NavigationTimeout == 0 {
		cfg.Form.NavigationTimeout = 30 * time.Second
	}

	if cfg.Channels.Telegram.BaseURL == "" {
		cfg.Channels.Telegram.BaseURL = DefaultTelegramURL
	}
	if cfg.Channels.Telegram.PollTimeout == 0 {
		cfg.Channels.Telegram.PollTimeout = 30 * time.Second
	}
	if cfg.Channels.Messenger.GraphURL == "" {
		cfg.Channels.Messenger.GraphURL = DefaultGraphURL
	}
	if cfg.Channels.Console.SinkPath == "" {
		cfg.Channels.Console.SinkPath = DefaultConsoleSink
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Form.DownloadWait < 0 {
		return fmt.Errorf("form.download_wait must not be negative")
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		return fmt.Errorf("channels.telegram.token is required when telegram is enabled")
	}
	if cfg.Channels.Messenger.Enabled {
		if cfg.Channels.Messenger.PageToken == "" {
			return fmt.Errorf("channels.messenger.page_token is required when messenger is enabled")
		}
		if cfg.Channels.Messenger.VerifyToken == "" {
			return fmt.Errorf("channels.messenger.verify_token is required when messenger is enabled")
		}
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative")
	}
	return nil
}
