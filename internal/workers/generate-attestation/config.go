package generateattestation

import (
	"fmt"
	"time"
)

type Config struct {
	FormURL           string        `mapstructure:"form_url"`
	DownloadsDir      string        `mapstructure:"downloads_dir"`
	DownloadWait      time.Duration `mapstructure:"download_wait"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		FormURL:           "https://media.interieur.gouv.fr/deplacement-covid-19/",
		DownloadsDir:      "./downloads",
		DownloadWait:      time.Second,
		NavigationTimeout: 30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.FormURL == "" {
		return fmt.Errorf("form_url is required")
	}
	if c.DownloadsDir == "" {
		return fmt.Errorf("downloads_dir is required")
	}
	if c.DownloadWait < 0 {
		return fmt.Errorf("download_wait must not be negative")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be positive")
	}
	return nil
}
