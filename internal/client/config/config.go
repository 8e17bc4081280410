package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/common"
	"github.com/dmitrijs2005/cloudbox/internal/flagx"
)

// Config holds runtime settings for the CloudBox CLI.
type Config struct {
	ServerURL             string
	RequestTimeout        time.Duration
	CachePath             string
	LogLevel              string
	LogFormat             string
	AccessToken           string
	EmptyTrashParallelism int
	OnlineCheckInterval   time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:5000"
	c.RequestTimeout = 30 * time.Second
	c.CachePath = defaultCachePath()
	c.LogLevel = "warn"
	c.LogFormat = "text"
	c.EmptyTrashParallelism = 4
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig builds a Config from defaults, the environment and the JSON file
// named in args. Flags are applied later, when the command line is parsed
// with the flag set prepared by BindFlags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := parseJSON(cfg, flagx.ConfigPath(args)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would only fail later, deep in a command.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server url %q must be an absolute http(s) URL", c.ServerURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.CachePath == "" {
		errs = append(errs, errors.New("cache path must not be empty"))
	}
	if c.EmptyTrashParallelism < 1 {
		errs = append(errs, fmt.Errorf("empty trash parallelism must be at least 1, got %d", c.EmptyTrashParallelism))
	}
	if c.OnlineCheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("online check interval must be positive, got %s", c.OnlineCheckInterval))
	}
	return errors.Join(errs...)
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "." + common.AppName + ".db"
	}
	return filepath.Join(dir, common.AppName, "cache.db")
}
