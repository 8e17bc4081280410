package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Zero values
// mean "not set" and leave the current setting alone.
type JsonConfig struct {
	ServerURL             string         `json:"server_url"`
	RequestTimeout        timex.Duration `json:"request_timeout"`
	CachePath             string         `json:"cache_path"`
	LogLevel              string         `json:"log_level"`
	LogFormat             string         `json:"log_format"`
	AccessToken           string         `json:"access_token"`
	EmptyTrashParallelism int            `json:"empty_trash_parallelism"`
	OnlineCheckInterval   timex.Duration `json:"online_check_interval"`
}

// parseJSON overlays cfg with the file at path. An empty path is a no-op.
func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.CachePath, jc.CachePath)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.AccessToken, jc.AccessToken)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout.Duration)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval.Duration)
	if jc.EmptyTrashParallelism != 0 {
		cfg.EmptyTrashParallelism = jc.EmptyTrashParallelism
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
