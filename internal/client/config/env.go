package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "CLOUDBOX_"

// loadDotEnv exports the variables of path into the process environment.
// Variables that are already set win; a missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays cfg with CLOUDBOX_* variables found by lookup.
func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("SERVER_URL", &cfg.ServerURL)
	str("CACHE_PATH", &cfg.CachePath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("ACCESS_TOKEN", &cfg.AccessToken)

	if err := dur("REQUEST_TIMEOUT", &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := dur("ONLINE_CHECK_INTERVAL", &cfg.OnlineCheckInterval); err != nil {
		return err
	}

	if v, ok := lookup(envPrefix + "EMPTY_TRASH_PARALLELISM"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sEMPTY_TRASH_PARALLELISM: %w", envPrefix, err)
		}
		cfg.EmptyTrashParallelism = n
	}
	return nil
}
