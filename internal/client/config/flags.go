package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers the configuration flags on fs with the current values
// of cfg as defaults, so parsing fs applies the highest-precedence layer.
//
//	-s, --server string         backend base URL
//	    --timeout duration      per-request timeout
//	    --cache string          SQLite cache file
//	    --log-level string      debug, info, warn or error
//	    --log-format string     text or json
//	    --token string          bearer token (skips the saved session)
//	    --parallel int          concurrent purges for empty-trash
//	-i, --check-interval dur    online status check interval
//	-c, --config string         JSON config file (read before flags)
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.ServerURL, "server", "s", cfg.ServerURL, "backend base URL")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per-request timeout")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "path of the local cache database")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.StringVar(&cfg.AccessToken, "token", cfg.AccessToken, "access token; overrides the saved session")
	fs.IntVar(&cfg.EmptyTrashParallelism, "parallel", cfg.EmptyTrashParallelism, "concurrent purges for empty-trash")
	fs.DurationVarP(&cfg.OnlineCheckInterval, "check-interval", "i", cfg.OnlineCheckInterval, "online status check interval")

	// read by LoadConfig before flags are parsed; registered so parsing accepts it
	fs.StringP("config", "c", "", "path to JSON config file")
}
