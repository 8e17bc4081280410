// Package config loads runtime configuration for the CloudBox CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment: CLOUDBOX_* variables, optionally from a .env file.
//  3. Optional JSON file selected with -c or --config.
//  4. Command-line flags registered by BindFlags, which override everything.
//
// # Environment
//
//	CLOUDBOX_SERVER_URL          backend base URL
//	CLOUDBOX_REQUEST_TIMEOUT     per-request timeout ("30s")
//	CLOUDBOX_CACHE_PATH          SQLite cache file
//	CLOUDBOX_LOG_LEVEL           debug, info, warn, error
//	CLOUDBOX_LOG_FORMAT          text or json
//	CLOUDBOX_ACCESS_TOKEN        bearer token, bypasses the saved session
//	CLOUDBOX_EMPTY_TRASH_PARALLELISM
//	CLOUDBOX_ONLINE_CHECK_INTERVAL
//
// # JSON schema
//
// Durations use timex.Duration, so they may be strings like "3s" or integer
// nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:5000",
//	  "request_timeout": "30s",
//	  "cache_path": "/home/me/.cache/cloudbox/cache.db",
//	  "log_level": "info",
//	  "log_format": "text",
//	  "empty_trash_parallelism": 4,
//	  "online_check_interval": "3s"
//	}
package config
