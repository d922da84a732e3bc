package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// API configures the external persistence API
	API struct {
		// Base URL of the persistence API. Empty disables submission.
		BaseURL string `env:"ACM_API_URL"`

		// Request timeout in seconds
		Timeout int `env:"ACM_API_TIMEOUT" envDefault:"15"`
	}

	Server struct {
		Port           string   `env:"PORT" envDefault:"5250"`
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	}

	Photos struct {
		// SQLite file holding resolved photos; defaults to a file under the temp dir
		CacheDB string `env:"PHOTO_CACHE_DB"`

		// Cached photos older than this many hours are purged at startup
		CacheTTL int `env:"PHOTO_CACHE_TTL" envDefault:"720"`

		// Hours between cache purges
		PurgeInterval int `env:"PHOTO_CACHE_PURGE_INTERVAL" envDefault:"6"`

		// Fetch timeout in seconds
		FetchTimeout int `env:"PHOTO_FETCH_TIMEOUT" envDefault:"10"`

		MaxBytes int64 `env:"PHOTO_MAX_BYTES" envDefault:"8388608"`
	}

	Prefetch struct {
		// Maximum number of photo batches waiting for resolution
		QueueSize int `env:"PREFETCH_QUEUE_SIZE" envDefault:"32"`

		// Maximum number of retries for temporarily unavailable photos
		MaxRetries int `env:"PREFETCH_MAX_RETRIES" envDefault:"2"`

		// Delay between retries in seconds
		RetryDelay int `env:"PREFETCH_RETRY_DELAY" envDefault:"1"`
	}

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads the environment, after loading envFiles (or ./.env when
// none are given) if they exist.
func LoadConfig(envFiles ...string) (*Config, error) {
	// a missing .env file is not an error
	_ = godotenv.Load(envFiles...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if cfg.Photos.CacheDB == "" {
		cfg.Photos.CacheDB = filepath.Join(os.TempDir(), "acmreport", "photo_cache.db")
	}
	return cfg, nil
}

// SubmissionEnabled reports whether a persistence API is configured.
func (c *Config) SubmissionEnabled() bool {
	return c.API.BaseURL != ""
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

func (c *Config) PhotoFetchTimeout() time.Duration {
	return time.Duration(c.Photos.FetchTimeout) * time.Second
}

func (c *Config) PhotoCacheTTL() time.Duration {
	return time.Duration(c.Photos.CacheTTL) * time.Hour
}

func (c *Config) PhotoCachePurgeInterval() time.Duration {
	return time.Duration(c.Photos.PurgeInterval) * time.Hour
}
