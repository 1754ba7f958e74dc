// Package config holds tinyblock's runtime settings. Values come from
// defaults, then an optional YAML file; the CLI layers flags and
// environment variables on top.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tinyblock/tinyblock/pkg/fetcher"
	"github.com/tinyblock/tinyblock/pkg/logging"
)

// Networks.
const (
	Mainnet = "mainnet"
	Testnet = "testnet"
)

// Config is the complete set of settings.
type Config struct {
	Network        string        `yaml:"network"`
	CacheDir       string        `yaml:"cache_dir"` // empty keeps the transaction cache in memory
	MainnetURL     string        `yaml:"mainnet_url"`
	TestnetURL     string        `yaml:"testnet_url"`
	Timeout        time.Duration `yaml:"timeout"`
	Retries        int           `yaml:"retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	MemoryCacheTTL time.Duration `yaml:"memory_cache_ttl"`
	LogLevel       string        `yaml:"log_level"`
	PrettyLogs     bool          `yaml:"pretty_logs"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Network:        Mainnet,
		CacheDir:       defaultCacheDir(),
		MainnetURL:     fetcher.DefaultMainnetURL,
		TestnetURL:     fetcher.DefaultTestnetURL,
		Timeout:        10 * time.Second,
		Retries:        3,
		RetryBackoff:   500 * time.Millisecond,
		MemoryCacheTTL: 10 * time.Minute,
		LogLevel:       "info",
		PrettyLogs:     true,
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tinyblock", "txcache")
}

// Load reads the YAML file at path over the defaults. Keys missing from the
// file keep their default value. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.Network != Mainnet && c.Network != Testnet:
		return errors.Errorf("network must be %q or %q, got %q", Mainnet, Testnet, c.Network)
	case c.MainnetURL == "":
		return errors.New("mainnet_url must not be empty")
	case c.TestnetURL == "":
		return errors.New("testnet_url must not be empty")
	case c.Retries < 0:
		return errors.Errorf("retries must not be negative, got %d", c.Retries)
	case c.Timeout <= 0:
		return errors.Errorf("timeout must be positive, got %s", c.Timeout)
	case c.RetryBackoff < 0:
		return errors.Errorf("retry_backoff must not be negative, got %s", c.RetryBackoff)
	case c.MemoryCacheTTL < 0:
		return errors.Errorf("memory_cache_ttl must not be negative, got %s", c.MemoryCacheTTL)
	case !logging.ValidLevel(c.LogLevel):
		return errors.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// IsTestnet reports whether the configured network is testnet.
func (c Config) IsTestnet() bool {
	return c.Network == Testnet
}

// FetcherOptions translates the settings into fetcher options. The store
// is left to the caller because opening it can fail.
func (c Config) FetcherOptions() []fetcher.Option {
	return []fetcher.Option{
		fetcher.WithURLs(c.MainnetURL, c.TestnetURL),
		fetcher.WithTimeout(c.Timeout),
		fetcher.WithRetries(c.Retries, c.RetryBackoff),
		fetcher.WithMemoryTTL(c.MemoryCacheTTL),
	}
}
