package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds client settings read from the environment
type Config struct {
	APIURL         string        `env:"HDT_API_URL" envDefault:"http://localhost:5000/api"`
	WSURL          string        `env:"HDT_WS_URL"`
	AssetBase      string        `env:"HDT_ASSET_BASE"`
	Home           string        `env:"HDT_HOME"`
	RequestTimeout time.Duration `env:"HDT_REQUEST_TIMEOUT" envDefault:"15s"`
	FrameRate      int           `env:"HDT_FRAME_RATE" envDefault:"10"`
	LogFile        string        `env:"HDT_LOG_FILE"`
	Spool          bool          `env:"HDT_SPOOL" envDefault:"true"`
	AssetCacheTTL  time.Duration `env:"HDT_ASSET_CACHE_TTL" envDefault:"24h"`
}

// LoadConfig reads an optional dotenv file and then the environment.
// Entries in overrides (command-line flags) win over both. A missing
// dotenv file is not an error.
func LoadConfig(envFile string, overrides map[string]string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	environ := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}
	for k, v := range overrides {
		if v != "" {
			environ[k] = v
		}
	}
	return parseConfig(env.Options{Environment: environ})
}

func parseConfig(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	api, err := url.Parse(c.APIURL)
	if err != nil || api.Scheme == "" || api.Host == "" {
		return &ValidationError{Field: "HDT_API_URL", Message: fmt.Sprintf("invalid URL %q", c.APIURL)}
	}
	origin := api.Scheme + "://" + api.Host

	if c.WSURL == "" {
		scheme := "ws"
		if api.Scheme == "https" {
			scheme = "wss"
		}
		c.WSURL = scheme + "://" + api.Host + "/socket.io/"
	}
	if c.AssetBase == "" {
		c.AssetBase = origin
	}
	if c.Home == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Home = filepath.Join(homeDir, ".hdt-console")
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 10
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.Home, "hdt-console.log")
	}
	return nil
}

// Origin returns scheme://host of the API URL, where /health lives
func (c *Config) Origin() string {
	api, err := url.Parse(c.APIURL)
	if err != nil {
		return c.APIURL
	}
	return api.Scheme + "://" + api.Host
}

// CredentialsPath returns the path of the stored auth token
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.Home, "credentials.yaml")
}

// SpoolPath returns the path of the failed-upload spool database
func (c *Config) SpoolPath() string {
	return filepath.Join(c.Home, "spool.db")
}

// AssetCacheDir returns where downloaded models are cached
func (c *Config) AssetCacheDir() string {
	return filepath.Join(c.Home, "assets")
}

// FrameInterval returns the render loop period
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

// EnsureHome creates the client's state directory
func (c *Config) EnsureHome() error {
	return os.MkdirAll(c.Home, 0700)
}
