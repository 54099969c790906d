package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

const (
	defaultHomeDir   = ".devicekeys"
	defaultStoreFile = "keys.db"
	defaultLogLevel  = "info"
	defaultLogFormat = "console"

	defaultStoreTimeoutMS     = 2000
	defaultDirectoryTimeoutMS = 10000
)

// StoreConfig configures the embedded key store.
type StoreConfig struct {
	// Path is the bbolt file. Relative paths are resolved against Home.
	Path      string
	TimeoutMS int
	// Encrypt requires a passphrase and seals private key records with it.
	Encrypt    bool
	ScryptLogN int
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string
	Format string // console or json
	File   string // empty means stderr
}

// DirectoryConfig configures the bundle directory client. An empty URL
// disables publish and fetch.
type DirectoryConfig struct {
	URL               string
	TimeoutMS         int
	RequestsPerSecond float64
	Burst             int
	MaxRetries        uint64
}

// MetricsConfig configures the Prometheus textfile dump.
type MetricsConfig struct {
	// Textfile, if set, receives all metrics when the app closes.
	Textfile string
}

// Config is the top level configuration.
type Config struct {
	Home      string
	Store     StoreConfig
	Log       LogConfig
	Directory DirectoryConfig
	Metrics   MetricsConfig
}

// StoreTimeout returns the store open timeout.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Store.TimeoutMS) * time.Millisecond
}

// DirectoryTimeout returns the per-request directory timeout.
func (c *Config) DirectoryTimeout() time.Duration {
	return time.Duration(c.Directory.TimeoutMS) * time.Millisecond
}

// FixupAndValidate applies defaults to unset fields and checks the rest.
func (c *Config) FixupAndValidate() error {
	if c.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: no Home set and no user home directory: %w", err)
		}
		c.Home = filepath.Join(home, defaultHomeDir)
	}

	if c.Store.Path == "" {
		c.Store.Path = defaultStoreFile
	}
	if !filepath.IsAbs(c.Store.Path) {
		c.Store.Path = filepath.Join(c.Home, c.Store.Path)
	}
	if c.Store.TimeoutMS <= 0 {
		c.Store.TimeoutMS = defaultStoreTimeoutMS
	}
	if c.Store.ScryptLogN != 0 && (c.Store.ScryptLogN < 10 || c.Store.ScryptLogN > 22) {
		return fmt.Errorf("config: Store.ScryptLogN %d out of range [10, 22]", c.Store.ScryptLogN)
	}

	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("config: Log.Level: %w", err)
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	switch c.Log.Format {
	case "":
		c.Log.Format = defaultLogFormat
	case "console", "json":
	default:
		return fmt.Errorf("config: Log.Format %q is not console or json", c.Log.Format)
	}

	if c.Directory.URL != "" {
		u, err := url.Parse(c.Directory.URL)
		if err != nil {
			return fmt.Errorf("config: Directory.URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("config: Directory.URL scheme %q is not http or https", u.Scheme)
		}
	}
	if c.Directory.TimeoutMS <= 0 {
		c.Directory.TimeoutMS = defaultDirectoryTimeoutMS
	}
	if c.Directory.RequestsPerSecond < 0 {
		return errors.New("config: Directory.RequestsPerSecond is negative")
	}
	return nil
}

// Load parses a TOML config, applies overrides in order, then validates.
// Overrides see the file's values before any defaults are filled in.
func Load(b []byte, overrides ...func(*Config)) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file.
func LoadFile(f string, overrides ...func(*Config)) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b, overrides...)
}
