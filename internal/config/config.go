// Package config loads the server configuration from a YAML or TOML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server" toml:"server"`
	Data       DataConfig        `yaml:"data" toml:"data"`
	Playback   PlaybackConfig    `yaml:"playback" toml:"playback"`
	Log        LogConfig         `yaml:"log" toml:"log"`
	Postgres   PostgresConfig    `yaml:"postgres" toml:"postgres"`
	Attributes map[string]string `yaml:"attributes,omitempty" toml:"attributes,omitempty"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr" toml:"addr"`
	RateLimit   float64  `yaml:"rate_limit" toml:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" toml:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins"`
}

// DataConfig locates the dataset and the boundary file. Each may be a
// local path or an http(s) URL; the dataset may also be a postgres:// DSN.
type DataConfig struct {
	Dataset      string        `yaml:"dataset" toml:"dataset"`
	Boundaries   string        `yaml:"boundaries" toml:"boundaries"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" toml:"fetch_timeout"`
}

type PlaybackConfig struct {
	Interval time.Duration `yaml:"interval" toml:"interval"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

// PostgresConfig is the snapshot store. DSN wins over the discrete fields.
type PostgresConfig struct {
	DSN      string `yaml:"dsn" toml:"dsn"`
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	Name     string `yaml:"name" toml:"name"`
	SSLMode  string `yaml:"sslmode" toml:"sslmode"`
}

// Enabled reports whether a database is configured.
func (p PostgresConfig) Enabled() bool {
	return p.DSN != "" || p.Host != ""
}

// ConnString returns the lib/pq connection string.
func (p PostgresConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, port, p.User, p.Password, p.Name, ssl)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			RateLimit:   20,
			RateBurst:   40,
			CORSOrigins: []string{"*"},
		},
		Data: DataConfig{
			Dataset:      "data/road_safety.json",
			Boundaries:   "data/europe.geojson",
			FetchTimeout: 30 * time.Second,
		},
		Playback: PlaybackConfig{Interval: time.Second},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .toml for TOML, .yaml or .yml for YAML. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-provided config path
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported format %q", path, ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values a typo could break.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit is negative"))
	}
	if c.Data.Dataset == "" {
		errs = append(errs, errors.New("data.dataset is empty"))
	}
	if c.Data.Boundaries == "" {
		errs = append(errs, errors.New("data.boundaries is empty"))
	}
	if c.Data.FetchTimeout < 0 {
		errs = append(errs, errors.New("data.fetch_timeout is negative"))
	}
	if c.Playback.Interval < 0 {
		errs = append(errs, errors.New("playback.interval is negative"))
	}
	if strings.HasPrefix(c.Data.Boundaries, "postgres://") || strings.HasPrefix(c.Data.Boundaries, "postgresql://") {
		errs = append(errs, errors.New("data.boundaries cannot be a database"))
	}
	if u, err := url.Parse(c.Data.Dataset); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		errs = append(errs, fmt.Errorf("data.dataset %q has no host", c.Data.Dataset))
	}
	return errors.Join(errs...)
}

// Write encodes c as YAML to path.
func Write(path string, c *Config) error {
	f, err := os.Create(path) //nolint:gosec // operator-provided config path
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
