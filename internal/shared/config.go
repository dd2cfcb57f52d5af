package shared

import (
	_ "embed"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify application credentials and endpoint overrides.
//
// AuthURL, TokenURL and APIURL are empty in normal use and fall back to the public Spotify hosts.
type SpotifyConfig struct {
	ClientID     string        `toml:"client_id"`
	ClientSecret string        `toml:"client_secret"`
	RedirectURI  string        `toml:"redirect_uri"`
	Scopes       []string      `toml:"scopes"`
	Timeout      time.Duration `toml:"timeout"`
	AuthURL      string        `toml:"auth_url"`
	TokenURL     string        `toml:"token_url"`
	APIURL       string        `toml:"api_url"`
}

// DatabaseConfig contains database connection settings.
//
// Path is used by the sqlite3 driver, Host/Port/Name/User/Password/SSLMode by postgres.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Name         string `toml:"name"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"sslmode"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host       string        `toml:"host"`
	Port       int           `toml:"port"`
	StateTTL   time.Duration `toml:"state_ttl"`
	CORSOrigin string        `toml:"cors_origin"`
	RateLimit  float64       `toml:"rate_limit"`
	RateBurst  int           `toml:"rate_burst"`
	Metrics    bool          `toml:"metrics"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr returns the host:port pair the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DSN builds the driver-specific data source name.
func (d DatabaseConfig) DSN() (string, error) {
	switch d.Driver {
	case DriverSQLite, "":
		if d.Path == "" {
			return "", fmt.Errorf("%w: database.path is required for sqlite3", ErrInvalidConfig)
		}
		return d.Path, nil
	case DriverPostgres:
		if d.Host == "" || d.Name == "" {
			return "", fmt.Errorf("%w: database.host and database.name are required for postgres", ErrInvalidConfig)
		}
		host := d.Host
		if d.Port > 0 {
			host = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		}
		u := url.URL{Scheme: "postgres", Host: host, Path: "/" + d.Name}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		if d.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, d.Driver)
	}
}

// Validate checks that the configuration can serve the authorization flow.
func (c *Config) Validate() error {
	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set", ErrMissingCredentials)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if _, err := c.Database.DSN(); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads the config file at path when it exists, falls back to defaults otherwise,
// then applies .env and environment overrides.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config values from environment variables.
//
// lookup has the signature of [os.LookupEnv] so tests can pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("CLIENT_ID", &c.Credentials.Spotify.ClientID)
	str("CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret)
	str("REDIRECT_URI", &c.Credentials.Spotify.RedirectURI)
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_PATH", &c.Database.Path)
	str("DB_HOST", &c.Database.Host)
	str("DB_NAME", &c.Database.Name)
	str("DB_USER", &c.Database.User)
	str("DB_PASS", &c.Database.Password)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}

	// DB_HOST without an explicit driver means the deployment points at a database server.
	if _, ok := lookup("DB_DRIVER"); !ok {
		if v, ok := lookup("DB_HOST"); ok && v != "" {
			c.Database.Driver = DriverPostgres
		}
	}

	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
//
// An existing file is never overwritten.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s already exists", ErrInvalidArgument, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
