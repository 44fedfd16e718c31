package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPort is used when the server port is not configured
const DefaultPort = 5115

var (
	ErrInvalidPort        = errors.New("port must be between 0 and 65535, inclusive")
	ErrMissingDirectory   = errors.New("served directory must be set")
	ErrDirectoryNotFound  = errors.New("served directory does not exist")
	ErrNotDirectory       = errors.New("served path is not a directory")
	ErrInvalidTimeout     = errors.New("timeouts and intervals must not be negative")
	ErrInvalidLogFormat   = errors.New("log format must be \"console\" or \"json\"")
	ErrMissingRemoteAddr  = errors.New("client address must be set")
	ErrInvalidSizeCeiling = errors.New("max file size must be greater than 0")
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the serving side configuration
type ServerConfig struct {
	Dir           string        `mapstructure:"dir"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	MaxFileSize   int64         `mapstructure:"max_file_size"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`   // 0 disables the per-line read deadline
	StatsInterval time.Duration `mapstructure:"stats_interval"` // 0 disables the stat loop
	Watch         bool          `mapstructure:"watch"`
}

// ClientConfig holds the requesting side configuration
type ClientConfig struct {
	Addr        string        `mapstructure:"addr"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "",
			Port:          DefaultPort,
			MaxFileSize:   137_438_883_103, // ~2^37 bytes, arbitrary safety bound
			IdleTimeout:   0,
			StatsInterval: 0,
			Watch:         false,
		},
		Client: ClientConfig{
			Addr:        fmt.Sprintf("localhost:%d", DefaultPort),
			DialTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// SetDefaults registers the default values on v so that config files and
// environment variables only need to override what they change
func SetDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("server.dir", d.Server.Dir)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_file_size", d.Server.MaxFileSize)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.stats_interval", d.Server.StatsInterval)
	v.SetDefault("server.watch", d.Server.Watch)
	v.SetDefault("client.addr", d.Client.Addr)
	v.SetDefault("client.dial_timeout", d.Client.DialTimeout)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// ConfigureEnv enables STORRENT_ prefixed environment overrides,
// e.g. STORRENT_SERVER_PORT or STORRENT_LOGGING_LEVEL
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix("STORRENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load builds a Config from the defaults, the config file and the
// environment known to v. Validation is left to the caller because the
// server and client sides need different parts of the configuration.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

// Validate ensures the configuration shared by every command is valid
func (c *Config) Validate() error {
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}
	if c.Client.DialTimeout < 0 || c.Server.IdleTimeout < 0 || c.Server.StatsInterval < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// ValidateServer ensures the server part of the configuration is usable
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Server.MaxFileSize <= 0 {
		return ErrInvalidSizeCeiling
	}
	if c.Server.Dir == "" {
		return ErrMissingDirectory
	}

	info, err := os.Stat(c.Server.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrDirectoryNotFound, c.Server.Dir)
		}
		return fmt.Errorf("cannot access served directory '%s': %w", c.Server.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, c.Server.Dir)
	}
	return nil
}

// ValidateClient ensures the client part of the configuration is usable
func (c *Config) ValidateClient() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Client.Addr == "" {
		return ErrMissingRemoteAddr
	}
	return nil
}

// ListenAddress returns the host:port the server binds to
func (s ServerConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
