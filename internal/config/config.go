// Package config provides configuration management for autoreload using
// Viper for loading from files, environment variables, and command-line
// flags.
//
// Values are read from .autoreload.yml (or the file named by --config or
// AUTORELOAD_CONFIG_FILE), overridden by AUTORELOAD_<SECTION>_<OPTION>
// environment variables and finally by flags bound into viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultHost         = "localhost"
	DefaultPort         = 8888
	DefaultPollInterval = 500 * time.Millisecond
)

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Docs   DocsConfig   `mapstructure:"docs" yaml:"docs"`
	Build  BuildConfig  `mapstructure:"build" yaml:"build"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr returns the host:port pair the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WatchConfig struct {
	Paths    []string      `mapstructure:"paths" yaml:"paths"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type DocsConfig struct {
	// Root is the directory HTML documents and static files are served from.
	Root string `mapstructure:"root" yaml:"root"`
	// Assets overrides the embedded /assets/ tree when non-empty.
	Assets string `mapstructure:"assets" yaml:"assets"`
}

type BuildConfig struct {
	Commands  []string `mapstructure:"commands" yaml:"commands"`
	Shell     string   `mapstructure:"shell" yaml:"shell,omitempty"`
	Serialize bool     `mapstructure:"serialize" yaml:"serialize"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// EnvPrefix is the prefix of environment variable overrides, e.g.
// AUTORELOAD_SERVER_PORT.
const EnvPrefix = "AUTORELOAD"

var envKeyReplacer = strings.NewReplacer(".", "_")

// BindEnv enables AUTORELOAD_<SECTION>_<OPTION> overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Watch:  WatchConfig{Paths: []string{"."}, Interval: DefaultPollInterval},
		Docs:   DocsConfig{Root: "."},
		Build:  BuildConfig{Commands: []string{}, Serialize: true},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers the defaults with v so that IsSet, env binding and
// Unmarshal agree on every key.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("watch.paths", d.Watch.Paths)
	v.SetDefault("watch.interval", d.Watch.Interval)
	v.SetDefault("docs.root", d.Docs.Root)
	v.SetDefault("docs.assets", d.Docs.Assets)
	v.SetDefault("build.commands", d.Build.Commands)
	v.SetDefault("build.shell", d.Build.Shell)
	v.SetDefault("build.serialize", d.Build.Serialize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applying defaults for anything
// that is unset.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	// Environment overrides arrive as one comma separated string which the
	// decode hook splits; drop the blanks that leaves behind.
	config.Watch.Paths = cleanList(config.Watch.Paths)
	config.Build.Commands = cleanList(config.Build.Commands)

	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{"."}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if config.Watch.Interval <= 0 {
		return fmt.Errorf("watch config: interval must be positive, got %s", config.Watch.Interval)
	}

	if strings.TrimSpace(config.Docs.Root) == "" {
		return fmt.Errorf("docs config: root must not be empty")
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log config: unknown format %q (supported: text, json)", config.Log.Format)
	}

	switch strings.ToLower(config.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log config: unknown level %q", config.Log.Level)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains invalid character: %q", char)
			}
		}
	}

	return nil
}
