package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, []string{"."}, cfg.Watch.Paths)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Interval)
	assert.Equal(t, ".", cfg.Docs.Root)
	assert.Empty(t, cfg.Docs.Assets)
	assert.Empty(t, cfg.Build.Commands)
	assert.True(t, cfg.Build.Serialize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "localhost:8888", cfg.Server.Addr())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "custom values",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 3000)
				v.Set("watch.paths", []string{"src", "templates"})
				v.Set("watch.interval", "250ms")
				v.Set("build.commands", []string{"make css", "make js"})
				v.Set("docs.root", "public")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3000, cfg.Server.Port)
				assert.Equal(t, []string{"src", "templates"}, cfg.Watch.Paths)
				assert.Equal(t, 250*time.Millisecond, cfg.Watch.Interval)
				assert.Equal(t, []string{"make css", "make js"}, cfg.Build.Commands)
				assert.Equal(t, "public", cfg.Docs.Root)
			},
		},
		{
			name: "blank watch paths fall back to current directory",
			setup: func(v *viper.Viper) {
				v.Set("watch.paths", []string{" ", ""})
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"."}, cfg.Watch.Paths)
			},
		},
		{
			name: "invalid port type",
			setup: func(v *viper.Viper) {
				v.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 70000)
			},
			expectError: true,
		},
		{
			name: "zero interval",
			setup: func(v *viper.Viper) {
				v.Set("watch.interval", "0s")
			},
			expectError: true,
		},
		{
			name: "bad host",
			setup: func(v *viper.Viper) {
				v.Set("server.host", "localhost;rm")
			},
			expectError: true,
		},
		{
			name: "unknown log format",
			setup: func(v *viper.Viper) {
				v.Set("log.format", "xml")
			},
			expectError: true,
		},
		{
			name: "unknown log level",
			setup: func(v *viper.Viper) {
				v.Set("log.level", "chatty")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".autoreload.yml")
	content := `server:
  port: 9000
watch:
  paths:
    - site
  interval: 1s
build:
  commands:
    - echo built
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"site"}, cfg.Watch.Paths)
	assert.Equal(t, time.Second, cfg.Watch.Interval)
	assert.Equal(t, []string{"echo built"}, cfg.Build.Commands)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AUTORELOAD_SERVER_PORT", "7777")

	v := viper.New()
	BindEnv(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
}
