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

func TestWriteFileReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)

	cfg := Default()
	cfg.Server.Port = 9001
	cfg.Watch.Paths = []string{"site", "templates"}
	cfg.Watch.Interval = 250 * time.Millisecond
	cfg.Build.Commands = []string{"make css", "echo a,b"}
	require.NoError(t, WriteFile(path, cfg, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "interval: 250ms")
	assert.Contains(t, string(data), "AUTORELOAD_SERVER_PORT")

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	loaded, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestWriteFileRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("keep: me\n"), 0o644))

	err := WriteFile(path, Default(), false)
	assert.ErrorIs(t, err, os.ErrExist)

	data, _ := os.ReadFile(path)
	assert.Equal(t, "keep: me\n", string(data))

	require.NoError(t, WriteFile(path, Default(), true))
	data, _ = os.ReadFile(path)
	assert.Contains(t, string(data), "port: 8888")
}
