package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/autoreload/internal/config"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	return cmd, &out
}

func TestInitCommandWritesConfig(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	initForce = false

	cmd, out := newTestCommand()
	require.NoError(t, runInit(cmd, []string{dir}))

	path := filepath.Join(dir, config.DefaultFileName)
	assert.FileExists(t, path)
	assert.Contains(t, out.String(), path)

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestInitCommandKeepsExistingFile(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 1234\n"), 0o644))

	initForce = false
	cmd, _ := newTestCommand()
	assert.Error(t, runInit(cmd, []string{dir}))

	initForce = true
	defer func() { initForce = false }()
	require.NoError(t, runInit(cmd, []string{dir}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "port: 8888")
}

func TestInitConfigWithoutFile(t *testing.T) {
	resetViper(t)
	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(oldDir)

	cfgFile = ""
	cmd, _ := newTestCommand()
	require.NoError(t, initConfig(cmd, nil))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
}

func TestInitConfigExplicitFileMustExist(t *testing.T) {
	resetViper(t)
	cfgFile = filepath.Join(t.TempDir(), "missing.yml")
	defer func() { cfgFile = "" }()

	cmd, _ := newTestCommand()
	assert.Error(t, initConfig(cmd, nil))
}

func TestInitConfigFromEnvironmentFile(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "dev.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\nwatch:\n  paths: [site]\n"), 0o644))
	t.Setenv("AUTORELOAD_CONFIG_FILE", path)

	cfgFile = ""
	cmd, out := newTestCommand()
	require.NoError(t, initConfig(cmd, nil))
	assert.Contains(t, out.String(), "Using config file")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"site"}, cfg.Watch.Paths)
}

func TestServeFlagsOverrideConfig(t *testing.T) {
	resetViper(t)
	cmd, _ := newTestCommand()
	addServeFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9200", "--htdoc", "public"}))
	require.NoError(t, bindServeFlags(cmd.Flags()))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "public", cfg.Docs.Root)
	assert.Equal(t, config.DefaultHost, cfg.Server.Host)
}

func TestRunServeRejectsArguments(t *testing.T) {
	resetViper(t)
	cmd, _ := newTestCommand()
	assert.Error(t, runServe(cmd, []string{"index.html"}))
}

func TestRunServeMissingRoot(t *testing.T) {
	resetViper(t)
	cmd, _ := newTestCommand()
	addServeFlags(cmd.Flags())
	viper.Set("docs.root", filepath.Join(t.TempDir(), "missing"))

	err := runServe(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create server")
}

func TestVersionCommand(t *testing.T) {
	defer func() {
		versionFormat = "text"
		versionShort = false
	}()

	cmd, out := newTestCommand()
	versionFormat = "json"
	require.NoError(t, runVersionCommand(cmd, nil))

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")

	out.Reset()
	versionFormat = "text"
	require.NoError(t, runVersionCommand(cmd, nil))
	assert.Contains(t, out.String(), "autoreload ")

	versionFormat = "yaml"
	assert.Error(t, runVersionCommand(cmd, nil))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "watch", "init", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
	assert.NotNil(t, rootCmd.Flags().Lookup("port"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("watch"))
}
