package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", envMap(nil))

	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Empty(t, cfg.Source)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(500*1024*1024), cfg.CompressThresholdBytes())
}

func TestLoad_DefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".wxscribe"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".wxscribe", "config.yaml"), []byte("model: small\n"), 0o644))

	cfg, err := Load("", envMap(nil))

	require.NoError(t, err)
	assert.Equal(t, "small", cfg.Model)
	assert.Equal(t, filepath.Join(home, ".wxscribe", "config.yaml"), cfg.Source)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
language: en
model: tiny
batch_size: 4
output_dir: /srv/transcripts
compress_threshold_mb: 200
dialog_timeout: 45s
interactive: false
log:
  level: debug
  env: prod
`)

	cfg, err := Load(path, envMap(nil))

	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, "tiny", cfg.Model)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, "/srv/transcripts", cfg.OutputDir)
	assert.Equal(t, int64(200), cfg.CompressThresholdMB)
	assert.Equal(t, 45*time.Second, cfg.DialogTimeout)
	assert.False(t, cfg.Interactive)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "prod", cfg.Log.Env)
	// untouched keys keep their defaults
	assert.Equal(t, "cpu", cfg.Device)
	assert.Equal(t, "python3", cfg.PythonPath)
	assert.Equal(t, path, cfg.Source)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "language: en\nmodel: tiny\n")

	cfg, err := Load(path, envMap(map[string]string{
		EnvLanguage:  "de",
		EnvPython:    "/opt/venv/bin/python",
		EnvLogLevel:  "warn",
		EnvOutputDir: "/tmp/out",
	}))

	require.NoError(t, err)
	assert.Equal(t, "de", cfg.Language)
	assert.Equal(t, "tiny", cfg.Model)
	assert.Equal(t, "/opt/venv/bin/python", cfg.PythonPath)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
}

func TestLoad_ConfigFromEnvMustExist(t *testing.T) {
	_, err := Load("", envMap(map[string]string{EnvConfig: filepath.Join(t.TempDir(), "missing.yaml")}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_BrokenFile(t *testing.T) {
	path := writeConfig(t, "batch_size: [oops\n")

	_, err := Load(path, envMap(nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestApplyFlags_OnlyChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	AddFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"-m", "large-v3", "--batch-size", "2", "--no-interactive"}))
	cfg := Defaults()
	cfg.Language = "fr"

	cfg.ApplyFlags(cmd)

	assert.Equal(t, "large-v3", cfg.Model)
	assert.Equal(t, "fr", cfg.Language)
	assert.Equal(t, 2, cfg.BatchSize)
	assert.False(t, cfg.Interactive)
	assert.True(t, cfg.RevealOutput)
	assert.Equal(t, "cpu", cfg.Device)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Language = "klingon"
	cfg.Model = "huge"
	cfg.Device = "tpu"
	cfg.BatchSize = 0
	cfg.CompressThresholdMB = -1
	cfg.Log.Level = "loud"

	err := cfg.Validate()

	require.Error(t, err)
	for _, want := range []string{"invalid language: klingon", "invalid model: huge", "invalid device: tpu",
		"invalid batch_size: 0", "invalid compress_threshold_mb: -1", "invalid log.level: loud"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_AcceptsMenuKeys(t *testing.T) {
	cfg := Defaults()
	cfg.Language = "2"
	cfg.Model = "4"

	assert.NoError(t, cfg.Validate())
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandHome("~/Downloads")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Downloads"), got)

	got, err = ExpandHome("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)

	got, err = ExpandHome("~user/x")
	require.NoError(t, err)
	assert.Equal(t, "~user/x", got)
}
