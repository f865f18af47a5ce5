// Package config loads wxscribe settings. Precedence, highest first:
// command-line flags, environment variables, the YAML file, defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/catalog"
	"github.com/houzhh15/wxscribe/pkg/logger"
)

// Config holds every run parameter.
type Config struct {
	Language            string        `yaml:"language"`
	Model               string        `yaml:"model"`
	Device              string        `yaml:"device"`
	ComputeType         string        `yaml:"compute_type"`
	BatchSize           int           `yaml:"batch_size"`
	OutputDir           string        `yaml:"output_dir"`
	FFmpegPath          string        `yaml:"ffmpeg_path"`
	FFprobePath         string        `yaml:"ffprobe_path"`
	PythonPath          string        `yaml:"python_path"`
	CompressThresholdMB int64         `yaml:"compress_threshold_mb"`
	MetricsFile         string        `yaml:"metrics_file"`
	Interactive         bool          `yaml:"interactive"`
	RevealOutput        bool          `yaml:"reveal_output"`
	DialogTimeout       time.Duration `yaml:"dialog_timeout"`
	Log                 LogConfig     `yaml:"log"`

	// Source is the file the config was read from, empty when none.
	Source string `yaml:"-"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Env   string `yaml:"env"`   // dev, prod
	File  string `yaml:"file"`
}

// Environment variables read by Load.
const (
	EnvConfig      = "WXSCRIBE_CONFIG"
	EnvLanguage    = "WXSCRIBE_LANGUAGE"
	EnvModel       = "WXSCRIBE_MODEL"
	EnvOutputDir   = "WXSCRIBE_OUTPUT_DIR"
	EnvPython      = "WXSCRIBE_PYTHON"
	EnvFFmpeg      = "WXSCRIBE_FFMPEG"
	EnvFFprobe     = "WXSCRIBE_FFPROBE"
	EnvLogLevel    = "WXSCRIBE_LOG_LEVEL"
	EnvLogFile     = "WXSCRIBE_LOG_FILE"
	EnvMetricsFile = "WXSCRIBE_METRICS_FILE"
)

// Defaults returns the built-in settings. Language and model stay empty so
// that an interactive run asks for them.
func Defaults() *Config {
	return &Config{
		Device:              "cpu",
		ComputeType:         "float32",
		BatchSize:           8,
		OutputDir:           filepath.Join("~", "Downloads"),
		PythonPath:          "python3",
		CompressThresholdMB: 500,
		Interactive:         true,
		RevealOutput:        true,
		DialogTimeout:       300 * time.Second,
		Log:                 LogConfig{Level: "info", Env: "dev"},
	}
}

// DefaultPath is ~/.wxscribe/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wxscribe", "config.yaml"), nil
}

// Load builds the config from defaults, the YAML file and the environment.
// path is the --config value; when empty WXSCRIBE_CONFIG and then the
// default location are tried. A missing default file is not an error, a
// missing or broken explicit one is.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		if v := getenv(EnvConfig); v != "" {
			path, explicit = v, true
		} else if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.loadFile(path, explicit); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(getenv)
	return cfg, nil
}

func (c *Config) loadFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	c.Source = path
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Language, EnvLanguage)
	set(&c.Model, EnvModel)
	set(&c.OutputDir, EnvOutputDir)
	set(&c.PythonPath, EnvPython)
	set(&c.FFmpegPath, EnvFFmpeg)
	set(&c.FFprobePath, EnvFFprobe)
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Log.File, EnvLogFile)
	set(&c.MetricsFile, EnvMetricsFile)
}

// ApplyFlags overrides settings with the flags explicitly set on cmd.
func (c *Config) ApplyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	str := func(dst *string, name string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str(&c.Language, "language")
	str(&c.Model, "model")
	str(&c.OutputDir, "output-dir")
	str(&c.Device, "device")
	str(&c.ComputeType, "compute-type")
	str(&c.PythonPath, "python")
	str(&c.Log.Level, "log-level")
	str(&c.Log.File, "log-file")
	str(&c.MetricsFile, "metrics-file")
	if flags.Changed("batch-size") {
		c.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("no-interactive") {
		v, _ := flags.GetBool("no-interactive")
		c.Interactive = !v
	}
	if flags.Changed("no-reveal") {
		v, _ := flags.GetBool("no-reveal")
		c.RevealOutput = !v
	}
}

// AddFlags registers the persistent flags read by ApplyFlags.
func AddFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "config file (env: "+EnvConfig+", default: ~/.wxscribe/config.yaml)")
	f.StringP("language", "l", "", "language code or menu number (env: "+EnvLanguage+")")
	f.StringP("model", "m", "", "whisper model size (env: "+EnvModel+")")
	f.StringP("output-dir", "o", "", "directory for the .docx transcript (env: "+EnvOutputDir+", default: ~/Downloads)")
	f.String("device", "", "inference device: cpu or cuda (default: cpu)")
	f.String("compute-type", "", "inference precision: float32, float16 or int8 (default: float32)")
	f.Int("batch-size", 0, "inference batch size (default: 8)")
	f.String("python", "", "python interpreter with whisperx installed (env: "+EnvPython+")")
	f.String("log-level", "", "debug, info, warn or error (env: "+EnvLogLevel+")")
	f.String("log-file", "", "also write logs to this rotated file (env: "+EnvLogFile+")")
	f.String("metrics-file", "", "write run metrics in textfile format (env: "+EnvMetricsFile+")")
	f.Bool("no-interactive", false, "never prompt; missing values use defaults")
	f.Bool("no-reveal", false, "do not reveal the transcript in the file manager")
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Language != "" {
		if _, err := catalog.LookupLanguage(c.Language); err != nil {
			problems = append(problems, fmt.Sprintf("invalid language: %s", c.Language))
		}
	}
	if c.Model != "" {
		if _, err := catalog.LookupModel(c.Model); err != nil {
			problems = append(problems, fmt.Sprintf("invalid model: %s", c.Model))
		}
	}

	validDevices := map[string]bool{"cpu": true, "cuda": true}
	if !validDevices[c.Device] {
		problems = append(problems, fmt.Sprintf("invalid device: %s (must be: cpu, cuda)", c.Device))
	}
	validCompute := map[string]bool{"float32": true, "float16": true, "int8": true}
	if !validCompute[c.ComputeType] {
		problems = append(problems, fmt.Sprintf("invalid compute_type: %s (must be: float32, float16, int8)", c.ComputeType))
	}
	if c.BatchSize <= 0 {
		problems = append(problems, fmt.Sprintf("invalid batch_size: %d (must be greater than 0)", c.BatchSize))
	}
	if c.CompressThresholdMB <= 0 {
		problems = append(problems, fmt.Sprintf("invalid compress_threshold_mb: %d (must be greater than 0)", c.CompressThresholdMB))
	}
	if c.DialogTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid dialog_timeout: %s (must be positive)", c.DialogTimeout))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		problems = append(problems, "output_dir cannot be empty")
	}
	if strings.TrimSpace(c.PythonPath) == "" {
		problems = append(problems, "python_path cannot be empty")
	}

	if !logger.ValidLevel(c.Log.Level) {
		problems = append(problems, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error)", c.Log.Level))
	}
	validEnvs := map[string]bool{"dev": true, "prod": true}
	if !validEnvs[c.Log.Env] {
		problems = append(problems, fmt.Sprintf("invalid log.env: %s (must be: dev, prod)", c.Log.Env))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// CompressThresholdBytes converts the megabyte threshold.
func (c *Config) CompressThresholdBytes() int64 {
	return c.CompressThresholdMB * 1024 * 1024
}

// ResolvedOutputDir expands a leading ~ in OutputDir.
func (c *Config) ResolvedOutputDir() (string, error) {
	return ExpandHome(c.OutputDir)
}

// LoggerConfig maps the log section onto pkg/logger.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Log.Level, Environment: c.Log.Env, File: c.Log.File}
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~"+string(filepath.Separator)) && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimLeft(p[1:], `/\`)), nil
}

// Summary renders the effective settings for the doctor command.
func (c *Config) Summary() string {
	source := c.Source
	if source == "" {
		source = "(defaults)"
	}
	return fmt.Sprintf(`Configuration:
  Source: %s
  Language: %s
  Model: %s
  Device: %s
  Compute: %s
  Batch size: %s
  Output dir: %s
  Python: %s
  Compress above: %d MB
  Log level: %s`,
		source,
		orDefault(c.Language, "(ask)"),
		orDefault(c.Model, "(ask)"),
		c.Device,
		c.ComputeType,
		strconv.Itoa(c.BatchSize),
		c.OutputDir,
		c.PythonPath,
		c.CompressThresholdMB,
		c.Log.Level,
	)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
