package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/config"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/export"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/prompt"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/runner"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/whisper"
	"github.com/houzhh15/wxscribe/pkg/logger"
)

// loadConfig resolves the configuration for cmd and initialises the process
// logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, nil)
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := logger.Init(cfg.LoggerConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func newExecutor(cfg *config.Config) *dependency.LocalExecutor {
	return dependency.NewLocalExecutor(dependency.ExecutorConfig{
		LocalBinaryPaths: binaries(cfg),
		AllowedCommands:  []string{dependency.CommandFFmpeg, dependency.CommandFFprobe, dependency.CommandPython},
	})
}

func binaries(cfg *config.Config) map[string]string {
	paths := map[string]string{dependency.CommandPython: cfg.PythonPath}
	if cfg.FFmpegPath != "" {
		paths[dependency.CommandFFmpeg] = cfg.FFmpegPath
	}
	if cfg.FFprobePath != "" {
		paths[dependency.CommandFFprobe] = cfg.FFprobePath
	}
	return paths
}

// newController wires the run controller. reveal enables showing the
// transcript in the file manager after each run.
func newController(cfg *config.Config, log *slog.Logger, out io.Writer, reveal bool) (*runner.Controller, error) {
	outDir, err := cfg.ResolvedOutputDir()
	if err != nil {
		return nil, err
	}
	engines := func(workspace string, log *slog.Logger) whisper.Engine {
		return whisper.NewHelperEngine(whisper.HelperConfig{
			Python:    cfg.PythonPath,
			ScriptDir: workspace,
			Logger:    log,
		})
	}
	var opts []runner.Option
	if reveal {
		opts = append(opts, runner.WithReveal(prompt.NewRevealer().Reveal))
	}
	settings := runner.Settings{
		Device:            cfg.Device,
		ComputeType:       cfg.ComputeType,
		BatchSize:         cfg.BatchSize,
		CompressThreshold: cfg.CompressThresholdBytes(),
		Binaries:          binaries(cfg),
		MetricsFile:       cfg.MetricsFile,
	}
	exporter := export.NewExporter(outDir, export.WithLogger(log))
	return runner.New(settings, newExecutor(cfg), engines, exporter, out, log, opts...), nil
}
