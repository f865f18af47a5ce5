package dependency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/houzhh15/wxscribe/pkg/metrics"
)

// ErrToolFailed is returned when an external tool exits with a non-zero code.
var ErrToolFailed = errors.New("external tool failed")

// probeTimeout bounds a single ffprobe invocation.
const probeTimeout = 30 * time.Second

// Command execution statuses recorded in metrics.
const (
	statusSuccess = "success"
	statusFailed  = "failed"
	statusError   = "error"
)

var progressTimePattern = regexp.MustCompile(`time=(\d+):(\d{1,2}):(\d{1,2}(?:\.\d+)?)`)

// DependencyClient is the facade the run uses to call ffmpeg and ffprobe.
//
// It encapsulates:
//   - Command construction
//   - Security validation
//   - Executor invocation
//   - Error classification and metrics
type DependencyClient struct {
	executor    DependencyExecutor
	config      ExecutorConfig
	pathManager *PathManager
	logger      *slog.Logger
}

// NewClient creates a DependencyClient backed by a LocalExecutor.
func NewClient(config ExecutorConfig, logger *slog.Logger) *DependencyClient {
	return NewClientWithExecutor(NewLocalExecutor(config), config, logger)
}

// NewClientWithExecutor creates a DependencyClient over an arbitrary executor.
func NewClientWithExecutor(executor DependencyExecutor, config ExecutorConfig, logger *slog.Logger) *DependencyClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &DependencyClient{
		executor:    executor,
		config:      config,
		pathManager: NewPathManager(config.WorkspaceDir),
		logger:      logger,
	}
}

// ProbeDuration returns the media duration in seconds. Any failure (tool
// missing, non-zero exit, empty or non-numeric output, a non-positive value)
// yields ok == false; it never returns an error.
func (c *DependencyClient) ProbeDuration(ctx context.Context, path string) (float64, bool) {
	req := CommandRequest{
		Command: CommandFFprobe,
		Args: []string{
			"-v", "quiet",
			"-show_entries", "format=duration",
			"-of", "csv=p=0",
			"-i", path,
		},
		Timeout: probeTimeout,
	}
	if err := ValidateCommandRequest(req, c.config); err != nil {
		c.logger.Debug("duration probe rejected", "path", path, "error", err)
		return 0, false
	}

	resp, err := c.executor.ExecuteCommand(ctx, req)
	c.record(req.Command, resp, err)
	if err != nil || !resp.Success || resp.ExitCode != 0 {
		c.logger.Debug("duration probe failed", "path", path, "exit_code", resp.ExitCode, "error", err)
		return 0, false
	}

	dur, ok := ParseDuration(resp.Stdout)
	if !ok {
		c.logger.Debug("duration probe returned no usable value", "path", path, "stdout", resp.Stdout)
	}
	return dur, ok
}

// ConvertVideo extracts the audio track of a video as 16 kHz mono PCM WAV.
// onTime, when set, receives the media position in seconds for every
// progress marker ffmpeg prints.
func (c *DependencyClient) ConvertVideo(ctx context.Context, inputPath, outputPath string, onTime func(seconds float64)) error {
	req := CommandRequest{
		Command: CommandFFmpeg,
		Args: []string{
			"-i", inputPath,
			"-vn",
			"-acodec", "pcm_s16le",
			"-ar", "16000",
			"-ac", "1",
			"-y",
			"-progress", "pipe:2",
			outputPath,
		},
		Output: outputPath,
	}
	if err := ValidateCommandRequest(req, c.config); err != nil {
		return fmt.Errorf("command validation failed: %w", err)
	}

	c.logger.Debug("converting video", "input", inputPath, "output", outputPath)
	resp, err := c.executor.StreamCommand(ctx, req, func(line string) {
		if onTime == nil {
			return
		}
		if sec, ok := ParseProgressTime(line); ok {
			onTime(sec)
		}
	})
	c.record(req.Command, resp, err)
	if err != nil {
		return fmt.Errorf("video conversion: %w", err)
	}
	if !resp.Success || resp.ExitCode != 0 {
		return fmt.Errorf("%w: video conversion (exit code %d): %s", ErrToolFailed, resp.ExitCode, resp.Stderr)
	}
	return nil
}

// CompressAudio writes a 16 kHz mono PCM copy of inputPath to outputPath.
func (c *DependencyClient) CompressAudio(ctx context.Context, inputPath, outputPath string) error {
	req := CommandRequest{
		Command: CommandFFmpeg,
		Args: []string{
			"-i", inputPath,
			"-ar", "16000",
			"-ac", "1",
			"-acodec", "pcm_s16le",
			"-y",
			outputPath,
		},
		Output: outputPath,
	}
	if err := ValidateCommandRequest(req, c.config); err != nil {
		return fmt.Errorf("command validation failed: %w", err)
	}

	c.logger.Debug("compressing audio", "input", inputPath, "output", outputPath)
	resp, err := c.executor.ExecuteCommand(ctx, req)
	c.record(req.Command, resp, err)
	if err != nil {
		return fmt.Errorf("audio compression: %w", err)
	}
	if !resp.Success || resp.ExitCode != 0 {
		return fmt.Errorf("%w: audio compression (exit code %d): %s", ErrToolFailed, resp.ExitCode, LastLine(resp.Stderr))
	}
	return nil
}

// HealthCheck delegates to the executor.
func (c *DependencyClient) HealthCheck(ctx context.Context) error {
	return c.executor.HealthCheck(ctx)
}

// PathManager returns the workspace path manager.
func (c *DependencyClient) PathManager() *PathManager {
	return c.pathManager
}

func (c *DependencyClient) record(command string, resp CommandResponse, err error) {
	status := statusSuccess
	switch {
	case err != nil:
		status = statusError
	case !resp.Success || resp.ExitCode != 0:
		status = statusFailed
	}
	metrics.RecordCommandExecution(command, status)
}

// ParseDuration parses ffprobe's csv duration output.
func ParseDuration(out string) (float64, bool) {
	line := strings.TrimSpace(out)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(line, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// ParseProgressTime extracts the last "time=HH:MM:SS.frac" marker of a line
// as seconds.
func ParseProgressTime(line string) (float64, bool) {
	all := progressTimePattern.FindAllStringSubmatch(line, -1)
	if len(all) == 0 {
		return 0, false
	}
	m := all[len(all)-1]
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(h*3600+mins*60) + sec, true
}

// LastLine returns the last non-empty line of s.
func LastLine(s string) string {
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
