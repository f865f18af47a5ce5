// Package dependency runs the external media tools (ffmpeg, ffprobe) that the
// transcription run depends on, and validates every request before it reaches
// the operating system.
package dependency

import "time"

// Tool names accepted by ValidateCommandRequest.
const (
	CommandFFmpeg  = "ffmpeg"
	CommandFFprobe = "ffprobe"
)

// CommandRequest encapsulates all information needed to execute a command.
type CommandRequest struct {
	// Command is the tool name (e.g., "ffmpeg").
	Command string `json:"command" yaml:"command"`

	// Args are the command-line arguments.
	Args []string `json:"args" yaml:"args"`

	// Env contains extra environment variables for the child process.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// WorkingDir is the directory to execute the command in (default: current dir).
	WorkingDir string `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`

	// Output is the file the command writes, if any. It must lie inside the
	// run workspace.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Timeout is the maximum execution duration (0 means no timeout).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// CommandResponse contains the result of a command execution.
type CommandResponse struct {
	Success  bool          `json:"success" yaml:"success"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
	Stdout   string        `json:"stdout" yaml:"stdout"`
	Stderr   string        `json:"stderr" yaml:"stderr"`
	Duration time.Duration `json:"duration_ms" yaml:"duration_ms"`
}

// ExecutorConfig defines the configuration for dependency execution.
type ExecutorConfig struct {
	// WorkspaceDir is the per-run temporary directory. Every file a command
	// writes must be inside it.
	WorkspaceDir string `json:"workspace_dir" yaml:"workspace_dir"`

	// LocalBinaryPaths maps command names to binary paths
	// (e.g., {"ffmpeg": "/opt/homebrew/bin/ffmpeg"}). Unmapped commands are
	// looked up in PATH.
	LocalBinaryPaths map[string]string `json:"local_binary_paths" yaml:"local_binary_paths"`

	// DefaultTimeout applies to requests without their own timeout.
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout"`

	// AllowedCommands lists the commands that may run. Empty means
	// DefaultAllowedCommands.
	AllowedCommands []string `json:"allowed_commands" yaml:"allowed_commands"`
}

// DefaultAllowedCommands is the whitelist used when none is configured.
var DefaultAllowedCommands = []string{CommandFFmpeg, CommandFFprobe}

func (c ExecutorConfig) allowed() []string {
	if len(c.AllowedCommands) == 0 {
		return DefaultAllowedCommands
	}
	return c.AllowedCommands
}
