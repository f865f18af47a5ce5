package dependency

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// EnvironmentStatus is the overall result of CheckEnvironment.
type EnvironmentStatus struct {
	Ready    bool         `json:"ready"`
	Issues   []string     `json:"issues"`
	Warnings []string     `json:"warnings"`
	Tools    []ToolStatus `json:"tools"`
}

// ToolStatus describes one checked tool.
type ToolStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ToolCheck runs Command with Args and takes the version from the first
// output line, field VersionField (0-based; -1 keeps the whole line).
type ToolCheck struct {
	Name         string
	Command      string
	Args         []string
	VersionField int
	Required     bool
}

// CommandPython is the interpreter that runs the speech recognition helper.
const CommandPython = "python"

// DefaultChecks lists the tools a transcription run needs.
func DefaultChecks() []ToolCheck {
	return []ToolCheck{
		{Name: "ffmpeg", Command: CommandFFmpeg, Args: []string{"-version"}, VersionField: 2, Required: true},
		{Name: "ffprobe", Command: CommandFFprobe, Args: []string{"-version"}, VersionField: 2},
		{Name: "python", Command: CommandPython, Args: []string{"--version"}, VersionField: 1, Required: true},
		{Name: "whisperx", Command: CommandPython, Args: []string{"-c", "import whisperx"}, VersionField: -1, Required: true},
	}
}

// CheckEnvironment runs every check through executor. A failed required
// check makes the environment not ready; an optional one only warns.
func CheckEnvironment(ctx context.Context, executor DependencyExecutor, checks []ToolCheck) *EnvironmentStatus {
	status := &EnvironmentStatus{
		Ready:    true,
		Issues:   []string{},
		Warnings: []string{},
	}

	for _, chk := range checks {
		ts := checkTool(ctx, executor, chk)
		status.Tools = append(status.Tools, ts)
		if ts.Available {
			continue
		}
		msg := chk.Name + " unavailable: " + ts.Error
		if chk.Required {
			status.Ready = false
			status.Issues = append(status.Issues, msg)
		} else {
			status.Warnings = append(status.Warnings, msg)
		}
	}
	return status
}

func checkTool(ctx context.Context, executor DependencyExecutor, chk ToolCheck) ToolStatus {
	resp, err := executor.ExecuteCommand(ctx, CommandRequest{
		Command: chk.Command,
		Args:    chk.Args,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return ToolStatus{Name: chk.Name, Error: err.Error()}
	}
	if !resp.Success || resp.ExitCode != 0 {
		detail := LastLine(resp.Stderr)
		if detail == "" {
			detail = "exit code " + strconv.Itoa(resp.ExitCode)
		}
		return ToolStatus{Name: chk.Name, Error: detail}
	}

	// python 2 and some builds print the version on stderr
	out := resp.Stdout
	if strings.TrimSpace(out) == "" {
		out = resp.Stderr
	}
	return ToolStatus{Name: chk.Name, Available: true, Version: versionFrom(out, chk.VersionField)}
}

func versionFrom(out string, field int) string {
	first := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	if field < 0 {
		if first == "" {
			return "installed"
		}
		return first
	}
	parts := strings.Fields(first)
	if field < len(parts) {
		return parts[field]
	}
	return "unknown"
}
