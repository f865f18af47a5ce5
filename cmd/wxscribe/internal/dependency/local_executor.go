package dependency

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxLineBytes bounds one diagnostic line; longer lines end the scan and the
// rest of the stream is discarded.
const maxLineBytes = 1 << 20

// LocalExecutor executes commands directly on the local system.
type LocalExecutor struct {
	config ExecutorConfig
}

// NewLocalExecutor creates a new LocalExecutor with the given configuration.
func NewLocalExecutor(config ExecutorConfig) *LocalExecutor {
	return &LocalExecutor{config: config}
}

// ExecuteCommand executes a command locally and returns the result. A non-zero
// exit is reported through the response; the error is set only when the
// command could not run or was interrupted.
func (e *LocalExecutor) ExecuteCommand(ctx context.Context, req CommandRequest) (CommandResponse, error) {
	binaryPath, err := e.resolveBinaryPath(req.Command)
	if err != nil {
		return CommandResponse{}, fmt.Errorf("failed to resolve binary path for %s: %w", req.Command, err)
	}

	runCtx, cancel := e.withTimeout(ctx, req)
	defer cancel()

	cmd := e.buildCommand(runCtx, binaryPath, req)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	resp := CommandResponse{
		Success:  err == nil,
		ExitCode: getExitCode(err),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	return resp, e.runError(ctx, runCtx, req, err)
}

// StreamCommand executes a command and delivers stderr line by line while the
// process runs. Stdout and stderr are drained concurrently; the process is
// waited for only after both pipes reach EOF.
func (e *LocalExecutor) StreamCommand(ctx context.Context, req CommandRequest, onLine LineFunc) (CommandResponse, error) {
	binaryPath, err := e.resolveBinaryPath(req.Command)
	if err != nil {
		return CommandResponse{}, fmt.Errorf("failed to resolve binary path for %s: %w", req.Command, err)
	}

	runCtx, cancel := e.withTimeout(ctx, req)
	defer cancel()

	cmd := e.buildCommand(runCtx, binaryPath, req)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return CommandResponse{}, fmt.Errorf("stdout pipe for %s: %w", req.Command, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return CommandResponse{}, fmt.Errorf("stderr pipe for %s: %w", req.Command, err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return CommandResponse{}, fmt.Errorf("failed to start %s: %w", req.Command, err)
	}

	var stdout bytes.Buffer
	var lastLine string
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stdout, stdoutPipe)
		return err
	})
	g.Go(func() error {
		lastLine = ScanLines(stderrPipe, onLine)
		return nil
	})
	drainErr := g.Wait()
	waitErr := cmd.Wait()

	resp := CommandResponse{
		Success:  waitErr == nil,
		ExitCode: getExitCode(waitErr),
		Stdout:   stdout.String(),
		Stderr:   lastLine,
		Duration: time.Since(start),
	}
	if err := e.runError(ctx, runCtx, req, waitErr); err != nil {
		return resp, err
	}
	if drainErr != nil && !errors.Is(drainErr, os.ErrClosed) {
		return resp, fmt.Errorf("reading output of %s: %w", req.Command, drainErr)
	}
	return resp, nil
}

// HealthCheck verifies that every allowed command resolves to a binary.
func (e *LocalExecutor) HealthCheck(ctx context.Context) error {
	for _, command := range e.config.allowed() {
		if _, err := e.resolveBinaryPath(command); err != nil {
			return fmt.Errorf("local command %s not available: %w", command, err)
		}
	}
	return nil
}

// ScanLines reads r until EOF, passing every non-empty line to onLine (which
// may be nil). Both '\n' and '\r' terminate a line. It returns the last
// non-empty line.
func ScanLines(r io.Reader, onLine LineFunc) string {
	var last string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	sc.Split(splitLines)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		last = line
		if onLine != nil {
			onLine(line)
		}
	}
	if sc.Err() != nil {
		// keep the writer unblocked so the process can exit
		_, _ = io.Copy(io.Discard, r)
	}
	return last
}

func splitLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (e *LocalExecutor) withTimeout(ctx context.Context, req CommandRequest) (context.Context, context.CancelFunc) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = e.config.DefaultTimeout
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (e *LocalExecutor) buildCommand(ctx context.Context, binaryPath string, req CommandRequest) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binaryPath, req.Args...)
	cmd.Env = append(os.Environ(), buildEnvSlice(req.Env)...)
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	ConfigureProcessGroup(cmd)
	return cmd
}

// runError classifies the outcome of a finished command. parent is the
// caller's context, runCtx the one carrying the request timeout.
func (e *LocalExecutor) runError(parent, runCtx context.Context, req CommandRequest, err error) error {
	if ctxErr := parent.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", req.Command, ctxErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("command execution timeout: %s: %w", req.Command, context.DeadlineExceeded)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("running %s: %w", req.Command, err)
	}
	return nil
}

// resolveBinaryPath resolves the binary path from config or PATH environment.
func (e *LocalExecutor) resolveBinaryPath(command string) (string, error) {
	if path, ok := e.config.LocalBinaryPaths[command]; ok && path != "" {
		return exec.LookPath(path)
	}
	return exec.LookPath(command)
}

// buildEnvSlice converts environment map to slice format.
func buildEnvSlice(envMap map[string]string) []string {
	var result []string
	for k, v := range envMap {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// getExitCode extracts exit code from error.
func getExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
