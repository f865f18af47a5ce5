package dependency

import "context"

// LineFunc receives one line of a command's diagnostic stream.
type LineFunc func(line string)

// DependencyExecutor defines the interface for executing external commands.
//
// Implementations:
//   - LocalExecutor: runs the binary on this machine
//   - FakeExecutor (tests): records requests and replays canned responses
type DependencyExecutor interface {
	// ExecuteCommand runs a command to completion and returns its output.
	// If the context is cancelled, the whole process group is terminated.
	ExecuteCommand(ctx context.Context, req CommandRequest) (CommandResponse, error)

	// StreamCommand runs a command and hands every stderr line to onLine as
	// it arrives. Carriage returns end a line too, so ffmpeg's in-place
	// status line is delivered on every refresh. The returned response has
	// Stderr set to the last non-empty line.
	StreamCommand(ctx context.Context, req CommandRequest, onLine LineFunc) (CommandResponse, error)

	// HealthCheck verifies that every required binary can be resolved.
	HealthCheck(ctx context.Context) error
}
