// Package deptest provides a scripted DependencyExecutor for tests of the
// packages that run external tools.
package deptest

import (
	"context"
	"sync"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency"
)

// FakeExecutor records every request and answers from a script instead of
// running a process.
type FakeExecutor struct {
	mu sync.Mutex

	// Handler, when set, decides the response for each request.
	Handler func(req dependency.CommandRequest) (dependency.CommandResponse, error)

	// ResponseToReturn and ErrorToReturn are used when Handler is nil.
	ResponseToReturn dependency.CommandResponse
	ErrorToReturn    error

	// StderrLines are replayed to the line callback of StreamCommand before
	// it returns.
	StderrLines []string

	// ExecutedCommands records all requests, for assertions.
	ExecutedCommands []dependency.CommandRequest

	HealthCheckCalled bool
}

// ExecuteCommand records the request and returns the scripted answer.
func (f *FakeExecutor) ExecuteCommand(ctx context.Context, req dependency.CommandRequest) (dependency.CommandResponse, error) {
	f.mu.Lock()
	f.ExecutedCommands = append(f.ExecutedCommands, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dependency.CommandResponse{ExitCode: -1}, err
	}
	if f.Handler != nil {
		return f.Handler(req)
	}
	return f.ResponseToReturn, f.ErrorToReturn
}

// StreamCommand replays StderrLines, then behaves like ExecuteCommand.
func (f *FakeExecutor) StreamCommand(ctx context.Context, req dependency.CommandRequest, onLine dependency.LineFunc) (dependency.CommandResponse, error) {
	if onLine != nil {
		for _, line := range f.StderrLines {
			onLine(line)
		}
	}
	return f.ExecuteCommand(ctx, req)
}

// HealthCheck records the call and returns ErrorToReturn.
func (f *FakeExecutor) HealthCheck(ctx context.Context) error {
	f.mu.Lock()
	f.HealthCheckCalled = true
	f.mu.Unlock()
	return f.ErrorToReturn
}

// Commands returns the command names executed so far, in order.
func (f *FakeExecutor) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.ExecutedCommands))
	for _, r := range f.ExecutedCommands {
		out = append(out, r.Command)
	}
	return out
}
