package dependency

import (
	"fmt"
	"slices"
	"strings"
)

// ValidateCommandRequest performs security checks before command execution.
// It validates:
//  1. Command whitelist
//  2. Argument safety (no NUL bytes or line breaks)
//  3. Output file and working directory are inside the workspace
//
// DependencyClient calls it after constructing a CommandRequest and before
// passing it to the executor.
func ValidateCommandRequest(req CommandRequest, config ExecutorConfig) error {
	allowed := config.allowed()
	if !slices.Contains(allowed, req.Command) {
		return fmt.Errorf("command %s is not in whitelist (allowed: %v)", req.Command, allowed)
	}

	for _, arg := range req.Args {
		if strings.ContainsAny(arg, "\x00\r\n") {
			return fmt.Errorf("argument contains control characters: %q", arg)
		}
	}

	if req.Output == "" && req.WorkingDir == "" {
		return nil
	}
	if config.WorkspaceDir == "" {
		return fmt.Errorf("command %s writes files but no workspace is configured", req.Command)
	}
	pm := NewPathManager(config.WorkspaceDir)
	if req.Output != "" {
		if err := pm.ValidatePath(req.Output); err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
	}
	if req.WorkingDir != "" {
		if err := pm.ValidatePath(req.WorkingDir); err != nil {
			return fmt.Errorf("invalid working directory: %w", err)
		}
	}
	return nil
}
