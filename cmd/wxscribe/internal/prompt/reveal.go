package prompt

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"
)

const revealTimeout = 10 * time.Second

// Revealer shows an exported file in the platform file manager.
type Revealer struct {
	GOOS string
	Run  RunFunc
}

// NewRevealer returns a revealer for the current platform.
func NewRevealer() *Revealer {
	return &Revealer{GOOS: runtime.GOOS, Run: runCommand}
}

// Reveal selects path in Finder on macOS, opens its directory with
// xdg-open on other unix systems and with Explorer on Windows.
func (r *Revealer) Reveal(ctx context.Context, path string) error {
	var name string
	var args []string
	switch r.GOOS {
	case "darwin":
		name, args = "open", []string{"-R", path}
	case "windows":
		name, args = "explorer", []string{"/select," + path}
	default:
		name, args = "xdg-open", []string{filepath.Dir(path)}
	}

	ctx, cancel := context.WithTimeout(ctx, revealTimeout)
	defer cancel()
	if _, err := r.Run(ctx, name, args...); err != nil {
		return fmt.Errorf("reveal %s: %w", path, err)
	}
	return nil
}
