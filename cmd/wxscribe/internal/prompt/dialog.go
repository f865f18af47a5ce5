package prompt

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/catalog"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency"
)

// DefaultDialogTimeout is how long the file dialog may stay open before it
// counts as no selection.
const DefaultDialogTimeout = 300 * time.Second

// ErrNoDialog is returned on platforms without a supported file dialog.
var ErrNoDialog = errors.New("no file dialog available on this platform")

// FileDialog lets the user pick a recording. An empty path means the user
// closed the dialog or it timed out.
type FileDialog interface {
	Choose(ctx context.Context) (string, error)
}

// RunFunc runs a command and returns its standard output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// NativeDialog uses osascript on macOS and zenity elsewhere.
type NativeDialog struct {
	Timeout time.Duration
	GOOS    string
	Run     RunFunc
}

// NewNativeDialog returns a dialog for the current platform.
func NewNativeDialog(timeout time.Duration) *NativeDialog {
	if timeout <= 0 {
		timeout = DefaultDialogTimeout
	}
	return &NativeDialog{Timeout: timeout, GOOS: runtime.GOOS, Run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	dependency.ConfigureProcessGroup(cmd)
	return cmd.Output()
}

// Choose opens the dialog and waits for it up to Timeout.
func (d *NativeDialog) Choose(ctx context.Context) (string, error) {
	name, args, err := d.command()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	out, err := d.Run(ctx, name, args...)
	if ctx.Err() != nil {
		// timeout or interrupt: nothing selected
		return "", nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// dialog cancelled by the user
			return "", nil
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (d *NativeDialog) command() (string, []string, error) {
	exts := catalog.SupportedExtensions()
	switch d.GOOS {
	case "darwin":
		quoted := make([]string, len(exts))
		for i, e := range exts {
			quoted[i] = fmt.Sprintf("%q", strings.TrimPrefix(e, "."))
		}
		script := fmt.Sprintf(`POSIX path of (choose file with prompt "Select an audio or video file" of type {%s})`,
			strings.Join(quoted, ", "))
		return "osascript", []string{"-e", script}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		patterns := make([]string, 0, 2*len(exts))
		for _, e := range exts {
			patterns = append(patterns, "*"+e, "*"+strings.ToUpper(e))
		}
		return "zenity", []string{
			"--file-selection",
			"--title=Select an audio or video file",
			"--file-filter=Media files | " + strings.Join(patterns, " "),
		}, nil
	default:
		return "", nil, ErrNoDialog
	}
}
