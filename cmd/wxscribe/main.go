package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/config"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/runner"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

func exitWith(code int) error {
	if code == runner.ExitOK {
		return nil
	}
	return &exitError{code: code}
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return runner.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return runner.ExitUsage
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wxscribe [file]",
		Short: "wxscribe - transcribe audio and video recordings to Word",
		Long: "Transcribes a recording with WhisperX and writes a timestamped .docx transcript.\n" +
			"Without arguments the language, model and file are asked for interactively.",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runTranscribe,
	}

	config.AddFlags(rootCmd)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newLanguagesCmd())
	return rootCmd
}
