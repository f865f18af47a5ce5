package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/config"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/prompt"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/runner"
)

const banner = `
============================================
  wxscribe
  WhisperX audio/video transcription
============================================
`

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [file]",
		Short: "Transcribe one recording (the default command)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTranscribe,
	}
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, banner)

	in := runner.Input{Model: cfg.Model, Language: cfg.Language}
	if len(args) == 1 {
		in.Path = args[0]
	}
	if cfg.Interactive {
		if err := ask(ctx, cmd.InOrStdin(), out, cfg, &in); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "\n\n  Interrupted by user.")
				return exitWith(runner.ExitInterrupted)
			}
			return err
		}
	}

	ctrl, err := newController(cfg, log, out, cfg.RevealOutput && cfg.Interactive)
	if err != nil {
		return err
	}
	return exitWith(ctrl.Execute(ctx, in))
}

// ask fills the parts of in that neither flags, environment nor config
// provided.
func ask(ctx context.Context, stdin io.Reader, out io.Writer, cfg *config.Config, in *runner.Input) error {
	var dialog prompt.FileDialog
	if in.Path == "" {
		dialog = prompt.NewNativeDialog(cfg.DialogTimeout)
	}
	p := prompt.New(stdin, out, dialog)

	if in.Language == "" {
		l, err := p.Language(ctx)
		if err != nil {
			return err
		}
		in.Language = l.Code
	}
	if in.Model == "" {
		m, err := p.Model(ctx)
		if err != nil {
			return err
		}
		in.Model = m.Name
	}
	if in.Path == "" {
		path, err := p.File(ctx)
		if err != nil {
			return err
		}
		in.Path = path
	}
	return nil
}
