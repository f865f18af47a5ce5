package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/catalog"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/runner"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/watch"
	"github.com/houzhh15/wxscribe/pkg/logger"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Transcribe every recording that appears in a directory",
		Long: "Watches a directory and transcribes each new supported recording once it stops growing.\n" +
			"Runs happen one at a time. Language and model come from flags, environment or config\n" +
			"and default to " + catalog.DefaultLanguage + " and " + catalog.DefaultModel + ".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctrl, err := newController(cfg, log, out, false)
			if err != nil {
				return err
			}

			w := watch.New(args[0], func(ctx context.Context, path string) int {
				fmt.Fprintf(out, "\nNew recording: %s\n\n", path)
				return ctrl.Execute(ctx, runner.Input{Path: path, Model: cfg.Model, Language: cfg.Language})
			}, logger.L().With("component", "watch"))

			fmt.Fprintf(out, "Watching %s for new recordings (Ctrl+C to stop)...\n", args[0])
			if err := w.Watch(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nStopped watching.")
			return nil
		},
	}
}
