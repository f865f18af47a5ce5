package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/catalog"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/runner"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the whisper models and their CPU speed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tMODEL\tREAL-TIME FACTOR\tDESCRIPTION")
			for _, m := range catalog.Models() {
				rtf, err := catalog.DefaultThroughput.Factor(m.Name)
				if err != nil {
					return err
				}
				name := m.Name
				if name == catalog.DefaultModel {
					name += " (default)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%.1fx\t%s\n", m.Key, name, rtf, m.Description)
			}
			return tw.Flush()
		},
	}
}

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the transcription languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tCODE\tNAME\tENGLISH")
			for _, l := range catalog.Languages() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Key, l.Code, l.Name(), l.EnglishName())
			}
			return tw.Flush()
		},
	}
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg, ffprobe, python and whisperx are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cfg.Summary())
			fmt.Fprintln(out)

			status := dependency.CheckEnvironment(cmd.Context(), newExecutor(cfg), dependency.DefaultChecks())
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOOL\tSTATUS\tVERSION")
			for _, t := range status.Tools {
				state := "ok"
				if !t.Available {
					state = "missing"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, state, t.Version)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			for _, w := range status.Warnings {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
			for _, issue := range status.Issues {
				fmt.Fprintf(out, "  problem: %s\n", issue)
			}
			if !status.Ready {
				fmt.Fprintln(out, "\nNot ready.")
				return exitWith(runner.ExitFailure)
			}
			fmt.Fprintln(out, "\nReady.")
			return nil
		},
	}
}
