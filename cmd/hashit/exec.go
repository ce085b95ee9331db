package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/byte4ever/hashit/digester"
	"github.com/byte4ever/hashit/report"
	"github.com/byte4ever/hashit/runner"
)

func newExecCmd(a *app) *cobra.Command {
	var (
		output string
		inputs []string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "exec [flags] -- COMMAND [ARG...]",
		Short: "Run a command only when its inputs changed",
		Long: "exec runs COMMAND when the inputs given with -i changed " +
			"since the last successful run, and records their digest " +
			"only once COMMAND succeeds. COMMAND's exit status is " +
			"passed through.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const errCtx = "executing on change"

			ctx := cmd.Context()

			key, err := a.outputKey(output, inputs)
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			de, err := a.detector()
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			pr, err := a.printer()
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			var ran bool

			if err := a.withLock(ctx, key, func() error {
				res, err := de.Check(ctx, inputs, key)
				if err != nil {
					return err
				}

				if !res.Changed && !force {
					slog.Info("skipping, inputs unchanged", "key", key)

					return nil
				}

				if err := runner.Run(ctx, runner.Command{
					Name:   args[0],
					Args:   args[1:],
					Stdout: a.stdout,
					Stderr: a.stderr,
				}); err != nil {
					return &exitError{code: runner.ExitCode(err), err: err}
				}

				ran = true

				if err := de.Record(ctx, key, res.Hash); err != nil {
					return err
				}

				slog.Info("recorded", "key", key, "hash", digester.Hex(res.Hash))

				return nil
			}); err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			if err := pr.Entry(report.Entry{
				Key:     key,
				Inputs:  inputs,
				Changed: ran,
			}); err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(
		&output, "output", "o", "",
		"output key (default: expanded --key-template)",
	)
	cmd.Flags().StringArrayVarP(
		&inputs, "input", "i", nil,
		"input file (repeatable, order matters)",
	)
	cmd.Flags().BoolVar(
		&force, "force", false,
		"run even when inputs are unchanged",
	)

	return cmd
}
