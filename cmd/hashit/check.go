package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/byte4ever/hashit/digester"
	"github.com/byte4ever/hashit/report"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		output   string
		exitCode bool
	)

	cmd := &cobra.Command{
		Use:   "check [flags] INPUT...",
		Short: "Report whether inputs changed and record their digest",
		Long: "check digests INPUT files in the given order, compares " +
			"the result with the one stored under the output key and " +
			"stores the new digest when they differ. A key seen for " +
			"the first time always reports a change, except with no " +
			"inputs at all.",
		RunE: func(cmd *cobra.Command, args []string) error {
			const errCtx = "checking inputs"

			ctx := cmd.Context()

			key, err := a.outputKey(output, args)
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

			var changed bool

			if err := a.withLock(ctx, key, func() error {
				var hcErr error

				changed, hcErr = de.HasChanged(ctx, args, key)

				return hcErr
			}); err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			slog.Info("checked", "key", key, "changed", changed)

			if err := pr.Entry(report.Entry{
				Key:     key,
				Inputs:  args,
				Changed: changed,
			}); err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			return changedExit(exitCode, changed)
		},
	}

	cmd.Flags().StringVarP(
		&output, "output", "o", "",
		"output key (default: expanded --key-template)",
	)
	cmd.Flags().BoolVar(
		&exitCode, "exit-code", false,
		"exit with status 2 when inputs changed",
	)

	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var (
		output   string
		exitCode bool
	)

	cmd := &cobra.Command{
		Use:   "status [flags] INPUT...",
		Short: "Report whether inputs changed without recording anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			const errCtx = "checking status"

			ctx := cmd.Context()

			key, err := a.outputKey(output, args)
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

			res, err := de.Check(ctx, args, key)
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			if err := pr.Entry(report.Entry{
				Key:     key,
				Inputs:  args,
				Changed: res.Changed,
				DryRun:  true,
				Hash:    digester.Hex(res.Hash),
			}); err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			return changedExit(exitCode, res.Changed)
		},
	}

	cmd.Flags().StringVarP(
		&output, "output", "o", "",
		"output key (default: expanded --key-template)",
	)
	cmd.Flags().BoolVar(
		&exitCode, "exit-code", false,
		"exit with status 2 when inputs changed",
	)

	return cmd
}
